package brackets

import (
	"fmt"
	"sort"

	"github.com/Epin-platforms/nadal-server/models"
)

type RankingInput struct {
	TournamentID int
	TargetScore  int
	Matches      []*models.Match
	// Roster may include bye rows; they never appear in the result.
	Roster []*models.Participant
}

// RankingCalculator is a pure function of the stored matches and roster.
type RankingCalculator interface {
	Rank(in RankingInput) []*models.TournamentStanding

	GetName() string
}

func NewRankingCalculator(format models.TournamentFormat, mode models.TournamentMode) (RankingCalculator, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: mode %q", ErrUnknownFormat, mode)
	}
	doubles := mode == models.ModeDoubles
	switch format {
	case models.FormatRoundRobin:
		return &roundRobinRanking{doubles: doubles}, nil
	case models.FormatElimination:
		return &eliminationRanking{doubles: doubles}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// decidedWinner returns 1 or 2 when exactly one side reached the target score, 0 otherwise.
func decidedWinner(m *models.Match, target int) int {
	if !m.HasScores() {
		return 0
	}
	hit1, hit2 := *m.Score1 == target, *m.Score2 == target
	switch {
	case hit1 && !hit2:
		return 1
	case hit2 && !hit1:
		return 2
	default:
		return 0
	}
}

func margin(m *models.Match) int {
	d := *m.Score1 - *m.Score2
	if d < 0 {
		return -d
	}
	return d
}

// sortStandings orders by win point desc, differential desc, id asc and numbers ranks from 1.
func sortStandings(standings []*models.TournamentStanding) {
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.WinPoint != b.WinPoint {
			return a.WinPoint > b.WinPoint
		}
		if a.ScoreDifference != b.ScoreDifference {
			return a.ScoreDifference > b.ScoreDifference
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i, s := range standings {
		s.Rank = i + 1
	}
}

func realRoster(roster []*models.Participant) []*models.Participant {
	out := make([]*models.Participant, 0, len(roster))
	seen := make(map[string]bool, len(roster))
	for _, p := range roster {
		if p.IsBye || models.IsByeID(p.UserID) || seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		out = append(out, p)
	}
	return out
}

type roundRobinRanking struct {
	doubles bool
}

func (r *roundRobinRanking) GetName() string {
	if r.doubles {
		return "RoundRobinDoubles"
	}
	return "RoundRobinSingles"
}

// Rank counts wins and signed margins. In doubles both members of a side receive the same credit.
func (r *roundRobinRanking) Rank(in RankingInput) []*models.TournamentStanding {
	byID := make(map[string]*models.TournamentStanding)
	standings := make([]*models.TournamentStanding, 0, len(in.Roster))
	for _, p := range realRoster(in.Roster) {
		s := &models.TournamentStanding{TournamentID: in.TournamentID, ParticipantID: p.UserID}
		byID[p.UserID] = s
		standings = append(standings, s)
	}

	credit := func(members []string, win, diff int) {
		for _, uid := range members {
			if s, ok := byID[uid]; ok {
				s.WinPoint += win
				s.ScoreDifference += diff
			}
		}
	}
	for _, m := range in.Matches {
		winner := decidedWinner(m, in.TargetScore)
		if winner == 0 {
			continue
		}
		d := margin(m)
		w, l := m.Lineup.Side1(), m.Lineup.Side2()
		if winner == 2 {
			w, l = l, w
		}
		credit(w.Members(), 1, d)
		credit(l.Members(), 0, -d)
	}

	sortStandings(standings)
	return standings
}

type eliminationRanking struct {
	doubles bool
}

func (r *eliminationRanking) GetName() string {
	if r.doubles {
		return "EliminationDoubles"
	}
	return "EliminationSingles"
}

// Rank uses the furthest round reached as the win metric. Doubles ranks per team and then
// copies the team line to each member.
func (r *eliminationRanking) Rank(in RankingInput) []*models.TournamentStanding {
	roster := realRoster(in.Roster)

	// teamOf maps a member to its team key; a team is keyed by its smallest member id.
	teamOf := make(map[string]string, len(roster))
	members := make(map[string][]string)
	if r.doubles {
		bySeed := make(map[int][]string)
		for _, p := range roster {
			if p.SeedIndex == nil {
				teamOf[p.UserID] = p.UserID
				continue
			}
			bySeed[*p.SeedIndex] = append(bySeed[*p.SeedIndex], p.UserID)
		}
		for _, group := range bySeed {
			sort.Strings(group)
			for _, uid := range group {
				teamOf[uid] = group[0]
			}
		}
	} else {
		for _, p := range roster {
			teamOf[p.UserID] = p.UserID
		}
	}
	for _, p := range roster {
		key := teamOf[p.UserID]
		members[key] = append(members[key], p.UserID)
	}

	teams := make(map[string]*models.TournamentStanding, len(members))
	teamLines := make([]*models.TournamentStanding, 0, len(members))
	for key := range members {
		s := &models.TournamentStanding{TournamentID: in.TournamentID, ParticipantID: key}
		teams[key] = s
		teamLines = append(teamLines, s)
	}

	lineOf := func(side models.Pair) *models.TournamentStanding {
		if side.Empty() {
			return nil
		}
		return teams[teamOf[side.A]]
	}
	reach := func(s *models.TournamentStanding, round, diff int) {
		if s == nil {
			return
		}
		s.WinPoint = max(s.WinPoint, round)
		s.ScoreDifference += diff
	}

	for _, m := range in.Matches {
		round := m.Round()
		if round == 0 {
			continue
		}
		s1, s2 := m.Lineup.Side1(), m.Lineup.Side2()
		if m.IsWalkover || s1.Empty() || s2.Empty() {
			switch {
			case !s1.Empty() && s2.Empty():
				reach(lineOf(s1), round+1, 0)
			case s1.Empty() && !s2.Empty():
				reach(lineOf(s2), round+1, 0)
			}
			continue
		}
		winner := decidedWinner(m, in.TargetScore)
		if winner == 0 {
			continue
		}
		d := margin(m)
		w, l := s1, s2
		if winner == 2 {
			w, l = s2, s1
		}
		reach(lineOf(w), round+1, d)
		reach(lineOf(l), round, -d)
	}

	sortStandings(teamLines)
	if !r.doubles {
		return teamLines
	}

	out := make([]*models.TournamentStanding, 0, len(roster))
	for _, line := range teamLines {
		group := append([]string(nil), members[line.ParticipantID]...)
		sort.Strings(group)
		for _, uid := range group {
			out = append(out, &models.TournamentStanding{
				TournamentID:    in.TournamentID,
				ParticipantID:   uid,
				WinPoint:        line.WinPoint,
				ScoreDifference: line.ScoreDifference,
				Rank:            line.Rank,
			})
		}
	}
	return out
}
