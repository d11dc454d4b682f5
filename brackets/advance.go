package brackets

import (
	"fmt"
	"sort"

	"github.com/Epin-platforms/nadal-server/models"
)

// RoundMatches returns the matches of one elimination round ordered by position.
func RoundMatches(matches []*models.Match, round int) []*models.Match {
	var out []*models.Match
	for _, m := range matches {
		if m.Round() == round {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position() < out[j].Position() })
	return out
}

// LastRound returns the highest round present in the bracket.
func LastRound(matches []*models.Match) int {
	last := 0
	for _, m := range matches {
		last = max(last, m.Round())
	}
	return last
}

// MatchWinner returns the winning side of an elimination match. A side facing an empty
// slot wins outright; otherwise the higher reported score wins.
func MatchWinner(m *models.Match) (models.Pair, error) {
	s1, s2 := m.Lineup.Side1(), m.Lineup.Side2()
	switch {
	case s1.Empty() && s2.Empty():
		return models.Pair{}, fmt.Errorf("%w: table %d has no participants", ErrIncompleteMatch, m.TableID)
	case s2.Empty():
		return s1, nil
	case s1.Empty():
		return s2, nil
	}
	if !m.HasScores() {
		return models.Pair{}, fmt.Errorf("%w: table %d has no scores", ErrIncompleteMatch, m.TableID)
	}
	switch {
	case *m.Score1 > *m.Score2:
		return s1, nil
	case *m.Score2 > *m.Score1:
		return s2, nil
	default:
		return models.Pair{}, fmt.Errorf("%w: table %d is a draw %d:%d", ErrIncompleteMatch, m.TableID, *m.Score1, *m.Score2)
	}
}

// AdvanceRound seats the winners of round into the placeholders of round+1. It works on
// copies and returns the next-round matches to persist; the input is left untouched.
func AdvanceRound(mode models.TournamentMode, matches []*models.Match, round int) ([]*models.Match, error) {
	last := LastRound(matches)
	if round < 1 || round >= last {
		return nil, fmt.Errorf("%w: round %d of %d", ErrRoundOutOfRange, round, last)
	}

	current := RoundMatches(matches, round)
	next := RoundMatches(matches, round+1)
	if len(next) == 0 || len(next) != len(current)/2 {
		return nil, fmt.Errorf("%w: round %d has %d matches, round %d has %d", ErrPlaceholderMissing, round, len(current), round+1, len(next))
	}
	for i, m := range next {
		if m.Position() != i+1 {
			return nil, fmt.Errorf("%w: round %d position %d missing", ErrPlaceholderMissing, round+1, i+1)
		}
		if m.Score1 != nil || m.Score2 != nil {
			return nil, fmt.Errorf("%w: table %d", ErrNextRoundStarted, m.TableID)
		}
	}

	winners := make([]models.Pair, 0, len(current))
	for _, m := range current {
		w, err := MatchWinner(m)
		if err != nil {
			return nil, err
		}
		winners = append(winners, w)
	}
	if len(winners) != 2*len(next) {
		return nil, fmt.Errorf("%w: %d winners for %d matches", ErrWinnerCountMismatch, len(winners), len(next))
	}

	updated := make([]*models.Match, len(next))
	for i, m := range next {
		cp := *m
		w1, w2 := winners[2*i], winners[2*i+1]
		if mode == models.ModeDoubles {
			cp.Lineup = models.DoublesLineup(w1, w2)
		} else {
			cp.Lineup = models.SinglesLineup(w1.A, w2.A)
		}
		cp.IsWalkover = false
		updated[i] = &cp
	}
	return updated, nil
}
