package brackets

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Epin-platforms/nadal-server/models"
)

// fullRoundRobin returns every pair i<j for n players.
func fullRoundRobin(n int) []SinglesPairing {
	var out []SinglesPairing
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, SinglesPairing{i, j})
		}
	}
	return out
}

var doublesFive = []DoublesPairing{
	{TableID: 1, Team1: []int{0, 1}, Team2: []int{2, 3}},
	{TableID: 2, Team1: []int{0, 2}, Team2: []int{3, 4}},
	{TableID: 3, Team1: []int{0, 3}, Team2: []int{1, 4}},
	{TableID: 4, Team1: []int{1, 2}, Team2: []int{0, 4}},
	{TableID: 5, Team1: []int{1, 3}, Team2: []int{2, 4}},
}

// testRuleset supports singles 4..6 and doubles 5 only.
func testRuleset(t *testing.T) *Ruleset {
	t.Helper()
	singles := map[string][]SinglesPairing{}
	for n := 4; n <= 6; n++ {
		singles[fmt.Sprint(n)] = fullRoundRobin(n)
	}
	doubles := map[string][]DoublesPairing{"5": doublesFive}

	sRaw, err := json.Marshal(singles)
	require.NoError(t, err)
	dRaw, err := json.Marshal(doubles)
	require.NoError(t, err)

	rs, err := ParseRuleset(sRaw, dRaw)
	require.NoError(t, err)
	return rs
}

func roster(ids ...string) []*models.Participant {
	out := make([]*models.Participant, len(ids))
	for i, id := range ids {
		out[i] = &models.Participant{TournamentID: 1, UserID: id, Approved: true}
	}
	return out
}

func withTeam(p *models.Participant, team string) *models.Participant {
	p.TeamName = &team
	return p
}

func seeded(id string, seed int) *models.Participant {
	return &models.Participant{TournamentID: 1, UserID: id, Approved: true, SeedIndex: &seed}
}

func byeRow(seed int) *models.Participant {
	return &models.Participant{TournamentID: 1, UserID: models.ByeID(seed), Approved: true, IsBye: true, SeedIndex: &seed}
}

// applyPlan turns a seed plan into persisted-looking roster rows, byes included.
func applyPlan(src []*models.Participant, plan *SeedPlan) []*models.Participant {
	seeds := make(map[string]int, len(plan.Assignments))
	for _, a := range plan.Assignments {
		seeds[a.ParticipantID] = a.SeedIndex
	}
	out := make([]*models.Participant, 0, len(src)+len(plan.ByeSeeds))
	for _, p := range src {
		cp := *p
		seed := seeds[p.UserID]
		cp.SeedIndex = &seed
		out = append(out, &cp)
	}
	for _, seed := range plan.ByeSeeds {
		out = append(out, byeRow(seed))
	}
	return out
}

func score(m *models.Match, s1, s2 int) {
	m.Score1 = &s1
	m.Score2 = &s2
}

func singlesMatch(tableID int, p1, p2 string, s ...int) *models.Match {
	m := &models.Match{TournamentID: 1, TableID: tableID, Lineup: models.SinglesLineup(p1, p2)}
	if len(s) == 2 {
		score(m, s[0], s[1])
	}
	m.IsWalkover = p1 == "" || p2 == ""
	return m
}

func doublesMatch(tableID int, t1, t2 models.Pair, s ...int) *models.Match {
	m := &models.Match{TournamentID: 1, TableID: tableID, Lineup: models.DoublesLineup(t1, t2)}
	if len(s) == 2 {
		score(m, s[0], s[1])
	}
	m.IsWalkover = t1.Empty() || t2.Empty()
	return m
}
