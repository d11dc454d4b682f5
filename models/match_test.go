package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoublesLineupNormalizesLonePlayer(t *testing.T) {
	l := DoublesLineup(Pair{B: "u1"}, Pair{A: "u2", B: "u3"})

	assert.Equal(t, Pair{A: "u1"}, l.Side1())
	assert.Equal(t, []string{"u1"}, l.Side1().Members())
	assert.Equal(t, []string{"u2", "u3"}, l.Side2().Members())
}

func TestLineupSlotsRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		mode TournamentMode
		l    Lineup
	}{
		{"singles", ModeSingles, SinglesLineup("a", "b")},
		{"singles walkover", ModeSingles, SinglesLineup("a", "")},
		{"doubles", ModeDoubles, DoublesLineup(Pair{A: "a", B: "b"}, Pair{A: "c", B: "d"})},
		{"doubles placeholder", ModeDoubles, DoublesLineup(Pair{}, Pair{})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LineupFromSlots(tc.mode, tc.l.Slots())
			assert.Equal(t, tc.l, got)
		})
	}
}

func TestMatchRoundFromTableID(t *testing.T) {
	m := &Match{TableID: EliminationTableID(3, 2)}
	assert.Equal(t, 3002, m.TableID)
	assert.Equal(t, 3, m.Round())
	assert.Equal(t, 2, m.Position())

	rr := &Match{TableID: 17}
	assert.Equal(t, 0, rr.Round())
}

func TestMatchJSONFlattensLineup(t *testing.T) {
	s1 := 21
	m := Match{TournamentID: 4, TableID: 1001, Lineup: SinglesLineup("a", "b"), Score1: &s1}

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "a", out["team1_player1"])
	assert.Equal(t, "b", out["team2_player1"])
	assert.Equal(t, float64(1), out["round"])
	assert.Nil(t, out["score2"])
	assert.NotContains(t, out, "team1_player2")
}

func TestByeID(t *testing.T) {
	assert.Equal(t, "bye-6", ByeID(6))
	assert.True(t, IsByeID(ByeID(6)))
	assert.False(t, IsByeID("user-6"))
}
