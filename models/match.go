package models

import (
	"encoding/json"
	"time"
)

// TableIDStride separates rounds inside an elimination table id: id = round*TableIDStride + position.
const TableIDStride = 1000

// Pair is one side of a match. In singles only A is set. In doubles B may be empty for a
// one-person team, but B is never set while A is empty.
type Pair struct {
	A string
	B string
}

// NewPair normalizes the members so a lone player always sits in A.
func NewPair(a, b string) Pair {
	if a == "" {
		a, b = b, ""
	}
	return Pair{A: a, B: b}
}

func (p Pair) Empty() bool {
	return p.A == ""
}

func (p Pair) Members() []string {
	switch {
	case p.A == "":
		return nil
	case p.B == "":
		return []string{p.A}
	default:
		return []string{p.A, p.B}
	}
}

// Lineup is either a singles or a doubles lineup. Build it only through SinglesLineup,
// DoublesLineup or LineupFromSlots.
type Lineup struct {
	doubles bool
	side1   Pair
	side2   Pair
}

func SinglesLineup(p1, p2 string) Lineup {
	return Lineup{side1: Pair{A: p1}, side2: Pair{A: p2}}
}

func DoublesLineup(t1, t2 Pair) Lineup {
	return Lineup{doubles: true, side1: NewPair(t1.A, t1.B), side2: NewPair(t2.A, t2.B)}
}

// LineupFromSlots rebuilds a lineup from the four persisted player columns.
func LineupFromSlots(mode TournamentMode, slots [4]*string) Lineup {
	get := func(i int) string {
		if slots[i] == nil {
			return ""
		}
		return *slots[i]
	}
	if mode == ModeDoubles {
		return DoublesLineup(Pair{A: get(0), B: get(1)}, Pair{A: get(2), B: get(3)})
	}
	return SinglesLineup(get(0), get(2))
}

func (l Lineup) IsDoubles() bool {
	return l.doubles
}

func (l Lineup) Side1() Pair {
	return l.side1
}

func (l Lineup) Side2() Pair {
	return l.side2
}

// Slots flattens the lineup into team1Player1, team1Player2, team2Player1, team2Player2.
func (l Lineup) Slots() [4]*string {
	ptr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return [4]*string{ptr(l.side1.A), ptr(l.side1.B), ptr(l.side2.A), ptr(l.side2.B)}
}

// Match is a game_tables row.
type Match struct {
	TournamentID int       `json:"schedule_id"`
	TableID      int       `json:"table_id"`
	Lineup       Lineup    `json:"-"`
	Score1       *int      `json:"score1"`
	Score2       *int      `json:"score2"`
	IsWalkover   bool      `json:"is_walkover"`
	Court        *string   `json:"court,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Round is derived from the table id. Round-robin tables live below the stride and report 0.
func (m *Match) Round() int {
	return m.TableID / TableIDStride
}

func (m *Match) Position() int {
	return m.TableID % TableIDStride
}

// HasScores reports whether both scores were reported.
func (m *Match) HasScores() bool {
	return m.Score1 != nil && m.Score2 != nil
}

// EliminationTableID builds the id addressing (round, position).
func EliminationTableID(round, position int) int {
	return round*TableIDStride + position
}

type matchJSON struct {
	TournamentID int       `json:"schedule_id"`
	TableID      int       `json:"table_id"`
	Round        int       `json:"round,omitempty"`
	Team1Player1 *string   `json:"team1_player1"`
	Team1Player2 *string   `json:"team1_player2,omitempty"`
	Team2Player1 *string   `json:"team2_player1"`
	Team2Player2 *string   `json:"team2_player2,omitempty"`
	Score1       *int      `json:"score1"`
	Score2       *int      `json:"score2"`
	IsWalkover   bool      `json:"is_walkover"`
	Court        *string   `json:"court,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m Match) MarshalJSON() ([]byte, error) {
	slots := m.Lineup.Slots()
	return json.Marshal(matchJSON{
		TournamentID: m.TournamentID,
		TableID:      m.TableID,
		Round:        m.Round(),
		Team1Player1: slots[0],
		Team1Player2: slots[1],
		Team2Player1: slots[2],
		Team2Player2: slots[3],
		Score1:       m.Score1,
		Score2:       m.Score2,
		IsWalkover:   m.IsWalkover,
		Court:        m.Court,
		UpdatedAt:    m.UpdatedAt,
	})
}
