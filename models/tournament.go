package models

import (
	"fmt"
	"time"
)

// TournamentFormat определяет способ построения сетки.
type TournamentFormat string

const (
	FormatRoundRobin  TournamentFormat = "round_robin" // KDK
	FormatElimination TournamentFormat = "elimination"
)

type TournamentMode string

const (
	ModeSingles TournamentMode = "singles"
	ModeDoubles TournamentMode = "doubles"
)

// TournamentState is the lifecycle ordinal stored in schedules.state. It only moves forward.
type TournamentState int

const (
	StateOpen TournamentState = iota
	StateRegistrationClosed
	StateDrawn
	StateInProgress
	StateFinished
)

func (s TournamentState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateRegistrationClosed:
		return "registration_closed"
	case StateDrawn:
		return "drawn"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (f TournamentFormat) Valid() bool {
	return f == FormatRoundRobin || f == FormatElimination
}

func (m TournamentMode) Valid() bool {
	return m == ModeSingles || m == ModeDoubles
}

// Tournament представляет игровое расписание (schedule с tag = game).
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	OwnerID     string           `json:"owner_id" db:"owner_id"`
	Title       string           `json:"title" db:"title"`
	Format      TournamentFormat `json:"format" db:"format"`
	Mode        TournamentMode   `json:"mode" db:"mode"`
	TargetScore int              `json:"target_score" db:"target_score"`
	State       TournamentState  `json:"state" db:"state"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

func (t *Tournament) IsDoubles() bool {
	return t.Mode == ModeDoubles
}

// TournamentSummary is a row of a user's game list.
type TournamentSummary struct {
	Tournament
	MemberCount int `json:"member_count" db:"member_count"`
}
