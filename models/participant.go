package models

import (
	"strconv"
	"strings"
	"time"
)

const byeIDPrefix = "bye-"

// Participant is a schedule_members row. Bye rows are synthetic and never belong to a user.
type Participant struct {
	TournamentID int       `json:"tournament_id" db:"schedule_id"`
	UserID       string    `json:"uid" db:"uid"`
	Nickname     *string   `json:"nickname,omitempty" db:"-"`
	Approved     bool      `json:"approved" db:"approved"`
	TeamName     *string   `json:"team_name,omitempty" db:"team_name"`
	SeedIndex    *int      `json:"seed_index,omitempty" db:"seed_index"`
	IsBye        bool      `json:"is_bye" db:"is_bye"`
	WinPoint     int       `json:"win_point" db:"win_point"`
	ScoreDiff    int       `json:"score_diff" db:"score_diff"`
	Ranking      *int      `json:"ranking,omitempty" db:"ranking"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ByeID returns the synthetic uid used for the bye occupying the given seed.
func ByeID(seed int) string {
	return byeIDPrefix + strconv.Itoa(seed)
}

func IsByeID(uid string) bool {
	return strings.HasPrefix(uid, byeIDPrefix)
}
