package models

import "time"

// User holds the rating-related part of a user row.
type User struct {
	ID        string    `json:"uid"`
	Nickname  string    `json:"nickname"`
	Level     float64   `json:"level"`
	FCMToken  *string   `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingRecord is one append-only user_levels row: the change applied to a player by one match.
type RatingRecord struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"uid"`
	TournamentID int       `json:"schedule_id"`
	TableID      int       `json:"table_id"`
	Fluctuation  float64   `json:"fluctuation"`
	Original     float64   `json:"original"`
	CreatedAt    time.Time `json:"created_at"`
}
