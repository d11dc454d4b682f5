package models

// TournamentStanding is one ranking line computed at finalize.
// It is persisted into the participant row, not into a table of its own.
type TournamentStanding struct {
	TournamentID    int    `json:"tournament_id"`
	ParticipantID   string `json:"uid"`
	WinPoint        int    `json:"win_point"`
	ScoreDifference int    `json:"score_difference"`
	Rank            int    `json:"rank"`
}
