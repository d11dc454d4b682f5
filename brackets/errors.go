package brackets

import "errors"

var (
	ErrFieldTooSmall    = errors.New("not enough participants for this format")
	ErrFieldTooLarge    = errors.New("too many participants for this format")
	ErrRulesetMissing   = errors.New("no pairing table for this participant count")
	ErrRulesetInvalid   = errors.New("pairing table is malformed")
	ErrTeamOversized    = errors.New("team has more than two members")
	ErrUnknownFormat    = errors.New("unknown tournament format or mode")
	ErrRoundOutOfRange  = errors.New("round is out of range for this bracket")
	ErrNextRoundStarted = errors.New("next round already has reported scores")

	// Повреждённая сетка: данные в game_tables не соответствуют структуре турнира.
	ErrIncompleteMatch     = errors.New("match has no decided result")
	ErrPlaceholderMissing  = errors.New("next round placeholder matches are missing")
	ErrWinnerCountMismatch = errors.New("winner count does not fill the next round")
)
