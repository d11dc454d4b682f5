package services

import (
	"errors"
	"fmt"

	"github.com/Epin-platforms/nadal-server/brackets"
	"github.com/Epin-platforms/nadal-server/locks"
)

// Категории ошибок. Конкретные ошибки оборачивают категорию, HTTP маппинг смотрит на категорию.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrStateConflict      = errors.New("operation conflicts with the current state")
	ErrBracketStructure   = errors.New("bracket data is inconsistent")
	ErrDependencyFailed   = errors.New("external dependency failed")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUserNotFound        = errors.New("user not found")

	ErrInvalidTournamentState = errors.New("tournament is not in the required state")
	ErrScoreOutOfRange        = errors.New("score must be between 0 and the target score")
	ErrSeedOutOfRange         = errors.New("seed index is outside the bracket")
	ErrSeedTaken              = errors.New("seed index is used by another team")
	ErrByeSeedLocked          = errors.New("bye rows cannot be reseeded")
	ErrCourtRequired          = errors.New("court name is required")
	ErrStateStepNotAllowed    = errors.New("this state is reached through its own game operation")
	ErrUserIDRequired         = errors.New("user id is required")
	ErrNotOwner               = errors.New("only the tournament owner can perform this action")
	ErrNotMatchPlayer         = errors.New("only the owner or a player of this match can report scores")
	ErrImageRequired          = errors.New("image file is required")
	ErrUnsupportedImageType   = errors.New("unsupported image content type")
	ErrUploadDisabled         = errors.New("image upload is not configured")
)

// categorized wraps a specific error into its category so errors.Is matches both.
func categorized(category, specific error) error {
	return fmt.Errorf("%w: %w", category, specific)
}

// classifyEngineError assigns a category to errors coming from the bracket engine.
func classifyEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, brackets.ErrFieldTooSmall),
		errors.Is(err, brackets.ErrFieldTooLarge),
		errors.Is(err, brackets.ErrRulesetMissing),
		errors.Is(err, brackets.ErrTeamOversized),
		errors.Is(err, brackets.ErrUnknownFormat),
		errors.Is(err, brackets.ErrRoundOutOfRange):
		return categorized(ErrValidationFailed, err)
	case errors.Is(err, brackets.ErrNextRoundStarted),
		errors.Is(err, locks.ErrLockNotAcquired):
		return categorized(ErrStateConflict, err)
	case errors.Is(err, brackets.ErrIncompleteMatch),
		errors.Is(err, brackets.ErrPlaceholderMissing),
		errors.Is(err, brackets.ErrWinnerCountMismatch),
		errors.Is(err, brackets.ErrRulesetInvalid):
		return categorized(ErrBracketStructure, err)
	default:
		return err
	}
}

func isCategorized(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrBracketStructure) ||
		errors.Is(err, ErrDependencyFailed) ||
		errors.Is(err, ErrForbiddenOperation)
}
