package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/repositories"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mapRepositoryError переводит ошибки репозиториев в категории сервисного слоя.
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return categorized(ErrNotFound, ErrTournamentNotFound)
	case errors.Is(err, repositories.ErrMatchNotFound):
		return categorized(ErrNotFound, ErrMatchNotFound)
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return categorized(ErrNotFound, ErrParticipantNotFound)
	case errors.Is(err, repositories.ErrUserNotFound):
		return categorized(ErrNotFound, ErrUserNotFound)
	case errors.Is(err, repositories.ErrMatchConflict),
		errors.Is(err, repositories.ErrParticipantConflict),
		errors.Is(err, repositories.ErrRatingRecordConflict):
		return categorized(ErrStateConflict, err)
	case errors.Is(err, repositories.ErrMatchTournamentInvalid),
		errors.Is(err, repositories.ErrParticipantInvalid),
		errors.Is(err, repositories.ErrRatingUserInvalid):
		return categorized(ErrValidationFailed, err)
	default:
		return err
	}
}

func stateIn(state models.TournamentState, allowed []models.TournamentState) bool {
	for _, a := range allowed {
		if a == state {
			return true
		}
	}
	return false
}

func statesString(states []models.TournamentState) string {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	return strings.Join(names, "|")
}

// realMembers drops bye rows and unapproved registrations.
func realMembers(participants []*models.Participant) []*models.Participant {
	out := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsBye || models.IsByeID(p.UserID) || !p.Approved {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetExtensionFromContentType returns the file extension for an image content type.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	case "image/heic":
		return ".heic", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && parts[0] == "image" && parts[1] != "" {
			// "image/svg+xml" -> ".svg"
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, contentType)
	}
}
