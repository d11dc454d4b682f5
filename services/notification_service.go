package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/push"
	"github.com/Epin-platforms/nadal-server/repositories"
)

// Presence reports whether a user currently holds a realtime connection.
type Presence interface {
	IsOnline(userID string) bool
}

type NotificationService interface {
	NotifyTournament(ctx context.Context, tournamentID int, title string) error
	ListRecent(ctx context.Context, userID string) ([]*models.Notification, error)
	// UpdateFCMToken stores the device token; an empty token clears it.
	UpdateFCMToken(ctx context.Context, userID, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type NotificationConfig struct {
	RetentionDays  int
	MaxConcurrency int
	PushAttempts   int
	RetryBackoff   time.Duration
}

func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		RetentionDays:  7,
		MaxConcurrency: 8,
		PushAttempts:   3,
		RetryBackoff:   500 * time.Millisecond,
	}
}

type notificationService struct {
	tournamentRepo   repositories.TournamentRepository
	participantRepo  repositories.ParticipantRepository
	userRepo         repositories.UserRepository
	notificationRepo repositories.NotificationRepository
	sender           push.Sender
	presence         Presence
	cfg              NotificationConfig
	logger           *slog.Logger
	now              func() time.Time
}

func NewNotificationService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	userRepo repositories.UserRepository,
	notificationRepo repositories.NotificationRepository,
	sender push.Sender,
	presence Presence,
	cfg NotificationConfig,
	logger *slog.Logger,
) NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = push.LogSender{Logger: logger}
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.PushAttempts <= 0 {
		cfg.PushAttempts = 1
	}
	return &notificationService{
		tournamentRepo:   tournamentRepo,
		participantRepo:  participantRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		sender:           sender,
		presence:         presence,
		cfg:              cfg,
		logger:           logger,
		now:              time.Now,
	}
}

// NotifyTournament stores a notification for every member except the owner and pushes it.
// Push failures are logged and never returned.
func (s *notificationService) NotifyTournament(ctx context.Context, tournamentID int, title string) error {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return mapRepositoryError(err)
	}
	roster, err := s.participantRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list recipients of tournament %d: %w", tournamentID, err)
	}

	var recipients []string
	for _, p := range realMembers(roster) {
		if p.UserID != t.OwnerID {
			recipients = append(recipients, p.UserID)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	subTitle := fmt.Sprintf("Check the %s schedule", t.Title)
	routing := fmt.Sprintf("/schedule/%d", t.ID)

	stored := make(map[string]int64, len(recipients))
	var createErrs []error
	for _, uid := range recipients {
		n := &models.Notification{UserID: uid, Title: title, SubTitle: &subTitle, Routing: &routing}
		if err := s.notificationRepo.Create(ctx, nil, n); err != nil {
			createErrs = append(createErrs, fmt.Errorf("notification for %s: %w", uid, err))
			continue
		}
		stored[uid] = n.ID
	}

	tokens, err := s.userRepo.GetFCMTokens(ctx, nil, recipients)
	if err != nil {
		createErrs = append(createErrs, fmt.Errorf("failed to load fcm tokens: %w", err))
		return errors.Join(createErrs...)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, uid := range recipients {
		uid := uid
		token, ok := tokens[uid]
		if !ok {
			continue
		}
		msg := push.Message{
			Title: title,
			Body:  subTitle,
			Data: map[string]string{
				"type":           "schedule",
				"scheduleId":     strconv.Itoa(t.ID),
				"routing":        routing,
				"notificationId": strconv.FormatInt(stored[uid], 10),
				"alarm":          "1",
			},
			DataOnly:    s.presence != nil && s.presence.IsOnline(uid),
			CollapseKey: fmt.Sprintf("nadal_schedule_%d", t.ID),
		}
		g.Go(func() error {
			s.deliver(gCtx, uid, token, msg)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "tournament notification sent",
		slog.Int("tournament_id", t.ID), slog.Int("recipients", len(recipients)), slog.Int("devices", len(tokens)))
	return errors.Join(createErrs...)
}

// deliver retries transient failures with a linear backoff and drops tokens FCM rejects.
func (s *notificationService) deliver(ctx context.Context, uid, token string, msg push.Message) {
	for attempt := 1; attempt <= s.cfg.PushAttempts; attempt++ {
		_, err := s.sender.Send(ctx, token, msg)
		if err == nil {
			return
		}
		if errors.Is(err, push.ErrTokenInvalid) {
			s.logger.InfoContext(ctx, "dropping invalid fcm token", slog.String("uid", uid))
			if cErr := s.userRepo.ClearFCMToken(ctx, nil, uid, token); cErr != nil {
				s.logger.WarnContext(ctx, "failed to clear fcm token", slog.String("uid", uid), slog.Any("error", cErr))
			}
			return
		}
		if errors.Is(err, push.ErrEmptyToken) {
			return
		}
		s.logger.WarnContext(ctx, "push failed",
			slog.String("uid", uid), slog.Int("attempt", attempt), slog.Any("error", err))
		if attempt == s.cfg.PushAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
		}
	}
}

func (s *notificationService) retentionCutoff() time.Time {
	return s.now().AddDate(0, 0, -s.cfg.RetentionDays)
}

func (s *notificationService) ListRecent(ctx context.Context, userID string) ([]*models.Notification, error) {
	list, err := s.notificationRepo.ListSince(ctx, nil, userID, s.retentionCutoff())
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

func (s *notificationService) UpdateFCMToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	var value *string
	if token != "" {
		value = &token
	}
	if err := s.userRepo.UpdateFCMToken(ctx, nil, userID, value); err != nil {
		return mapRepositoryError(err)
	}
	return nil
}

// PurgeExpired удаляет уведомления старше окна хранения.
func (s *notificationService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.retentionCutoff()
	n, err := s.notificationRepo.DeleteOlderThan(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "expired notifications purged", slog.Int64("deleted", n), slog.Time("before", cutoff))
	return n, nil
}
