package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/push"
)

type notificationFixture struct {
	store  *memStore
	sender *fakeSender
	svc    *notificationService
}

func newNotificationFixture(presence Presence) *notificationFixture {
	store := newMemStore()
	sender := &fakeSender{}
	cfg := DefaultNotificationConfig()
	cfg.RetryBackoff = 0
	svc := NewNotificationService(
		memTournaments{store},
		memParticipants{store},
		memUsers{store},
		memNotifications{store},
		sender,
		presence,
		cfg,
		nil,
	).(*notificationService)
	return &notificationFixture{store: store, sender: sender, svc: svc}
}

func (f *notificationFixture) seed() {
	f.store.addTournament(models.Tournament{ID: 7, OwnerID: "host", Title: "Sunday Cup", Format: models.FormatRoundRobin, Mode: models.ModeSingles, TargetScore: 21})
	f.store.addUser("host", 5, "tok-host")
	f.store.addUser("u1", 5, "tok-u1")
	f.store.addUser("u2", 5, "tok-u2")
	f.store.addUser("u3", 5, "")
	for _, uid := range []string{"host", "u1", "u2", "u3"} {
		f.store.addParticipant(models.Participant{TournamentID: 7, UserID: uid, Approved: true})
	}
	seed := 2
	f.store.addParticipant(models.Participant{TournamentID: 7, UserID: models.ByeID(2), Approved: true, IsBye: true, SeedIndex: &seed})
	f.store.addParticipant(models.Participant{TournamentID: 7, UserID: "pending", Approved: false})
}

func (f *notificationFixture) pushFor(token string) (push.Message, bool) {
	for _, s := range f.sender.sent {
		if s.token == token {
			return s.msg, true
		}
	}
	return push.Message{}, false
}

func TestNotifyTournament_StoresAndPushesToMembers(t *testing.T) {
	f := newNotificationFixture(fakePresence{"u2": true})
	f.seed()

	require.NoError(t, f.svc.NotifyTournament(context.Background(), 7, "The game has started"))

	stored := f.store.state.notifications
	require.Len(t, stored, 3)
	recipients := make(map[string]bool)
	for _, n := range stored {
		recipients[n.UserID] = true
		assert.Equal(t, "The game has started", n.Title)
		assert.Equal(t, "/schedule/7", derefString(n.Routing))
		assert.Equal(t, "Check the Sunday Cup schedule", derefString(n.SubTitle))
	}
	assert.Equal(t, map[string]bool{"u1": true, "u2": true, "u3": true}, recipients)

	require.Len(t, f.sender.sent, 2)
	_, hostPushed := f.pushFor("tok-host")
	assert.False(t, hostPushed)

	offline, ok := f.pushFor("tok-u1")
	require.True(t, ok)
	assert.False(t, offline.DataOnly)
	assert.Equal(t, "schedule", offline.Data["type"])
	assert.Equal(t, "7", offline.Data["scheduleId"])
	assert.Equal(t, "/schedule/7", offline.Data["routing"])
	assert.NotEmpty(t, offline.Data["notificationId"])
	assert.Equal(t, "nadal_schedule_7", offline.CollapseKey)

	online, ok := f.pushFor("tok-u2")
	require.True(t, ok)
	assert.True(t, online.DataOnly)
}

func TestNotifyTournament_NoRecipients(t *testing.T) {
	f := newNotificationFixture(nil)
	f.store.addTournament(models.Tournament{ID: 8, OwnerID: "host", Title: "Solo"})
	f.store.addParticipant(models.Participant{TournamentID: 8, UserID: "host", Approved: true})

	require.NoError(t, f.svc.NotifyTournament(context.Background(), 8, "title"))
	assert.Empty(t, f.store.state.notifications)
	assert.Empty(t, f.sender.sent)
}

func TestNotifyTournament_UnknownTournament(t *testing.T) {
	f := newNotificationFixture(nil)
	err := f.svc.NotifyTournament(context.Background(), 404, "title")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifyTournament_InvalidTokenIsCleared(t *testing.T) {
	f := newNotificationFixture(nil)
	f.seed()
	f.sender.errs = map[string][]error{"tok-u1": {push.ErrTokenInvalid}}

	require.NoError(t, f.svc.NotifyTournament(context.Background(), 7, "title"))

	assert.Equal(t, 1, f.sender.calls["tok-u1"])
	assert.Nil(t, f.store.user("u1").FCMToken)
	require.NotNil(t, f.store.user("u2").FCMToken)
}

func TestNotifyTournament_RetriesTransientFailures(t *testing.T) {
	f := newNotificationFixture(nil)
	f.seed()
	transient := errors.New("unavailable")
	f.sender.errs = map[string][]error{
		"tok-u1": {transient, transient},
		"tok-u2": {transient, transient, transient},
	}

	require.NoError(t, f.svc.NotifyTournament(context.Background(), 7, "title"))

	assert.Equal(t, 3, f.sender.calls["tok-u1"])
	_, delivered := f.pushFor("tok-u1")
	assert.True(t, delivered)

	assert.Equal(t, 3, f.sender.calls["tok-u2"])
	_, delivered = f.pushFor("tok-u2")
	assert.False(t, delivered)
	require.NotNil(t, f.store.user("u2").FCMToken, "transient failures keep the token")
}

func TestListRecentAndPurgeExpired(t *testing.T) {
	f := newNotificationFixture(nil)
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	ctx := context.Background()
	repo := memNotifications{f.store}
	for _, n := range []*models.Notification{
		{UserID: "u1", Title: "fresh", CreatedAt: now.Add(-time.Hour)},
		{UserID: "u1", Title: "edge", CreatedAt: now.AddDate(0, 0, -7).Add(time.Minute)},
		{UserID: "u1", Title: "old", CreatedAt: now.AddDate(0, 0, -8)},
		{UserID: "u2", Title: "other", CreatedAt: now},
	} {
		require.NoError(t, repo.Create(ctx, nil, n))
	}

	recent, err := f.svc.ListRecent(ctx, "u1")
	require.NoError(t, err)
	titles := make([]string, 0, len(recent))
	for _, n := range recent {
		titles = append(titles, n.Title)
	}
	assert.ElementsMatch(t, []string{"fresh", "edge"}, titles)

	deleted, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, f.store.state.notifications, 3)
}

func TestUpdateFCMToken(t *testing.T) {
	f := newNotificationFixture(nil)
	f.store.addUser("u1", 5, "old")
	ctx := context.Background()

	require.NoError(t, f.svc.UpdateFCMToken(ctx, "u1", " new-token "))
	require.NotNil(t, f.store.user("u1").FCMToken)
	assert.Equal(t, "new-token", *f.store.user("u1").FCMToken)

	require.NoError(t, f.svc.UpdateFCMToken(ctx, "u1", ""))
	assert.Nil(t, f.store.user("u1").FCMToken)

	assert.ErrorIs(t, f.svc.UpdateFCMToken(ctx, "ghost", "t"), ErrNotFound)
}
