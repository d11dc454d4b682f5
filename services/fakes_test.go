package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Epin-platforms/nadal-server/locks"
	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/push"
	"github.com/Epin-platforms/nadal-server/repositories"
	"github.com/Epin-platforms/nadal-server/storage"
)

var errInjected = errors.New("injected failure")

type matchKey struct {
	tournamentID int
	tableID      int
}

type participantKey struct {
	tournamentID int
	uid          string
}

// memState holds rows by value. Updates always replace pointer fields, so shallow copies are
// enough for a snapshot.
type memState struct {
	tournaments   map[int]models.Tournament
	participants  map[participantKey]models.Participant
	matches       map[matchKey]models.Match
	users         map[string]models.User
	ratings       []models.RatingRecord
	notifications []models.Notification
	images        []models.Image
}

func (s memState) clone() memState {
	c := memState{
		tournaments:   make(map[int]models.Tournament, len(s.tournaments)),
		participants:  make(map[participantKey]models.Participant, len(s.participants)),
		matches:       make(map[matchKey]models.Match, len(s.matches)),
		users:         make(map[string]models.User, len(s.users)),
		ratings:       append([]models.RatingRecord(nil), s.ratings...),
		notifications: append([]models.Notification(nil), s.notifications...),
		images:        append([]models.Image(nil), s.images...),
	}
	for k, v := range s.tournaments {
		c.tournaments[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

type memStore struct {
	mu     sync.Mutex
	state  memState
	failOn map[string]error
	nextID int64
	txs    int
}

func newMemStore() *memStore {
	return &memStore{
		state:  memState{}.clone(),
		failOn: make(map[string]error),
	}
}

func (m *memStore) fail(op string) error {
	return m.failOn[op]
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addTournament(t models.Tournament) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.tournaments[t.ID] = t
}

func (m *memStore) addUser(uid string, level float64, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: uid, Nickname: uid, Level: level}
	if token != "" {
		u.FCMToken = &token
	}
	m.state.users[uid] = u
}

func (m *memStore) addParticipant(p models.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.participants[participantKey{p.TournamentID, p.UserID}] = p
}

func (m *memStore) tournament(id int) models.Tournament {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.tournaments[id]
}

func (m *memStore) user(uid string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[uid]
}

func (m *memStore) roster(tournamentID int) []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Participant
	for _, p := range m.sortedParticipants(tournamentID) {
		out = append(out, *p)
	}
	return out
}

func (m *memStore) matchList(tournamentID int) []*models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedMatches(tournamentID)
}

func (m *memStore) ratingRecords() []models.RatingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RatingRecord(nil), m.state.ratings...)
}

func (m *memStore) sortedParticipants(tournamentID int) []*models.Participant {
	var out []*models.Participant
	for k, p := range m.state.participants {
		if k.tournamentID == tournamentID {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.SeedIndex != nil && b.SeedIndex == nil:
			return true
		case a.SeedIndex == nil && b.SeedIndex != nil:
			return false
		case a.SeedIndex != nil && *a.SeedIndex != *b.SeedIndex:
			return *a.SeedIndex < *b.SeedIndex
		}
		return a.UserID < b.UserID
	})
	return out
}

func (m *memStore) sortedMatches(tournamentID int) []*models.Match {
	var out []*models.Match
	for k, v := range m.state.matches {
		if k.tournamentID == tournamentID {
			cp := v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableID < out[j].TableID })
	return out
}

// WithinTx restores the snapshot when fn fails.
func (m *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.txs++
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

type memTournaments struct{ *memStore }

func (r memTournaments) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.state.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r memTournaments) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memTournaments) UpdateState(ctx context.Context, exec repositories.SQLExecutor, id int, state models.TournamentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(fmt.Sprintf("UpdateState:%d", state)); err != nil {
		return err
	}
	t, ok := r.state.tournaments[id]
	if !ok || t.State > state {
		return repositories.ErrTournamentNotFound
	}
	t.State = state
	r.state.tournaments[id] = t
	return nil
}

func (r memTournaments) ListByMember(ctx context.Context, exec repositories.SQLExecutor, uid string) ([]*models.TournamentSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListByMember"); err != nil {
		return nil, err
	}
	out := make([]*models.TournamentSummary, 0)
	for id, t := range r.state.tournaments {
		if _, ok := r.state.participants[participantKey{id, uid}]; !ok {
			continue
		}
		sum := &models.TournamentSummary{Tournament: t}
		for k, p := range r.state.participants {
			if k.tournamentID == id && !p.IsBye {
				sum.MemberCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memParticipants struct{ *memStore }

func (r memParticipants) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListParticipants"); err != nil {
		return nil, err
	}
	return r.sortedParticipants(tournamentID), nil
}

func (r memParticipants) GetByID(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, uid string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state.participants[participantKey{tournamentID, uid}]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	return &p, nil
}

func (r memParticipants) DeleteUnapproved(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, p := range r.state.participants {
		if k.tournamentID == tournamentID && !p.Approved && !p.IsBye {
			delete(r.state.participants, k)
			n++
		}
	}
	return n, nil
}

func (r memParticipants) UpdateSeed(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, uid string, seed *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := participantKey{tournamentID, uid}
	p, ok := r.state.participants[key]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	if seed != nil {
		v := *seed
		p.SeedIndex = &v
	} else {
		p.SeedIndex = nil
	}
	r.state.participants[key] = p
	return nil
}

func (r memParticipants) CreateBye(ctx context.Context, exec repositories.SQLExecutor, tournamentID, seed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateBye"); err != nil {
		return err
	}
	key := participantKey{tournamentID, models.ByeID(seed)}
	if _, exists := r.state.participants[key]; exists {
		return repositories.ErrParticipantConflict
	}
	s := seed
	r.state.participants[key] = models.Participant{TournamentID: tournamentID, UserID: key.uid, Approved: true, IsBye: true, SeedIndex: &s}
	return nil
}

func (r memParticipants) DeleteByes(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.state.participants {
		if k.tournamentID == tournamentID && p.IsBye {
			delete(r.state.participants, k)
		}
	}
	return nil
}

func (r memParticipants) UpdateStanding(ctx context.Context, exec repositories.SQLExecutor, st *models.TournamentStanding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := participantKey{st.TournamentID, st.ParticipantID}
	p, ok := r.state.participants[key]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	rank := st.Rank
	p.WinPoint, p.ScoreDiff, p.Ranking = st.WinPoint, st.ScoreDifference, &rank
	r.state.participants[key] = p
	return nil
}

type memMatches struct{ *memStore }

func (r memMatches) BatchCreate(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range matches {
		key := matchKey{m.TournamentID, m.TableID}
		if _, exists := r.state.matches[key]; exists {
			return repositories.ErrMatchConflict
		}
		r.state.matches[key] = *m
	}
	return nil
}

func (r memMatches) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, mode models.TournamentMode) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedMatches(tournamentID), nil
}

func (r memMatches) GetByID(ctx context.Context, exec repositories.SQLExecutor, tournamentID, tableID int, mode models.TournamentMode) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.state.matches[matchKey{tournamentID, tableID}]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (r memMatches) UpdateLineup(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := matchKey{match.TournamentID, match.TableID}
	m, ok := r.state.matches[key]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Lineup, m.IsWalkover = match.Lineup, match.IsWalkover
	r.state.matches[key] = m
	return nil
}

func (r memMatches) UpdateScore(ctx context.Context, exec repositories.SQLExecutor, tournamentID, tableID int, score1, score2 *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := matchKey{tournamentID, tableID}
	m, ok := r.state.matches[key]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	s1, s2 := *score1, *score2
	m.Score1, m.Score2 = &s1, &s2
	r.state.matches[key] = m
	return nil
}

func (r memMatches) UpdateCourt(ctx context.Context, exec repositories.SQLExecutor, tournamentID, tableID int, court *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := matchKey{tournamentID, tableID}
	m, ok := r.state.matches[key]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	c := *court
	m.Court = &c
	r.state.matches[key] = m
	return nil
}

type memUsers struct{ *memStore }

func (r memUsers) GetByID(ctx context.Context, exec repositories.SQLExecutor, uid string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[uid]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetLevels(ctx context.Context, exec repositories.SQLExecutor, uids []string) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64)
	for _, uid := range uids {
		if u, ok := r.state.users[uid]; ok {
			out[uid] = u.Level
		}
	}
	return out, nil
}

func (r memUsers) UpdateLevel(ctx context.Context, exec repositories.SQLExecutor, uid string, level float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[uid]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Level = level
	r.state.users[uid] = u
	return nil
}

func (r memUsers) GetFCMTokens(ctx context.Context, exec repositories.SQLExecutor, uids []string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string)
	for _, uid := range uids {
		if u, ok := r.state.users[uid]; ok && u.FCMToken != nil && *u.FCMToken != "" {
			out[uid] = *u.FCMToken
		}
	}
	return out, nil
}

func (r memUsers) UpdateFCMToken(ctx context.Context, exec repositories.SQLExecutor, uid string, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[uid]
	if !ok {
		return repositories.ErrUserNotFound
	}
	if token != nil {
		v := *token
		u.FCMToken = &v
	} else {
		u.FCMToken = nil
	}
	r.state.users[uid] = u
	return nil
}

func (r memUsers) ClearFCMToken(ctx context.Context, exec repositories.SQLExecutor, uid, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.state.users[uid]
	if ok && u.FCMToken != nil && *u.FCMToken == token {
		u.FCMToken = nil
		r.state.users[uid] = u
	}
	return nil
}

type memRatings struct{ *memStore }

func (r memRatings) Create(ctx context.Context, exec repositories.SQLExecutor, rec *models.RatingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = r.id()
	rec.CreatedAt = time.Now()
	r.state.ratings = append(r.state.ratings, *rec)
	return nil
}

func (r memRatings) CountByUsers(ctx context.Context, exec repositories.SQLExecutor, uids []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, rec := range r.state.ratings {
		out[rec.UserID]++
	}
	return out, nil
}

func (r memRatings) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.RatingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RatingRecord
	for _, rec := range r.state.ratings {
		if rec.TournamentID == tournamentID {
			cp := rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memNotifications struct{ *memStore }

func (r memNotifications) Create(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = r.id()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.state.notifications = append(r.state.notifications, *n)
	return nil
}

func (r memNotifications) ListSince(ctx context.Context, exec repositories.SQLExecutor, uid string, since time.Time) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.state.notifications {
		if n.UserID == uid && !n.CreatedAt.Before(since) {
			cp := n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memNotifications) DeleteOlderThan(ctx context.Context, exec repositories.SQLExecutor, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.state.notifications[:0]
	var n int64
	for _, item := range r.state.notifications {
		if item.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, item)
	}
	r.state.notifications = kept
	return n, nil
}

type memImages struct{ *memStore }

func (r memImages) GetByHash(ctx context.Context, exec repositories.SQLExecutor, hash string) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, img := range r.state.images {
		if img.Hash == hash {
			cp := img
			return &cp, nil
		}
	}
	return nil, repositories.ErrImageNotFound
}

func (r memImages) Create(ctx context.Context, exec repositories.SQLExecutor, img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.state.images {
		if existing.Hash == img.Hash {
			return repositories.ErrImageConflict
		}
	}
	img.ID = r.id()
	img.CreatedAt = time.Now()
	r.state.images = append(r.state.images, *img)
	return nil
}

type recordedEvent struct {
	channel string
	name    string
	payload interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) Broadcast(channelID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{channel: channelID, name: event, payload: payload})
}

func (b *fakeBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.name
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles map[int][]string
}

func (n *fakeNotifier) NotifyTournament(ctx context.Context, tournamentID int, title string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.titles == nil {
		n.titles = make(map[int][]string)
	}
	n.titles[tournamentID] = append(n.titles[tournamentID], title)
	return nil
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string) (locks.Lock, error) {
	return nil, fmt.Errorf("%w: %s", locks.ErrLockNotAcquired, key)
}

type sentPush struct {
	token string
	msg   push.Message
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentPush
	calls map[string]int
	// errs maps a token to the errors returned on consecutive calls.
	errs map[string][]error
}

func (s *fakeSender) Send(ctx context.Context, token string, msg push.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	n := s.calls[token]
	s.calls[token]++
	if queue := s.errs[token]; n < len(queue) && queue[n] != nil {
		return "", queue[n]
	}
	s.sent = append(s.sent, sentPush{token: token, msg: msg})
	return "msg-" + token, nil
}

type fakePresence map[string]bool

func (p fakePresence) IsOnline(uid string) bool { return p[uid] }

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.objects[key] = buf.Bytes()
	u.uploads++
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}
