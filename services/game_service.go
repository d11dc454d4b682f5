package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Epin-platforms/nadal-server/brackets"
	"github.com/Epin-platforms/nadal-server/locks"
	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/repositories"
)

// События, которые клиенты слушают в канале турнира.
const (
	EventRefreshMember = "refreshMember"
	EventRefreshGame   = "refreshGame"
	EventChangedState  = "changedState"
	EventScore         = "score"
	EventCourt         = "court"
)

var (
	ErrNotElimination   = errors.New("rounds exist only in elimination tournaments")
	ErrMatchNotPlayable = errors.New("match has an empty side and takes no scores")
)

// Broadcaster fans an event out to every subscriber of a realtime channel.
type Broadcaster interface {
	Broadcast(channelID, event string, payload interface{})
}

// TournamentNotifier sends a notification to the members of a tournament.
type TournamentNotifier interface {
	NotifyTournament(ctx context.Context, tournamentID int, title string) error
}

type StatePayload struct {
	State models.TournamentState `json:"state"`
}

type ScorePayload struct {
	TableID int `json:"tableId"`
	Score1  int `json:"score1"`
	Score2  int `json:"score2"`
}

type CourtPayload struct {
	TableID int    `json:"tableId"`
	Court   string `json:"court"`
}

// BracketView is everything a client needs to draw a tournament.
type BracketView struct {
	Tournament    *models.Tournament     `json:"tournament"`
	Participants  []*models.Participant  `json:"participants"`
	Matches       []*models.Match        `json:"matches"`
	RatingRecords []*models.RatingRecord `json:"rating_records"`
	TotalRounds   int                    `json:"total_rounds,omitempty"`
}

type GameService interface {
	// Start validates the approved roster, seeds it and moves the tournament to Drawn.
	Start(ctx context.Context, tournamentID int, callerID string) error
	// BuildTable creates the match rows and moves the tournament to InProgress.
	BuildTable(ctx context.Context, tournamentID int, callerID string) (int, error)
	AdvanceRound(ctx context.Context, tournamentID, round int, callerID string) ([]*models.Match, error)
	// Finalize rates every played match, stores the ranking and closes the tournament.
	Finalize(ctx context.Context, tournamentID int, callerID string) ([]*models.TournamentStanding, error)

	UpdateScore(ctx context.Context, tournamentID, tableID int, callerID string, score1, score2 int) (*models.Match, error)
	UpdateCourt(ctx context.Context, tournamentID, tableID int, callerID, court string) error
	UpdateSeed(ctx context.Context, tournamentID int, callerID, uid string, seed int) error
	// StepState moves the tournament forward to a state that needs no bracket work.
	StepState(ctx context.Context, tournamentID int, callerID string, state models.TournamentState) error

	ListTables(ctx context.Context, tournamentID int) ([]*models.Match, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
	ListRatingRecords(ctx context.Context, tournamentID int) ([]*models.RatingRecord, error)
	ListUserGames(ctx context.Context, uid string) ([]*models.TournamentSummary, error)
}

type gameService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	userRepo        repositories.UserRepository
	ratingRepo      repositories.RatingRepository
	rules           *brackets.Ruleset
	seeder          *brackets.Seeder
	locker          locks.Locker
	broadcaster     Broadcaster
	notifier        TournamentNotifier
	logger          *slog.Logger
	// dispatch runs post-commit side effects; tests replace it with a synchronous call.
	dispatch        func(func())
}

func NewGameService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	ratingRepo repositories.RatingRepository,
	rules *brackets.Ruleset,
	seeder *brackets.Seeder,
	locker locks.Locker,
	broadcaster Broadcaster,
	notifier TournamentNotifier,
	logger *slog.Logger,
) GameService {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = locks.NoopLocker{}
	}
	if seeder == nil {
		seeder = brackets.NewSeeder(rules, nil)
	}
	return &gameService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		userRepo:        userRepo,
		ratingRepo:      ratingRepo,
		rules:           rules,
		seeder:          seeder,
		locker:          locker,
		broadcaster:     broadcaster,
		notifier:        notifier,
		logger:          logger,
		dispatch:        func(f func()) { go f() },
	}
}

type gameEvent struct {
	name    string
	payload interface{}
}

type mutation struct {
	op           string
	tournamentID int
	callerID     string
	ownerOnly    bool
	allowed      []models.TournamentState
}

type mutationFunc func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error)

// mutate takes the advisory lock, locks the tournament row, checks owner and state and runs fn
// in one transaction. Events are broadcast only after commit.
func (s *gameService) mutate(ctx context.Context, m mutation, fn mutationFunc) (*models.Tournament, error) {
	lock, err := s.locker.Acquire(ctx, locks.TournamentKey(m.tournamentID))
	if err != nil {
		if errors.Is(err, locks.ErrLockNotAcquired) {
			return nil, categorized(ErrStateConflict, err)
		}
		return nil, categorized(ErrDependencyFailed, err)
	}
	defer func() {
		if rErr := lock.Release(context.WithoutCancel(ctx)); rErr != nil {
			s.logger.WarnContext(ctx, "failed to release tournament lock",
				slog.Int("tournament_id", m.tournamentID), slog.Any("error", rErr))
		}
	}()

	var tournament *models.Tournament
	var events []gameEvent
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetForUpdate(ctx, exec, m.tournamentID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if m.ownerOnly && t.OwnerID != m.callerID {
			return categorized(ErrForbiddenOperation, ErrNotOwner)
		}
		if !stateIn(t.State, m.allowed) {
			return categorized(ErrStateConflict, fmt.Errorf("%w: %s requires %s, tournament %d is %s",
				ErrInvalidTournamentState, m.op, statesString(m.allowed), t.ID, t.State))
		}
		evs, err := fn(exec, t)
		if err != nil {
			return err
		}
		tournament, events = t, evs
		return nil
	})
	if err != nil {
		return nil, s.operationError(ctx, m, err)
	}

	if s.broadcaster != nil {
		channel := brackets.TournamentChannel(m.tournamentID)
		for _, e := range events {
			s.broadcaster.Broadcast(channel, e.name, e.payload)
		}
	}
	return tournament, nil
}

func (s *gameService) operationError(ctx context.Context, m mutation, err error) error {
	if !isCategorized(err) {
		err = classifyEngineError(mapRepositoryError(err))
	}
	switch {
	case errors.Is(err, ErrBracketStructure):
		s.logger.ErrorContext(ctx, "bracket structure mismatch",
			slog.String("op", m.op), slog.Int("tournament_id", m.tournamentID), slog.Any("error", err))
	case !isCategorized(err):
		s.logger.ErrorContext(ctx, "tournament operation failed",
			slog.String("op", m.op), slog.Int("tournament_id", m.tournamentID), slog.Any("error", err))
	}
	return err
}

// notifyAsync sends the member notification after the request has returned.
func (s *gameService) notifyAsync(ctx context.Context, tournamentID int, title string) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.dispatch(func() {
		if err := s.notifier.NotifyTournament(detached, tournamentID, title); err != nil {
			s.logger.WarnContext(detached, "failed to notify tournament members",
				slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
	})
}

func (s *gameService) Start(ctx context.Context, tournamentID int, callerID string) error {
	m := mutation{
		op:           "start",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      []models.TournamentState{models.StateOpen, models.StateRegistrationClosed},
	}
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		roster, err := s.participantRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}
		approved := realMembers(roster)

		// Сначала валидация, потом любые записи.
		plan, err := s.seeder.Seed(t.Format, t.Mode, approved)
		if err != nil {
			return nil, classifyEngineError(err)
		}

		purged, err := s.participantRepo.DeleteUnapproved(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}
		if err := s.participantRepo.DeleteByes(ctx, exec, t.ID); err != nil {
			return nil, fmt.Errorf("failed to drop stale byes: %w", err)
		}
		for _, a := range plan.Assignments {
			seed := a.SeedIndex
			if err := s.participantRepo.UpdateSeed(ctx, exec, t.ID, a.ParticipantID, &seed); err != nil {
				return nil, err
			}
		}
		for _, seed := range plan.ByeSeeds {
			if err := s.participantRepo.CreateBye(ctx, exec, t.ID, seed); err != nil {
				return nil, err
			}
		}
		if err := s.tournamentRepo.UpdateState(ctx, exec, t.ID, models.StateDrawn); err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "tournament seeded",
			slog.Int("tournament_id", t.ID),
			slog.String("format", string(t.Format)),
			slog.String("mode", string(t.Mode)),
			slog.Int("slots", plan.SlotCount),
			slog.Int("byes", len(plan.ByeSeeds)),
			slog.Int64("purged", purged))
		return []gameEvent{
			{name: EventRefreshMember},
			{name: EventChangedState, payload: StatePayload{State: models.StateDrawn}},
		}, nil
	})
	if err != nil {
		return err
	}
	s.notifyAsync(ctx, tournamentID, "The bracket has been drawn")
	return nil
}

func (s *gameService) BuildTable(ctx context.Context, tournamentID int, callerID string) (int, error) {
	m := mutation{
		op:           "build_table",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      []models.TournamentState{models.StateDrawn},
	}
	var count int
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		builder, err := brackets.NewTableBuilder(t.Format, s.rules)
		if err != nil {
			return nil, classifyEngineError(err)
		}
		roster, err := s.participantRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}
		matches, err := builder.BuildTable(ctx, brackets.BuildTableParams{Tournament: t, Participants: roster})
		if err != nil {
			return nil, classifyEngineError(err)
		}
		if err := s.matchRepo.BatchCreate(ctx, exec, matches); err != nil {
			return nil, err
		}
		if err := s.tournamentRepo.UpdateState(ctx, exec, t.ID, models.StateInProgress); err != nil {
			return nil, err
		}
		count = len(matches)
		s.logger.InfoContext(ctx, "match table built",
			slog.Int("tournament_id", t.ID), slog.String("builder", builder.GetName()), slog.Int("matches", count))
		return []gameEvent{
			{name: EventRefreshGame},
			{name: EventChangedState, payload: StatePayload{State: models.StateInProgress}},
		}, nil
	})
	if err != nil {
		return 0, err
	}
	s.notifyAsync(ctx, tournamentID, "The game has started")
	return count, nil
}

func (s *gameService) AdvanceRound(ctx context.Context, tournamentID, round int, callerID string) ([]*models.Match, error) {
	m := mutation{
		op:           "advance_round",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      []models.TournamentState{models.StateInProgress},
	}
	var seated []*models.Match
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		if t.Format != models.FormatElimination {
			return nil, categorized(ErrValidationFailed, ErrNotElimination)
		}
		matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID, t.Mode)
		if err != nil {
			return nil, err
		}
		next, err := brackets.AdvanceRound(t.Mode, matches, round)
		if err != nil {
			if errors.Is(err, brackets.ErrIncompleteMatch) || errors.Is(err, brackets.ErrPlaceholderMissing) ||
				errors.Is(err, brackets.ErrWinnerCountMismatch) {
				s.logger.ErrorContext(ctx, "cannot advance round",
					slog.Int("tournament_id", t.ID),
					slog.Int("round", round),
					slog.Int("round_matches", len(brackets.RoundMatches(matches, round))),
					slog.Int("next_matches", len(brackets.RoundMatches(matches, round+1))),
					slog.Any("error", err))
			}
			return nil, classifyEngineError(err)
		}
		for _, nm := range next {
			if err := s.matchRepo.UpdateLineup(ctx, exec, nm); err != nil {
				return nil, err
			}
		}
		seated = next
		return []gameEvent{{name: EventRefreshGame}}, nil
	})
	if err != nil {
		return nil, err
	}
	return seated, nil
}

func (s *gameService) Finalize(ctx context.Context, tournamentID int, callerID string) ([]*models.TournamentStanding, error) {
	m := mutation{
		op:           "finalize",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      []models.TournamentState{models.StateInProgress},
	}
	var standings []*models.TournamentStanding
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		calc, err := brackets.NewRankingCalculator(t.Format, t.Mode)
		if err != nil {
			return nil, classifyEngineError(err)
		}
		matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID, t.Mode)
		if err != nil {
			return nil, err
		}
		roster, err := s.participantRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}

		if err := s.applyRatings(ctx, exec, t, matches); err != nil {
			return nil, err
		}

		standings = calc.Rank(brackets.RankingInput{
			TournamentID: t.ID,
			TargetScore:  t.TargetScore,
			Matches:      matches,
			Roster:       roster,
		})
		for _, st := range standings {
			if err := s.participantRepo.UpdateStanding(ctx, exec, st); err != nil {
				return nil, err
			}
		}
		if err := s.tournamentRepo.UpdateState(ctx, exec, t.ID, models.StateFinished); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "tournament finalized",
			slog.Int("tournament_id", t.ID), slog.String("ranking", calc.GetName()), slog.Int("ranked", len(standings)))
		return []gameEvent{
			{name: EventRefreshMember},
			{name: EventChangedState, payload: StatePayload{State: models.StateFinished}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyAsync(ctx, tournamentID, "The game has finished")
	return standings, nil
}

// applyRatings rates matches in table order, appends the audit records and stores the new levels.
func (s *gameService) applyRatings(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, matches []*models.Match) error {
	rated := RatedMatches(matches)
	if len(rated) == 0 {
		return nil
	}
	uids := ratedPlayers(rated)
	levels, err := s.userRepo.GetLevels(ctx, exec, uids)
	if err != nil {
		return err
	}
	counts, err := s.ratingRepo.CountByUsers(ctx, exec, uids)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		if _, ok := levels[uid]; !ok {
			s.logger.WarnContext(ctx, "player has no user row, skipped in rating",
				slog.Int("tournament_id", t.ID), slog.String("uid", uid))
		}
	}

	records, finalLevels := ComputeRatings(t, rated, levels, counts)
	for _, rec := range records {
		if err := s.ratingRepo.Create(ctx, exec, rec); err != nil {
			return err
		}
	}
	changed := make([]string, 0, len(finalLevels))
	for uid := range finalLevels {
		changed = append(changed, uid)
	}
	sort.Strings(changed)
	for _, uid := range changed {
		if err := s.userRepo.UpdateLevel(ctx, exec, uid, finalLevels[uid]); err != nil {
			return err
		}
	}
	return nil
}

// RatedMatches keeps played, decided matches with both sides present, ordered by table id.
func RatedMatches(matches []*models.Match) []*models.Match {
	out := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.IsWalkover || m.Lineup.Side1().Empty() || m.Lineup.Side2().Empty() || !m.HasScores() {
			continue
		}
		if *m.Score1 == *m.Score2 {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableID < out[j].TableID })
	return out
}

func ratedPlayers(matches []*models.Match) []string {
	seen := make(map[string]bool)
	var uids []string
	for _, m := range matches {
		for _, uid := range append(m.Lineup.Side1().Members(), m.Lineup.Side2().Members()...) {
			if !seen[uid] {
				seen[uid] = true
				uids = append(uids, uid)
			}
		}
	}
	sort.Strings(uids)
	return uids
}

// ComputeRatings applies the rating engine match by match. Every player of a match is rated
// against the opponents' average level as it stood before that match; later matches see the
// updated levels and record counts. Players missing from levels are not rated.
func ComputeRatings(t *models.Tournament, matches []*models.Match, levels map[string]float64, counts map[string]int) ([]*models.RatingRecord, map[string]float64) {
	current := make(map[string]float64, len(levels))
	for uid, lv := range levels {
		current[uid] = lv
	}
	records := make(map[string]int, len(counts))
	for uid, n := range counts {
		records[uid] = n
	}

	var out []*models.RatingRecord
	touched := make(map[string]float64)

	for _, m := range matches {
		side1, side2 := known(m.Lineup.Side1().Members(), current), known(m.Lineup.Side2().Members(), current)
		if len(side1) == 0 || len(side2) == 0 {
			continue
		}
		avg1, avg2 := average(side1, current), average(side2, current)
		diff := *m.Score1 - *m.Score2

		type change struct {
			uid    string
			before float64
			delta  float64
		}
		var changes []change
		rate := func(members []string, scoreDiff int, opponentAvg float64) {
			for _, uid := range members {
				before := current[uid]
				delta := brackets.RatingDelta(brackets.RatingInput{
					ScoreDiff:   scoreDiff,
					RatingGap:   opponentAvg - before,
					Provisional: brackets.IsProvisional(records[uid]),
					TargetScore: t.TargetScore,
				})
				changes = append(changes, change{uid: uid, before: before, delta: delta})
			}
		}
		rate(side1, diff, avg2)
		rate(side2, -diff, avg1)

		for _, c := range changes {
			after, applied := brackets.ApplyRating(c.before, c.delta)
			current[c.uid] = after
			touched[c.uid] = after
			records[c.uid]++
			out = append(out, &models.RatingRecord{
				UserID:       c.uid,
				TournamentID: t.ID,
				TableID:      m.TableID,
				Fluctuation:  applied,
				Original:     c.before,
			})
		}
	}
	return out, touched
}

func known(members []string, levels map[string]float64) []string {
	out := make([]string, 0, len(members))
	for _, uid := range members {
		if _, ok := levels[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

func average(members []string, levels map[string]float64) float64 {
	sum := 0.0
	for _, uid := range members {
		sum += levels[uid]
	}
	return sum / float64(len(members))
}

func (s *gameService) UpdateScore(ctx context.Context, tournamentID, tableID int, callerID string, score1, score2 int) (*models.Match, error) {
	m := mutation{
		op:           "update_score",
		tournamentID: tournamentID,
		callerID:     callerID,
		allowed:      []models.TournamentState{models.StateInProgress},
	}
	var updated *models.Match
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		if score1 < 0 || score2 < 0 || score1 > t.TargetScore || score2 > t.TargetScore {
			return nil, categorized(ErrValidationFailed,
				fmt.Errorf("%w: %d:%d with target %d", ErrScoreOutOfRange, score1, score2, t.TargetScore))
		}
		match, err := s.matchRepo.GetByID(ctx, exec, t.ID, tableID, t.Mode)
		if err != nil {
			return nil, err
		}
		if match.IsWalkover || match.Lineup.Side1().Empty() || match.Lineup.Side2().Empty() {
			return nil, categorized(ErrValidationFailed, fmt.Errorf("%w: table %d", ErrMatchNotPlayable, tableID))
		}
		if callerID != t.OwnerID && !playsIn(match, callerID) {
			return nil, categorized(ErrForbiddenOperation, ErrNotMatchPlayer)
		}
		if t.Format == models.FormatElimination {
			if err := s.checkNextRoundOpen(ctx, exec, t, match.Round()); err != nil {
				return nil, err
			}
		}
		if err := s.matchRepo.UpdateScore(ctx, exec, t.ID, tableID, &score1, &score2); err != nil {
			return nil, err
		}
		match.Score1, match.Score2 = &score1, &score2
		updated = match
		return []gameEvent{{name: EventScore, payload: ScorePayload{TableID: tableID, Score1: score1, Score2: score2}}}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkNextRoundOpen refuses to touch round once a match of round+1 has a score: the winners
// of round are already playing there.
func (s *gameService) checkNextRoundOpen(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, round int) error {
	matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID, t.Mode)
	if err != nil {
		return err
	}
	for _, nm := range brackets.RoundMatches(matches, round+1) {
		if nm.Score1 != nil || nm.Score2 != nil {
			return categorized(ErrStateConflict, fmt.Errorf("%w: table %d", brackets.ErrNextRoundStarted, nm.TableID))
		}
	}
	return nil
}

func playsIn(m *models.Match, uid string) bool {
	for _, member := range append(m.Lineup.Side1().Members(), m.Lineup.Side2().Members()...) {
		if member == uid {
			return true
		}
	}
	return false
}

func (s *gameService) UpdateCourt(ctx context.Context, tournamentID, tableID int, callerID, court string) error {
	court = strings.TrimSpace(court)
	if court == "" {
		return categorized(ErrValidationFailed, ErrCourtRequired)
	}
	m := mutation{
		op:           "update_court",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      []models.TournamentState{models.StateInProgress},
	}
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		if err := s.matchRepo.UpdateCourt(ctx, exec, t.ID, tableID, &court); err != nil {
			return nil, err
		}
		return []gameEvent{{name: EventCourt, payload: CourtPayload{TableID: tableID, Court: court}}}, nil
	})
	return err
}

// stateSteps lists the states StepState may set and where they can be reached from.
// Drawn, InProgress and Finished belong to Start, BuildTable and Finalize.
var stateSteps = map[models.TournamentState][]models.TournamentState{
	models.StateRegistrationClosed: {models.StateOpen},
}

func (s *gameService) StepState(ctx context.Context, tournamentID int, callerID string, state models.TournamentState) error {
	from, ok := stateSteps[state]
	if !ok {
		return categorized(ErrValidationFailed, fmt.Errorf("%w: %s", ErrStateStepNotAllowed, state))
	}
	m := mutation{
		op:           "step_state",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      from,
	}
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		if err := s.tournamentRepo.UpdateState(ctx, exec, t.ID, state); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "tournament state stepped",
			slog.Int("tournament_id", t.ID), slog.String("from", t.State.String()), slog.String("to", state.String()))
		return []gameEvent{
			{name: EventRefreshMember},
			{name: EventChangedState, payload: StatePayload{State: state}},
		}, nil
	})
	return err
}

// UpdateSeed moves the participant's team to seed. A team already there takes the vacated seed.
func (s *gameService) UpdateSeed(ctx context.Context, tournamentID int, callerID, uid string, seed int) error {
	m := mutation{
		op:           "update_seed",
		tournamentID: tournamentID,
		callerID:     callerID,
		ownerOnly:    true,
		allowed:      []models.TournamentState{models.StateDrawn},
	}
	_, err := s.mutate(ctx, m, func(exec repositories.SQLExecutor, t *models.Tournament) ([]gameEvent, error) {
		target, err := s.participantRepo.GetByID(ctx, exec, t.ID, uid)
		if err != nil {
			return nil, err
		}
		if target.IsBye {
			return nil, categorized(ErrValidationFailed, ErrByeSeedLocked)
		}
		if target.SeedIndex == nil {
			return nil, categorized(ErrStateConflict, fmt.Errorf("%w: %s has no seed", ErrInvalidTournamentState, uid))
		}
		roster, err := s.participantRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}

		slotCount := 0
		for _, p := range roster {
			if p.SeedIndex != nil {
				slotCount = max(slotCount, *p.SeedIndex)
			}
		}
		if seed < 1 || seed > slotCount {
			return nil, categorized(ErrValidationFailed, fmt.Errorf("%w: %d not in 1..%d", ErrSeedOutOfRange, seed, slotCount))
		}
		from := *target.SeedIndex
		if from == seed {
			return nil, nil
		}

		var moving, displaced []string
		for _, p := range roster {
			if p.SeedIndex == nil {
				continue
			}
			switch *p.SeedIndex {
			case from:
				moving = append(moving, p.UserID)
			case seed:
				if p.IsBye {
					return nil, categorized(ErrValidationFailed, fmt.Errorf("%w: seed %d holds a bye", ErrSeedTaken, seed))
				}
				displaced = append(displaced, p.UserID)
			}
		}
		for _, id := range moving {
			if err := s.participantRepo.UpdateSeed(ctx, exec, t.ID, id, &seed); err != nil {
				return nil, err
			}
		}
		for _, id := range displaced {
			if err := s.participantRepo.UpdateSeed(ctx, exec, t.ID, id, &from); err != nil {
				return nil, err
			}
		}
		return []gameEvent{{name: EventRefreshMember}}, nil
	})
	return err
}

func (s *gameService) ListTables(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, t.ID, t.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of tournament %d: %w", tournamentID, err)
	}
	return matches, nil
}

func (s *gameService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	view := &BracketView{Tournament: t}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gCtx, nil, t.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch participants: %w", err)
		}
		view.Participants = participants
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, nil, t.ID, t.Mode)
		if err != nil {
			return fmt.Errorf("failed to fetch matches: %w", err)
		}
		view.Matches = matches
		return nil
	})
	g.Go(func() error {
		records, err := s.ratingRepo.ListByTournament(gCtx, nil, t.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch rating records: %w", err)
		}
		view.RatingRecords = records
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "failed to load bracket", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return nil, err
	}
	if t.Format == models.FormatElimination {
		view.TotalRounds = brackets.LastRound(view.Matches)
	}
	return view, nil
}

func (s *gameService) ListRatingRecords(ctx context.Context, tournamentID int) ([]*models.RatingRecord, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, mapRepositoryError(err)
	}
	records, err := s.ratingRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating records of tournament %d: %w", tournamentID, err)
	}
	return records, nil
}

func (s *gameService) ListUserGames(ctx context.Context, uid string) ([]*models.TournamentSummary, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, categorized(ErrValidationFailed, ErrUserIDRequired)
	}
	games, err := s.tournamentRepo.ListByMember(ctx, nil, uid)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return games, nil
}
