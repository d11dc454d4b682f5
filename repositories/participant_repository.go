package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Epin-platforms/nadal-server/models"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantConflict = errors.New("participant already exists in tournament")
	ErrParticipantInvalid  = errors.New("participant references an unknown tournament")
)

type ParticipantRepository interface {
	// ListByTournament returns every roster row, bye rows included, ordered by seed then uid.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participant, error)
	GetByID(ctx context.Context, exec SQLExecutor, tournamentID int, uid string) (*models.Participant, error)
	DeleteUnapproved(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error)
	UpdateSeed(ctx context.Context, exec SQLExecutor, tournamentID int, uid string, seed *int) error
	CreateBye(ctx context.Context, exec SQLExecutor, tournamentID, seed int) error
	DeleteByes(ctx context.Context, exec SQLExecutor, tournamentID int) error
	// UpdateStanding writes the finalize result into the participant row.
	UpdateStanding(ctx context.Context, exec SQLExecutor, standing *models.TournamentStanding) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantSelect = `
	SELECT sm.schedule_id, sm.uid, u.nickname, sm.approved, sm.team_name, sm.seed_index,
	       sm.is_bye, sm.win_point, sm.score_diff, sm.ranking, sm.created_at
	FROM schedule_members sm
	LEFT JOIN users u ON u.uid = sm.uid`

func scanParticipant(row interface{ Scan(...interface{}) error }) (*models.Participant, error) {
	var p models.Participant
	var nickname, teamName sql.NullString
	var seed, ranking sql.NullInt64
	err := row.Scan(&p.TournamentID, &p.UserID, &nickname, &p.Approved, &teamName, &seed,
		&p.IsBye, &p.WinPoint, &p.ScoreDiff, &ranking, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if nickname.Valid {
		p.Nickname = &nickname.String
	}
	if teamName.Valid {
		p.TeamName = &teamName.String
	}
	if seed.Valid {
		v := int(seed.Int64)
		p.SeedIndex = &v
	}
	if ranking.Valid {
		v := int(ranking.Int64)
		p.Ranking = &v
	}
	return &p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	query := participantSelect + `
	WHERE sm.schedule_id = $1
	ORDER BY sm.seed_index ASC NULLS LAST, sm.created_at ASC, sm.uid ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, scanErr := scanParticipant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, tournamentID int, uid string) (*models.Participant, error) {
	query := participantSelect + ` WHERE sm.schedule_id = $1 AND sm.uid = $2`
	return scanParticipant(r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, uid))
}

func (r *postgresParticipantRepository) DeleteUnapproved(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error) {
	query := `DELETE FROM schedule_members WHERE schedule_id = $1 AND approved = FALSE AND is_bye = FALSE`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge unapproved participants of tournament %d: %w", tournamentID, err)
	}
	return result.RowsAffected()
}

func (r *postgresParticipantRepository) UpdateSeed(ctx context.Context, exec SQLExecutor, tournamentID int, uid string, seed *int) error {
	query := `UPDATE schedule_members SET seed_index = $1 WHERE schedule_id = $2 AND uid = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, seed, tournamentID, uid)
	if err != nil {
		return fmt.Errorf("failed to update seed of %s in tournament %d: %w", uid, tournamentID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) CreateBye(ctx context.Context, exec SQLExecutor, tournamentID, seed int) error {
	query := `
		INSERT INTO schedule_members (schedule_id, uid, approved, seed_index, is_bye)
		VALUES ($1, $2, TRUE, $3, TRUE)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID, models.ByeID(seed), seed)
	return mapPQError(err, ErrParticipantConflict, ErrParticipantInvalid)
}

func (r *postgresParticipantRepository) DeleteByes(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	query := `DELETE FROM schedule_members WHERE schedule_id = $1 AND is_bye = TRUE`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID)
	return err
}

func (r *postgresParticipantRepository) UpdateStanding(ctx context.Context, exec SQLExecutor, standing *models.TournamentStanding) error {
	query := `
		UPDATE schedule_members SET win_point = $1, score_diff = $2, ranking = $3
		WHERE schedule_id = $4 AND uid = $5`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		standing.WinPoint, standing.ScoreDifference, standing.Rank, standing.TournamentID, standing.ParticipantID)
	if err != nil {
		return fmt.Errorf("failed to store standing of %s: %w", standing.ParticipantID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
