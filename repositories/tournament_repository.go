package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Epin-platforms/nadal-server/models"
)

var ErrTournamentNotFound = errors.New("tournament not found")

type TournamentRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetForUpdate locks the tournament row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.TournamentState) error
	// ListByMember returns the games uid has joined, newest first, with their member count.
	ListByMember(ctx context.Context, exec SQLExecutor, uid string) ([]*models.TournamentSummary, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, owner_id, title, format, mode, target_score, state, created_at, updated_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Format, &t.Mode, &t.TargetScore, &t.State, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM schedules WHERE id = $1 AND tag = 'game'`
	t, err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, err
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM schedules WHERE id = $1 AND tag = 'game' FOR UPDATE`
	t, err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to lock tournament %d: %w", id, err)
	}
	return t, err
}

// UpdateState refuses to move the state backwards.
func (r *postgresTournamentRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.TournamentState) error {
	query := `UPDATE schedules SET state = $1, updated_at = NOW() WHERE id = $2 AND state <= $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to update state of tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListByMember(ctx context.Context, exec SQLExecutor, uid string) ([]*models.TournamentSummary, error) {
	query := `
		SELECT s.id, s.owner_id, s.title, s.format, s.mode, s.target_score, s.state, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM schedule_members c WHERE c.schedule_id = s.id AND NOT c.is_bye) AS member_count
		FROM schedules s
		INNER JOIN schedule_members sm ON sm.schedule_id = s.id
		WHERE sm.uid = $1 AND s.tag = 'game'
		ORDER BY s.created_at DESC, s.id DESC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list games of user %s: %w", uid, err)
	}
	defer rows.Close()

	summaries := make([]*models.TournamentSummary, 0)
	for rows.Next() {
		var sum models.TournamentSummary
		t := &sum.Tournament
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Format, &t.Mode, &t.TargetScore, &t.State,
			&t.CreatedAt, &t.UpdatedAt, &sum.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan game of user %s: %w", uid, err)
		}
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games of user %s: %w", uid, err)
	}
	return summaries, nil
}
