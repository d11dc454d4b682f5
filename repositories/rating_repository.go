package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Epin-platforms/nadal-server/models"
)

var (
	ErrRatingRecordConflict = errors.New("rating record already exists for this match")
	ErrRatingUserInvalid    = errors.New("rating record references an unknown user or tournament")
)

// RatingRepository stores the append-only user_levels audit trail.
type RatingRepository interface {
	Create(ctx context.Context, exec SQLExecutor, record *models.RatingRecord) error
	CountByUsers(ctx context.Context, exec SQLExecutor, uids []string) (map[string]int, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RatingRecord, error)
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRatingRepository) Create(ctx context.Context, exec SQLExecutor, record *models.RatingRecord) error {
	query := `
		INSERT INTO user_levels (uid, schedule_id, table_id, fluctuation, original)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		record.UserID, record.TournamentID, record.TableID, record.Fluctuation, record.Original,
	).Scan(&record.ID, &record.CreatedAt)
	return mapPQError(err, ErrRatingRecordConflict, ErrRatingUserInvalid)
}

func (r *postgresRatingRepository) CountByUsers(ctx context.Context, exec SQLExecutor, uids []string) (map[string]int, error) {
	counts := make(map[string]int, len(uids))
	if len(uids) == 0 {
		return counts, nil
	}
	query := `SELECT uid, COUNT(*) FROM user_levels WHERE uid = ANY($1) GROUP BY uid`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, fmt.Errorf("failed to count rating records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		var n int
		if err := rows.Scan(&uid, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rating count: %w", err)
		}
		counts[uid] = n
	}
	return counts, rows.Err()
}

func (r *postgresRatingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RatingRecord, error) {
	query := `
		SELECT id, uid, schedule_id, table_id, fluctuation, original, created_at
		FROM user_levels WHERE schedule_id = $1
		ORDER BY table_id ASC, uid ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating records for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	records := make([]*models.RatingRecord, 0)
	for rows.Next() {
		var rec models.RatingRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TournamentID, &rec.TableID, &rec.Fluctuation, &rec.Original, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
