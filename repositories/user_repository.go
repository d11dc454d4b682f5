package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Epin-platforms/nadal-server/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, uid string) (*models.User, error)
	// GetLevels returns the current rating of every listed user that exists.
	GetLevels(ctx context.Context, exec SQLExecutor, uids []string) (map[string]float64, error)
	UpdateLevel(ctx context.Context, exec SQLExecutor, uid string, level float64) error
	GetFCMTokens(ctx context.Context, exec SQLExecutor, uids []string) (map[string]string, error)
	UpdateFCMToken(ctx context.Context, exec SQLExecutor, uid string, token *string) error
	// ClearFCMToken removes the token only if it still matches, so a fresh token is never lost.
	ClearFCMToken(ctx context.Context, exec SQLExecutor, uid, token string) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, uid string) (*models.User, error) {
	query := `SELECT uid, nickname, level, fcm_token, updated_at FROM users WHERE uid = $1`
	var u models.User
	var token sql.NullString
	err := r.getExecutor(exec).QueryRowContext(ctx, query, uid).Scan(&u.ID, &u.Nickname, &u.Level, &token, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", uid, err)
	}
	if token.Valid {
		u.FCMToken = &token.String
	}
	return &u, nil
}

func (r *postgresUserRepository) GetLevels(ctx context.Context, exec SQLExecutor, uids []string) (map[string]float64, error) {
	levels := make(map[string]float64, len(uids))
	if len(uids) == 0 {
		return levels, nil
	}
	query := `SELECT uid, level FROM users WHERE uid = ANY($1)`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		var level float64
		if err := rows.Scan(&uid, &level); err != nil {
			return nil, fmt.Errorf("failed to scan level row: %w", err)
		}
		levels[uid] = level
	}
	return levels, rows.Err()
}

func (r *postgresUserRepository) UpdateLevel(ctx context.Context, exec SQLExecutor, uid string, level float64) error {
	query := `UPDATE users SET level = $1, updated_at = NOW() WHERE uid = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, level, uid)
	if err != nil {
		return fmt.Errorf("failed to update level of %s: %w", uid, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) GetFCMTokens(ctx context.Context, exec SQLExecutor, uids []string) (map[string]string, error) {
	tokens := make(map[string]string, len(uids))
	if len(uids) == 0 {
		return tokens, nil
	}
	query := `SELECT uid, fcm_token FROM users WHERE uid = ANY($1) AND fcm_token IS NOT NULL AND fcm_token <> ''`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, fmt.Errorf("failed to query fcm tokens: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid, token string
		if err := rows.Scan(&uid, &token); err != nil {
			return nil, fmt.Errorf("failed to scan fcm token row: %w", err)
		}
		tokens[uid] = token
	}
	return tokens, rows.Err()
}

func (r *postgresUserRepository) UpdateFCMToken(ctx context.Context, exec SQLExecutor, uid string, token *string) error {
	query := `UPDATE users SET fcm_token = $1, updated_at = NOW() WHERE uid = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, token, uid)
	if err != nil {
		return fmt.Errorf("failed to update fcm token of %s: %w", uid, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) ClearFCMToken(ctx context.Context, exec SQLExecutor, uid, token string) error {
	query := `UPDATE users SET fcm_token = NULL WHERE uid = $1 AND fcm_token = $2`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, uid, token)
	if err != nil {
		return fmt.Errorf("failed to clear fcm token of %s: %w", uid, err)
	}
	return nil
}
