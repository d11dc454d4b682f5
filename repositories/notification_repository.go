package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Epin-platforms/nadal-server/models"
)

var ErrNotificationUserInvalid = errors.New("notification references an unknown user")

type NotificationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, n *models.Notification) error
	ListSince(ctx context.Context, exec SQLExecutor, uid string, since time.Time) ([]*models.Notification, error)
	DeleteOlderThan(ctx context.Context, exec SQLExecutor, before time.Time) (int64, error)
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresNotificationRepository) Create(ctx context.Context, exec SQLExecutor, n *models.Notification) error {
	query := `
		INSERT INTO notifications (uid, title, sub_title, routing)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, n.UserID, n.Title, n.SubTitle, n.Routing).Scan(&n.ID, &n.CreatedAt)
	return mapPQError(err, nil, ErrNotificationUserInvalid)
}

func (r *postgresNotificationRepository) ListSince(ctx context.Context, exec SQLExecutor, uid string, since time.Time) ([]*models.Notification, error) {
	query := `
		SELECT id, uid, title, sub_title, routing, created_at
		FROM notifications
		WHERE uid = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, uid, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications of %s: %w", uid, err)
	}
	defer rows.Close()

	list := make([]*models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		var sub, routing sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &sub, &routing, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sub.Valid {
			n.SubTitle = &sub.String
		}
		if routing.Valid {
			n.Routing = &routing.String
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}

func (r *postgresNotificationRepository) DeleteOlderThan(ctx context.Context, exec SQLExecutor, before time.Time) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return result.RowsAffected()
}
