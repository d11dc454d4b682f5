package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Epin-platforms/nadal-server/models"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageConflict = errors.New("image with this hash already exists")
)

type ImageRepository interface {
	GetByHash(ctx context.Context, exec SQLExecutor, hash string) (*models.Image, error)
	Create(ctx context.Context, exec SQLExecutor, img *models.Image) error
}

type postgresImageRepository struct {
	db *sql.DB
}

func NewPostgresImageRepository(db *sql.DB) ImageRepository {
	return &postgresImageRepository{db: db}
}

func (r *postgresImageRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresImageRepository) GetByHash(ctx context.Context, exec SQLExecutor, hash string) (*models.Image, error) {
	query := `SELECT id, url, object_key, content_type, hash, created_at FROM images WHERE hash = $1`
	var img models.Image
	err := r.getExecutor(exec).QueryRowContext(ctx, query, hash).
		Scan(&img.ID, &img.URL, &img.ObjectKey, &img.ContentType, &img.Hash, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image by hash: %w", err)
	}
	return &img, nil
}

func (r *postgresImageRepository) Create(ctx context.Context, exec SQLExecutor, img *models.Image) error {
	query := `
		INSERT INTO images (url, object_key, content_type, hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, img.URL, img.ObjectKey, img.ContentType, img.Hash).
		Scan(&img.ID, &img.CreatedAt)
	return mapPQError(err, ErrImageConflict, nil)
}
