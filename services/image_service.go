package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Epin-platforms/nadal-server/models"
	"github.com/Epin-platforms/nadal-server/repositories"
	"github.com/Epin-platforms/nadal-server/storage"
)

const imageKeyPrefix = "images"

type ImageService interface {
	// UploadImage stores the image once per content hash and returns its record.
	UploadImage(ctx context.Context, file io.Reader, contentType string) (*models.Image, error)
}

type imageService struct {
	imageRepo repositories.ImageRepository
	uploader  storage.FileUploader
	logger    *slog.Logger
}

func NewImageService(imageRepo repositories.ImageRepository, uploader storage.FileUploader, logger *slog.Logger) ImageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &imageService{imageRepo: imageRepo, uploader: uploader, logger: logger}
}

func (s *imageService) UploadImage(ctx context.Context, file io.Reader, contentType string) (*models.Image, error) {
	if s.uploader == nil {
		return nil, categorized(ErrDependencyFailed, ErrUploadDisabled)
	}
	if file == nil {
		return nil, categorized(ErrValidationFailed, ErrImageRequired)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, categorized(ErrValidationFailed, fmt.Errorf("%w: %q", ErrUnsupportedImageType, contentType))
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, categorized(ErrValidationFailed, err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, categorized(ErrValidationFailed, ErrImageRequired)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.imageRepo.GetByHash(ctx, nil, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrImageNotFound) {
		return nil, err
	}

	key := storage.NewObjectKey(imageKeyPrefix, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, categorized(ErrDependencyFailed, err)
	}

	img := &models.Image{URL: result.Location, ObjectKey: result.Key, ContentType: contentType, Hash: hash}
	if err := s.imageRepo.Create(ctx, nil, img); err != nil {
		if !errors.Is(err, repositories.ErrImageConflict) {
			return nil, err
		}
		// Параллельная загрузка того же файла успела раньше: отдаём её запись, свой объект удаляем.
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete duplicate upload", slog.String("key", key), slog.Any("error", delErr))
		}
		return s.imageRepo.GetByHash(ctx, nil, hash)
	}
	return img, nil
}
