package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadImage_DeduplicatesByContent(t *testing.T) {
	store := newMemStore()
	uploader := &fakeUploader{}
	svc := NewImageService(memImages{store}, uploader, nil)
	ctx := context.Background()

	first, err := svc.UploadImage(ctx, strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.ObjectKey, "images/"))
	assert.True(t, strings.HasSuffix(first.ObjectKey, ".png"))
	assert.Equal(t, "https://cdn.test/"+first.ObjectKey, first.URL)
	assert.Len(t, first.Hash, 64)

	second, err := svc.UploadImage(ctx, strings.NewReader("png-bytes"), "IMAGE/PNG")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, uploader.uploads)

	other, err := svc.UploadImage(ctx, strings.NewReader("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.True(t, strings.HasSuffix(other.ObjectKey, ".jpg"))
	assert.Equal(t, 2, uploader.uploads)
}

func TestUploadImage_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := NewImageService(memImages{newMemStore()}, &fakeUploader{}, nil)

	_, err := svc.UploadImage(ctx, strings.NewReader("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, ErrUnsupportedImageType)

	_, err = svc.UploadImage(ctx, strings.NewReader(""), "image/png")
	assert.ErrorIs(t, err, ErrImageRequired)

	_, err = svc.UploadImage(ctx, nil, "image/png")
	assert.ErrorIs(t, err, ErrImageRequired)
}

func TestUploadImage_UploaderFailures(t *testing.T) {
	ctx := context.Background()

	disabled := NewImageService(memImages{newMemStore()}, nil, nil)
	_, err := disabled.UploadImage(ctx, strings.NewReader("x"), "image/png")
	assert.ErrorIs(t, err, ErrDependencyFailed)
	assert.ErrorIs(t, err, ErrUploadDisabled)

	store := newMemStore()
	failing := NewImageService(memImages{store}, &fakeUploader{err: errors.New("r2 down")}, nil)
	_, err = failing.UploadImage(ctx, strings.NewReader("x"), "image/png")
	assert.ErrorIs(t, err, ErrDependencyFailed)
	assert.Empty(t, store.state.images)
}
