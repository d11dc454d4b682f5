package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey("images/", ".PNG")
	assert.True(t, strings.HasPrefix(key, "images/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, NewObjectKey("images", ".png"))

	assert.True(t, strings.HasSuffix(NewObjectKey("images", "jpg"), ".jpg"))
}

func TestPublicURL(t *testing.T) {
	base, err := parseBaseURL("https://cdn.example.com/nadal")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/nadal/images/a.png", publicURL(base, "images/a.png"))
	assert.Equal(t, "https://cdn.example.com/nadal/images/a.png", publicURL(base, "/images/a.png"))
	assert.Empty(t, publicURL(base, ""))
	assert.Empty(t, publicURL(nil, "images/a.png"))
}

func TestParseBaseURL_Invalid(t *testing.T) {
	_, err := parseBaseURL("cdn.example.com")
	assert.Error(t, err)
}

func TestConfigEnabled(t *testing.T) {
	cfg := CloudflareR2UploaderConfig{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s", BucketName: "b", PublicBaseURL: "https://x"}
	assert.True(t, cfg.Enabled())
	cfg.BucketName = ""
	assert.False(t, cfg.Enabled())
}
