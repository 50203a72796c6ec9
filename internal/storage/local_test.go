package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/robodata/internal/config"
	"github.com/JonMunkholm/robodata/internal/core"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "datasets/a/meta/info.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "datasets/a/meta/info.json", []byte(`{"fps":30}`)))

	ok, err = store.Exists(ctx, "datasets/a/meta/info.json")
	require.NoError(t, err)
	assert.True(t, ok)

	// Directories are not objects.
	ok, err = store.Exists(ctx, "datasets/a/meta")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := store.Download(ctx, "datasets/a/meta/info.json")
	require.NoError(t, err)
	assert.Equal(t, `{"fps":30}`, string(data))
}

func TestLocalStore_PresignUpload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	target, err := store.PresignUpload(context.Background(), "datasets/b", core.UploadConstraints{Expiry: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "datasets/b", target.Path)
	assert.True(t, strings.HasPrefix(target.URL, "file://"))
	assert.True(t, strings.HasSuffix(target.URL, "datasets/b"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), target.ExpiresAt, time.Minute)
}

func TestLocalStore_DeletePrefix(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "datasets/a/meta/info.json", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "datasets/ab/meta/info.json", []byte(`{}`)))

	require.NoError(t, store.DeletePrefix(ctx, "datasets/a"))

	ok, err := store.Exists(ctx, "datasets/a/meta/info.json")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, "datasets/ab/meta/info.json")
	require.NoError(t, err)
	assert.True(t, ok, "sibling prefix must survive")

	assert.Error(t, store.DeletePrefix(ctx, ""))
}

func TestLocalStore_RejectsEscapes(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestNewMinioStore_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore(configWithEndpoint(""))
	assert.Error(t, err)

	s, err := NewMinioStore(configWithEndpoint("https://s3.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "datasets", s.bucket)
}

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, isNoSuchKey(assert.AnError))
}

func configWithEndpoint(endpoint string) config.StorageConfig {
	return config.StorageConfig{
		Endpoint:  endpoint,
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "datasets",
	}
}
