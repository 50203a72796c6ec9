package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/robodata/internal/core"
)

// LocalStore implements core.Storage on a directory. Object keys map to
// slash-separated paths under root. Upload targets are file:// URLs, so it
// is only useful when the uploader shares the filesystem.
type LocalStore struct {
	root string
}

var _ core.Storage = (*LocalStore)(nil)

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", abs, err)
	}
	return &LocalStore{root: abs}, nil
}

// resolve maps key to a path under root and rejects escapes.
func (s *LocalStore) resolve(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return p, nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (s *LocalStore) Download(_ context.Context, key string) ([]byte, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Put writes an object. Used by tests and local tooling in place of a
// client-side upload.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// PresignUpload creates the prefix directory and returns it as a file:// URL.
// Constraints other than expiry are not enforced.
func (s *LocalStore) PresignUpload(_ context.Context, prefix string, c core.UploadConstraints) (*core.UploadTarget, error) {
	dir, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &core.UploadTarget{
		URL:       "file://" + filepath.ToSlash(dir),
		Path:      prefix,
		ExpiresAt: time.Now().Add(c.Expiry).UTC(),
	}, nil
}

func (s *LocalStore) DeletePrefix(_ context.Context, prefix string) error {
	dir, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if dir == s.root {
		return errors.New("refusing to delete storage root")
	}
	return os.RemoveAll(dir)
}
