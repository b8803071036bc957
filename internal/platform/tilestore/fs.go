package tilestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// FSStore keeps objects as plain files below Root. The HTTP layer serves Root
// under the public prefix.
type FSStore struct {
	Root         string
	PublicPrefix string
	log          *logger.Logger
}

func NewFSStore(log *logger.Logger, root, publicPrefix string) (*FSStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("tile fs root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create tile root %q: %w", root, err)
	}
	return &FSStore{
		Root:         root,
		PublicPrefix: publicPrefix,
		log:          log.With("service", "FSTileStore", "root", root),
	}, nil
}

func (s *FSStore) path(key string) (string, error) {
	key = CleanKey(key)
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	return filepath.Join(s.Root, filepath.FromSlash(key)), nil
}

func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = CleanKey(prefix)
	out := []string{}
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FSStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			s.log.Warn("delete tile failed", "key", k, "error", err)
		}
	}
	if p, err := s.path(prefix); err == nil {
		// Only succeeds once the directory is empty.
		_ = os.Remove(p)
	}
	return nil
}

func (s *FSStore) PublicURL(key string) string {
	return JoinURL(s.PublicPrefix, CleanKey(key))
}
