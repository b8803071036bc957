package tilestore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local store used by tests and the memory driver.
type MemoryStore struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	types        map[string]string
	publicPrefix string
}

func NewMemoryStore(publicPrefix string) *MemoryStore {
	return &MemoryStore{
		objects:      map[string][]byte{},
		types:        map[string]string{},
		publicPrefix: publicPrefix,
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	key = CleanKey(key)
	s.mu.Lock()
	s.objects[key] = b
	s.types[key] = contentType
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	b, ok := s.objects[CleanKey(key)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = CleanKey(prefix)
	s.mu.RLock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	key = CleanKey(key)
	s.mu.Lock()
	delete(s.objects, key)
	delete(s.types, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, _ := s.List(ctx, prefix)
	for _, k := range keys {
		_ = s.Delete(ctx, k)
	}
	return nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return JoinURL(s.publicPrefix, CleanKey(key))
}

// ContentType reports what Put recorded for key.
func (s *MemoryStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[CleanKey(key)]
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
