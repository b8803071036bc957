// Package tilestore holds the object storage abstraction tile pyramids are
// written to, plus the local filesystem and in-memory drivers.
package tilestore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("tilestore: object not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	// PublicURL is where clients fetch key from. With an empty key it is the
	// base the pyramid path is built on.
	PublicURL(key string) string
}

// Driver names accepted by TILE_STORAGE_DRIVER.
const (
	DriverFS          = "fs"
	DriverMemory      = "memory"
	DriverGCS         = "gcs"
	DriverGCSEmulator = "gcs_emulator"
	DriverS3          = "s3"
)

// CleanKey normalizes a storage key to a slash separated relative path.
func CleanKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return ""
	}
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}

// JoinURL appends key to base with exactly one slash between them.
func JoinURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	switch {
	case key == "":
		return base
	case base == "":
		return "/" + key
	default:
		return base + "/" + key
	}
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
