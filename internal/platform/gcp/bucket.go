package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

type TileBucketConfig struct {
	Storage   ObjectStorageConfig
	Bucket    string
	CDNDomain string
	// PublicBaseURL overrides the host used in public object URLs.
	PublicBaseURL string
}

// TileBucket stores pyramid tiles in one GCS bucket (or fake-gcs-server in
// emulator mode). It satisfies tilestore.Store.
type TileBucket struct {
	log           *logger.Logger
	client        *storage.Client
	cfg           TileBucketConfig
	emulatorHost  string
	publicBaseURL string
}

var _ tilestore.Store = (*TileBucket)(nil)

func NewTileBucket(ctx context.Context, log *logger.Logger, cfg TileBucketConfig) (*TileBucket, error) {
	if err := ValidateObjectStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorMissingBucket, Mode: string(cfg.Storage.Mode)}
	}
	serviceLog := log.With("service", "TileBucket")

	publicBaseURL, publicBaseSource, err := resolvePublicBaseURL(cfg)
	if err != nil {
		return nil, err
	}
	client, err := newStorageClientForMode(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info(
		"Tile storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"public_base_source", publicBaseSource,
		"public_base_url", publicBaseURL,
		"bucket", cfg.Bucket,
	)

	return &TileBucket{
		log:           serviceLog,
		client:        client,
		cfg:           cfg,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(cfg.Storage.EmulatorHost), "/"),
		publicBaseURL: publicBaseURL,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	if cfg.IsEmulatorMode() {
		// The storage client only honours the emulator through the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
	}
	return storage.NewClient(ctx, cfg.clientOptions()...)
}

func resolvePublicBaseURL(cfg TileBucketConfig) (baseURL string, source string, err error) {
	if raw := strings.TrimSpace(cfg.PublicBaseURL); raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid TILE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443",
				raw,
			)
		}
		return strings.TrimRight(raw, "/"), "tile_public_base_url", nil
	}
	if cfg.Storage.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(cfg.Storage.EmulatorHost), "/"), "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

func (b *TileBucket) object(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.cfg.Bucket).Object(tilestore.CleanKey(key))
}

func (b *TileBucket) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = tilestore.ContentTypeForKey(key)
	}
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// readCloserWithCancel ties the read context to the reader's lifetime;
// cancelling before the caller drains the body yields zero bytes.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (b *TileBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if b.cfg.Storage.IsEmulatorMode() && b.emulatorHost != "" {
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, b.emulatorObjectMediaURL(b.emulatorHost, key), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed creating emulator download request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed emulator download request: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			_ = resp.Body.Close()
			cancel()
			return nil, tilestore.ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}

	r, err := b.object(key).NewReader(ctx2)
	if errors.Is(err, storage.ErrObjectNotExist) {
		cancel()
		return nil, tilestore.ErrNotFound
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (b *TileBucket) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := b.client.Bucket(b.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: tilestore.CleanKey(prefix)})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (b *TileBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := b.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, b.cfg.Bucket, err)
	}
	return nil
}

func (b *TileBucket) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Delete(ctx, k); err != nil {
			b.log.Warn("delete tile failed", "key", k, "error", err)
		}
	}
	return nil
}

func (b *TileBucket) PublicURL(key string) string {
	key = tilestore.CleanKey(key)
	if b.cfg.CDNDomain != "" {
		return tilestore.JoinURL("https://"+b.cfg.CDNDomain, key)
	}
	if b.publicBaseURL != "" {
		return tilestore.JoinURL(b.publicBaseURL+"/"+b.cfg.Bucket, key)
	}
	return tilestore.JoinURL("https://storage.googleapis.com/"+b.cfg.Bucket, key)
}

func (b *TileBucket) emulatorObjectMediaURL(host, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(host, "/"),
		url.PathEscape(b.cfg.Bucket),
		url.PathEscape(tilestore.CleanKey(key)),
	)
}
