package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/indoormap-backend/internal/platform/gcp"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/s3store"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

func wantBootstrapCode(t *testing.T, err error, code StorageProviderBootstrapErrorCode) {
	t.Helper()
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T (%v)", err, err)
	}
	if got.Code != code {
		t.Fatalf("code: want=%q got=%q", code, got.Code)
	}
}

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		src  error
		want StorageProviderBootstrapErrorCode
	}{
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidMode}, StorageProviderBootstrapErrorInvalidMode},
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingEmulatorHost}, StorageProviderBootstrapErrorMissingEmulatorHost},
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidEmulatorHost}, StorageProviderBootstrapErrorInvalidEmulatorHost},
		{&gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingBucket}, StorageProviderBootstrapErrorMissingBucket},
		{errors.New("dial tcp: connection refused"), StorageProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		wantBootstrapCode(t, classifyStorageProviderBootstrapError("gcs", "", tc.src), tc.want)
	}
}

func TestResolveTileStoreInvalidDriver(t *testing.T) {
	_, err := resolveTileStore(context.Background(), logger.Nop(), Config{TileDriver: "ftp"})
	wantBootstrapCode(t, err, StorageProviderBootstrapErrorInvalidMode)
}

func TestResolveTileStoreLocalDrivers(t *testing.T) {
	ctx := context.Background()
	store, err := resolveTileStore(ctx, logger.Nop(), Config{TileDriver: tilestore.DriverMemory, TilePublicPrefix: "/tiles"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*tilestore.MemoryStore); !ok {
		t.Fatalf("memory: got %T", store)
	}

	store, err = resolveTileStore(ctx, logger.Nop(), Config{TileDriver: tilestore.DriverFS, TileFSRoot: t.TempDir(), TilePublicPrefix: "/tiles"})
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	if got := store.PublicURL("maps/m1/base.png"); got != "/tiles/maps/m1/base.png" {
		t.Fatalf("fs public url: got=%q", got)
	}
}

func TestResolveTileStoreGCSEmulatorMode(t *testing.T) {
	orig := newTileBucket
	t.Cleanup(func() { newTileBucket = orig })

	var captured gcp.TileBucketConfig
	expected := tilestore.NewMemoryStore("")
	newTileBucket = func(_ context.Context, _ *logger.Logger, cfg gcp.TileBucketConfig) (tilestore.Store, error) {
		captured = cfg
		return expected, nil
	}

	got, err := resolveTileStore(context.Background(), logger.Nop(), Config{
		TileDriver:          tilestore.DriverGCSEmulator,
		TileGCSBucket:       "tiles",
		StorageEmulatorHost: "http://fake-gcs:4443",
	})
	if err != nil {
		t.Fatalf("resolveTileStore: %v", err)
	}
	if got != tilestore.Store(expected) {
		t.Fatalf("store: expected stub instance")
	}
	if captured.Storage.Mode != gcp.ObjectStorageModeGCSEmulator || captured.Storage.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("storage config: %+v", captured.Storage)
	}
	if captured.Bucket != "tiles" {
		t.Fatalf("bucket: want=tiles got=%q", captured.Bucket)
	}
}

func TestResolveTileStoreMissingEmulatorHost(t *testing.T) {
	_, err := resolveTileStore(context.Background(), logger.Nop(), Config{
		TileDriver:    tilestore.DriverGCSEmulator,
		TileGCSBucket: "tiles",
	})
	wantBootstrapCode(t, err, StorageProviderBootstrapErrorMissingEmulatorHost)
}

func TestResolveTileStoreS3(t *testing.T) {
	orig := newS3Store
	t.Cleanup(func() { newS3Store = orig })

	var captured s3store.Config
	newS3Store = func(_ context.Context, _ *logger.Logger, cfg s3store.Config) (tilestore.Store, error) {
		captured = cfg
		return nil, errors.New("no route to host")
	}
	_, err := resolveTileStore(context.Background(), logger.Nop(), Config{
		TileDriver:      tilestore.DriverS3,
		TileS3Bucket:    "tiles",
		TileS3Endpoint:  "http://minio:9000",
		TileS3PathStyle: true,
	})
	wantBootstrapCode(t, err, StorageProviderBootstrapErrorConnectFailed)
	if captured.Bucket != "tiles" || !captured.PathStyle || captured.Endpoint != "http://minio:9000" {
		t.Fatalf("s3 config: %+v", captured)
	}
}
