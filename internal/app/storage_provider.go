package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/indoormap-backend/internal/platform/gcp"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/s3store"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

var newTileBucket = func(ctx context.Context, log *logger.Logger, cfg gcp.TileBucketConfig) (tilestore.Store, error) {
	b, err := gcp.NewTileBucket(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

var newS3Store = func(ctx context.Context, log *logger.Logger, cfg s3store.Config) (tilestore.Store, error) {
	s, err := s3store.New(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "tile storage bootstrap failed"
	}
	return fmt.Sprintf(
		"tile storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveTileStore builds the tile store named by TILE_STORAGE_DRIVER.
func resolveTileStore(ctx context.Context, log *logger.Logger, cfg Config) (tilestore.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.TileDriver))
	log.Info("Selecting tile storage provider", "mode", driver)

	var (
		store tilestore.Store
		err   error
	)
	switch driver {
	case tilestore.DriverFS, "":
		store, err = tilestore.NewFSStore(log, cfg.TileFSRoot, cfg.TilePublicPrefix)
	case tilestore.DriverMemory:
		store = tilestore.NewMemoryStore(cfg.TilePublicPrefix)
	case tilestore.DriverGCS, tilestore.DriverGCSEmulator:
		store, err = newTileBucket(ctx, log, gcp.TileBucketConfig{
			Storage: gcp.ObjectStorageConfig{
				Mode:         gcp.ObjectStorageMode(driver),
				EmulatorHost: strings.TrimSpace(cfg.StorageEmulatorHost),
			},
			Bucket:        cfg.TileGCSBucket,
			CDNDomain:     cfg.TileCDNDomain,
			PublicBaseURL: cfg.TilePublicBaseURL,
		})
	case tilestore.DriverS3:
		store, err = newS3Store(ctx, log, s3store.Config{
			Bucket:          cfg.TileS3Bucket,
			Region:          cfg.TileS3Region,
			Endpoint:        cfg.TileS3Endpoint,
			PathStyle:       cfg.TileS3PathStyle,
			AccessKeyID:     cfg.TileS3AccessKey,
			SecretAccessKey: cfg.TileS3SecretKey,
			PublicBaseURL:   cfg.TilePublicBaseURL,
		})
	default:
		err = &StorageProviderBootstrapError{
			Code:  StorageProviderBootstrapErrorInvalidMode,
			Mode:  driver,
			Cause: fmt.Errorf("unsupported TILE_STORAGE_DRIVER %q", cfg.TileDriver),
		}
	}
	if err != nil {
		classified := classifyStorageProviderBootstrapError(driver, cfg.StorageEmulatorHost, err)
		log.Error(
			"Tile storage provider bootstrap failed",
			"mode", driver,
			"emulator_host", cfg.StorageEmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyStorageProviderBootstrapError(mode, emulatorHost string, err error) error {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		return err
	}
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			code = StorageProviderBootstrapErrorInvalidEmulatorHost
		case gcp.ObjectStorageConfigErrorMissingBucket:
			code = StorageProviderBootstrapErrorMissingBucket
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         mode,
		EmulatorHost: emulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
