package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/indoormap-backend/internal/platform/envutil"
)

// ObjectStorageMode is the TILE_STORAGE_DRIVER value for the GCS backed tile
// stores.
type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type ObjectStorageConfig struct {
	Mode         ObjectStorageMode
	EmulatorHost string
	// CompatibilityFallback is set when no driver was named and the emulator
	// was picked because STORAGE_EMULATOR_HOST is present.
	CompatibilityFallback bool
}

func IsSupportedObjectStorageMode(mode ObjectStorageMode) bool {
	return mode == ObjectStorageModeGCS || mode == ObjectStorageModeGCSEmulator
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

func (cfg ObjectStorageConfig) ModeSource() string {
	if cfg.CompatibilityFallback {
		return "compatibility_fallback"
	}
	return "explicit_or_default"
}

// clientOptions picks credentials for the real service from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or GOOGLE_APPLICATION_CREDENTIALS
// (a file path, or inline JSON). The emulator runs unauthenticated.
func (cfg ObjectStorageConfig) clientOptions() []option.ClientOption {
	if cfg.IsEmulatorMode() {
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	if creds == "" {
		creds = envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")
	}
	switch {
	case creds == "":
		// Application default credentials.
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}

type ObjectStorageConfigErrorCode string

const (
	ObjectStorageConfigErrorInvalidMode         ObjectStorageConfigErrorCode = "invalid_mode"
	ObjectStorageConfigErrorMissingEmulatorHost ObjectStorageConfigErrorCode = "missing_emulator_host"
	ObjectStorageConfigErrorInvalidEmulatorHost ObjectStorageConfigErrorCode = "invalid_emulator_host"
	ObjectStorageConfigErrorMissingBucket       ObjectStorageConfigErrorCode = "missing_bucket"
)

type ObjectStorageConfigError struct {
	Code         ObjectStorageConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ObjectStorageConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Code {
	case ObjectStorageConfigErrorInvalidMode:
		return fmt.Sprintf("invalid TILE_STORAGE_DRIVER=%q for GCS (allowed: %q, %q)",
			e.Mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("TILE_STORAGE_DRIVER=%q requires STORAGE_EMULATOR_HOST", ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; want an absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	case ObjectStorageConfigErrorMissingBucket:
		return fmt.Sprintf("TILE_STORAGE_DRIVER=%q requires TILE_GCS_BUCKET_NAME", e.Mode)
	}
	return "invalid object storage config"
}

func (e *ObjectStorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveObjectStorageConfig turns the configured driver name and emulator
// host into a validated config. An empty mode falls back to the emulator
// whenever an emulator host is present.
func ResolveObjectStorageConfig(rawMode, emulatorHost string) (ObjectStorageConfig, error) {
	cfg := ObjectStorageConfig{
		Mode:         ObjectStorageMode(strings.ToLower(strings.TrimSpace(rawMode))),
		EmulatorHost: strings.TrimSpace(emulatorHost),
	}
	if cfg.Mode == "" {
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
			cfg.CompatibilityFallback = true
		}
	}
	if !IsSupportedObjectStorageMode(cfg.Mode) {
		return cfg, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: rawMode}
	}
	return cfg, ValidateObjectStorageConfig(cfg)
}

func ValidateObjectStorageConfig(cfg ObjectStorageConfig) error {
	fail := func(code ObjectStorageConfigErrorCode, cause error) error {
		return &ObjectStorageConfigError{Code: code, Mode: string(cfg.Mode), EmulatorHost: cfg.EmulatorHost, Cause: cause}
	}
	if !IsSupportedObjectStorageMode(cfg.Mode) {
		return fail(ObjectStorageConfigErrorInvalidMode, nil)
	}
	if !cfg.IsEmulatorMode() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return fail(ObjectStorageConfigErrorMissingEmulatorHost, nil)
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail(ObjectStorageConfigErrorInvalidEmulatorHost, err)
	}
	return nil
}
