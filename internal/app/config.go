package app

import (
	"strings"
	"time"

	"github.com/yungbote/indoormap-backend/internal/data/db"
	"github.com/yungbote/indoormap-backend/internal/platform/envutil"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string

	HTTPAddr       string
	CORSOrigins    []string
	MetricsEnabled bool

	DB db.Config

	TileDriver          string
	TileFSRoot          string
	TilePublicPrefix    string
	TileGCSBucket       string
	TileCDNDomain       string
	TilePublicBaseURL   string
	StorageEmulatorHost string
	TileS3Bucket        string
	TileS3Region        string
	TileS3Endpoint      string
	TileS3PathStyle     bool
	TileS3AccessKey     string
	TileS3SecretKey     string
	TileWorkers         int
	TileMaxPixels       int64

	UploadDir      string
	UploadMaxBytes int64

	PreviewFontPath    string
	PreviewMarkerColor string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	ReconcileGrace     time.Duration
}

func LoadConfig() Config {
	return Config{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "indoormap"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		HTTPAddr:       envutil.String("HTTP_ADDR", ":8080"),
		CORSOrigins:    splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),

		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", db.DriverPostgres),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_NAME", "indoormap"),
			PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:       envutil.String("SQLITE_PATH", "data/indoormap.db"),
			SlowThreshold:    envutil.Duration("DB_SLOW_THRESHOLD", time.Second),
		},

		TileDriver:          strings.ToLower(envutil.String("TILE_STORAGE_DRIVER", tilestore.DriverFS)),
		TileFSRoot:          envutil.String("TILE_FS_ROOT", "data/tiles"),
		TilePublicPrefix:    envutil.String("TILE_PUBLIC_PREFIX", "/tiles"),
		TileGCSBucket:       envutil.String("TILE_GCS_BUCKET_NAME", ""),
		TileCDNDomain:       envutil.String("TILE_CDN_DOMAIN", ""),
		TilePublicBaseURL:   envutil.String("TILE_PUBLIC_BASE_URL", ""),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		TileS3Bucket:        envutil.String("TILE_S3_BUCKET", ""),
		TileS3Region:        envutil.String("TILE_S3_REGION", "us-east-1"),
		TileS3Endpoint:      envutil.String("TILE_S3_ENDPOINT", ""),
		TileS3PathStyle:     envutil.Bool("TILE_S3_PATH_STYLE", false),
		TileS3AccessKey:     envutil.String("TILE_S3_ACCESS_KEY_ID", ""),
		TileS3SecretKey:     envutil.String("TILE_S3_SECRET_ACCESS_KEY", ""),
		TileWorkers:         envutil.Int("TILE_WORKERS", 4),
		TileMaxPixels:       envutil.Int64("TILE_MAX_PIXELS", tiles.DefaultMaxPixels),

		UploadDir:      envutil.String("UPLOAD_DIR", "data/uploads"),
		UploadMaxBytes: envutil.Int64("UPLOAD_MAX_BYTES", 64<<20),

		PreviewFontPath:    envutil.String("PREVIEW_FONT_PATH", ""),
		PreviewMarkerColor: envutil.String("PREVIEW_MARKER_COLOR", ""),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		LockTTL:       envutil.Duration("LOCK_TTL", 30*time.Second),

		ReconcileInterval:  envutil.Duration("RECONCILE_INTERVAL", time.Minute),
		ReconcileBatchSize: envutil.Int("RECONCILE_BATCH_SIZE", 200),
		ReconcileGrace:     envutil.Duration("RECONCILE_GRACE", 30*time.Second),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
