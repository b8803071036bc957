package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/indoormap-backend/internal/platform/redis"
	"github.com/yungbote/indoormap-backend/internal/data/repos"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
	"github.com/yungbote/indoormap-backend/internal/services"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

type Services struct {
	Engine      services.ConsistencyEngine
	Assets      services.AssetService
	FloorMaps   services.FloorMapService
	Locations   services.LocationService
	ChokePoints services.ChokePointService
	Importer    services.ChokePointImporter
	Preview     services.MapPreviewService
	Reconciler  services.Reconciler
	Tiles       *tiles.Generator
}

func wireServices(ctx context.Context, log *logger.Logger, cfg Config, rs repos.Set, store tilestore.Store) (Services, func(), error) {
	log.Info("Wiring services...")

	locker := services.NewMemoryLocker()
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return Services{}, nil, fmt.Errorf("init redis locker: %w", err)
		}
		rdb = client
		locker = services.NewRedisLocker(log, rdb, cfg.LockTTL)
	}
	closeFn := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}

	engine := services.NewConsistencyEngine(log, rs, services.NewDefaultRelationRegistry(rs), locker)
	gen := tiles.NewGenerator(log, store,
		tiles.WithWorkers(cfg.TileWorkers),
		tiles.WithMaxPixels(cfg.TileMaxPixels),
	)
	chokePoints := services.NewChokePointService(log, rs, engine)

	preview, err := services.NewMapPreviewService(log, rs, store, services.MapPreviewConfig{
		FontPath:    cfg.PreviewFontPath,
		MarkerColor: cfg.PreviewMarkerColor,
	})
	if err != nil {
		closeFn()
		return Services{}, nil, fmt.Errorf("init map preview: %w", err)
	}

	return Services{
		Engine:      engine,
		Assets:      services.NewAssetService(log, rs, engine),
		FloorMaps:   services.NewFloorMapService(log, rs, engine, gen, store, chokePoints),
		Locations:   services.NewLocationService(log, rs, engine),
		ChokePoints: chokePoints,
		Importer:    services.NewChokePointImporter(log, rs, chokePoints),
		Preview:     preview,
		Reconciler: services.NewReconciler(log, rs, engine, services.ReconcilerConfig{
			BatchSize: cfg.ReconcileBatchSize,
			Grace:     cfg.ReconcileGrace,
		}),
		Tiles: gen,
	}, closeFn, nil
}
