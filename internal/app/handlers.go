package app

import (
	"strings"

	"gorm.io/gorm"

	httpserver "github.com/yungbote/indoormap-backend/internal/http"
	httpH "github.com/yungbote/indoormap-backend/internal/http/handlers"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

type Handlers struct {
	Asset      *httpH.AssetHandler
	FloorMap   *httpH.FloorMapHandler
	Location   *httpH.LocationHandler
	ChokePoint *httpH.ChokePointHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Asset: httpH.NewAssetHandler(log, services.Assets),
		FloorMap: httpH.NewFloorMapHandler(log, services.FloorMaps, services.Preview, httpH.FloorMapHandlerConfig{
			UploadDir:      cfg.UploadDir,
			UploadMaxBytes: cfg.UploadMaxBytes,
		}),
		Location:   httpH.NewLocationHandler(log, services.Locations),
		ChokePoint: httpH.NewChokePointHandler(log, services.ChokePoints, services.Importer, cfg.UploadMaxBytes),
	}
}

func routerConfig(log *logger.Logger, cfg Config, db *gorm.DB, store tilestore.Store, handlers Handlers) httpserver.RouterConfig {
	rc := httpserver.RouterConfig{
		Log:               log,
		ServiceName:       cfg.ServiceName,
		CORSOrigins:       cfg.CORSOrigins,
		MetricsEnabled:    cfg.MetricsEnabled,
		AssetHandler:      handlers.Asset,
		FloorMapHandler:   handlers.FloorMap,
		LocationHandler:   handlers.Location,
		ChokePointHandler: handlers.ChokePoint,
		HealthHandler:     httpH.NewHealthHandler(db),
	}
	if fs, ok := store.(*tilestore.FSStore); ok && strings.HasPrefix(fs.PublicPrefix, "/") {
		rc.TilePrefix = fs.PublicPrefix
		rc.TileRoot = fs.Root
	}
	return rc
}
