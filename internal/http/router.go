package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/indoormap-backend/internal/http/handlers"
	httpMW "github.com/yungbote/indoormap-backend/internal/http/middleware"
	"github.com/yungbote/indoormap-backend/internal/observability"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string

	MetricsEnabled bool
	// TilePrefix and TileRoot serve the fs tile driver's files directly.
	TilePrefix string
	TileRoot   string

	AssetHandler      *httpH.AssetHandler
	FloorMapHandler   *httpH.FloorMapHandler
	LocationHandler   *httpH.LocationHandler
	ChokePointHandler *httpH.ChokePointHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))
	if cfg.MetricsEnabled {
		r.Use(httpMW.Metrics())
		r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Tiles (fs driver)
	if cfg.TilePrefix != "" && cfg.TileRoot != "" {
		r.Static(cfg.TilePrefix, cfg.TileRoot)
	}

	api := r.Group("/api")
	{
		// Asset
		if h := cfg.AssetHandler; h != nil {
			api.GET("/asset", h.List)
			api.GET("/asset/all", h.All)
			api.POST("/asset", h.Create)
			api.GET("/asset/:id", h.Get)
			api.PUT("/asset/:id", h.Update)
			api.DELETE("/asset/:id", h.Delete)
			api.GET("/asset/:id/map", h.ListMaps)
			api.GET("/asset/:id/map/:mapId", h.GetMap)
			api.GET("/asset/:id/location", h.ListLocations)
			api.GET("/asset/:id/location/:locationId", h.GetLocation)
		}

		// Map
		if h := cfg.FloorMapHandler; h != nil {
			api.GET("/map", h.List)
			api.GET("/map/all", h.All)
			api.POST("/map", h.Create)
			api.GET("/map/:id", h.Get)
			api.PUT("/map/:id", h.Update)
			api.PUT("/map/:id/ratio", h.SetRatio)
			api.DELETE("/map/:id", h.Delete)
			api.GET("/map/:id/chokePoint", h.ListChokePoints)
			api.PUT("/map/:id/chokePoint/:chokePointId/position", h.UpdateChokePointPosition)
			api.GET("/map/:id/preview.png", h.Preview)
		}

		// Location
		if h := cfg.LocationHandler; h != nil {
			api.GET("/location", h.List)
			api.GET("/location/all", h.All)
			api.POST("/location", h.Create)
			api.GET("/location/:id", h.Get)
			api.PUT("/location/:id", h.Update)
			api.DELETE("/location/:id", h.Delete)
			api.GET("/location/:id/chokePoint", h.ListChokePoints)
		}

		// ChokePoint
		if h := cfg.ChokePointHandler; h != nil {
			api.GET("/chokePoint", h.List)
			api.GET("/chokePoint/all", h.All)
			api.POST("/chokePoint", h.Create)
			api.POST("/chokePoint/csv", h.ImportCSV)
			api.GET("/chokePoint/:id", h.Get)
			api.PUT("/chokePoint/:id", h.Update)
			api.POST("/chokePoint/:id/map", h.SetMap)
			api.POST("/chokePoint/:id/unmap", h.UnsetMap)
			api.PUT("/chokePoint/:id/position", h.SetPosition)
			api.DELETE("/chokePoint/:id", h.Delete)
		}
	}

	return r
}
