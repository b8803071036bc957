package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/indoormap-backend/internal/data/db"
	"github.com/yungbote/indoormap-backend/internal/data/repos"
	httpserver "github.com/yungbote/indoormap-backend/internal/http"
	"github.com/yungbote/indoormap-backend/internal/jobs/worker"
	"github.com/yungbote/indoormap-backend/internal/observability"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Tiles    tilestore.Store
	Services Services
	Server   *httpserver.Server

	dbService     *db.Service
	worker        *worker.ReconcileWorker
	cancel        context.CancelFunc
	otelShutdown  func(context.Context) error
	closeServices func()
}

// New builds the full application graph. The HTTP server is only wired
// when withHTTP is set, so CLI commands can share the same services.
func New(ctx context.Context, withHTTP bool) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	dbService, err := db.NewService(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	store, err := resolveTileStore(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	reposet := repos.NewSet(theDB, log)
	serviceset, closeServices, err := wireServices(ctx, log, cfg, reposet, store)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:           log,
		DB:            theDB,
		Cfg:           cfg,
		Repos:         reposet,
		Tiles:         store,
		Services:      serviceset,
		dbService:     dbService,
		otelShutdown:  otelShutdown,
		closeServices: closeServices,
	}
	if withHTTP {
		a.Server = httpserver.NewServer(routerConfig(log, cfg, theDB, store, wireHandlers(log, cfg, serviceset)))
	}
	return a, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.worker = worker.NewReconcileWorker(a.Log, a.Services.Reconciler, a.Cfg.ReconcileInterval)
	a.worker.Start(ctx)
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		<-a.worker.Done()
		a.cancel = nil
	}
	if a.closeServices != nil {
		a.closeServices()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("close database", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
