package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/planhaus/planhaus-backend/internal/data/db"
	"github.com/planhaus/planhaus-backend/internal/jobs/chunkembed"
	"github.com/planhaus/planhaus-backend/internal/jobs/docprocess"
	"github.com/planhaus/planhaus-backend/internal/jobs/reportsection"
	"github.com/planhaus/planhaus-backend/internal/jobs/worker"
	"github.com/planhaus/planhaus-backend/internal/observability"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

const serviceName = "planhaus-backend"

// App holds every wired dependency. Construction is explicit: callers get
// one value owning the full graph, nothing hides in package globals.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Workers  *worker.Runner

	traceShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	traceShutdown := observability.InitTracing(context.Background(), log, observability.TracingConfig{
		ServiceName: serviceName,
		Environment: logMode,
		Version:     os.Getenv("SERVICE_VERSION"),
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, reposet, clients)
	handlerset := wireHandlers(theDB, log, serviceset, clients)
	router := wireRouter(cfg, handlerset)

	docHandler := docprocess.NewHandler(
		log, clients.Bucket, clients.Parser, clients.OpenAI,
		reposet.DocumentChunk, reposet.DocumentSetMember, clients.ProgressBus,
	)
	embedHandler := chunkembed.NewHandler(log, clients.OpenAI, reposet.DocumentChunk)
	sectionHandler := reportsection.NewHandler(log, serviceset.Retrieval, clients.OpenAI, reposet.ReportSection)

	workers, err := worker.New(log, docHandler, embedHandler, sectionHandler)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init workers: %w", err)
	}

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Clients:  clients,
		Services: serviceset,
		Workers:  workers,

		traceShutdown: traceShutdown,
	}, nil
}

// Close releases broker and log resources. The HTTP server and workers are
// shut down by the caller before this runs.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Queue != nil {
		if err := a.Clients.Queue.Close(); err != nil {
			a.Log.Warn("Queue close failed", "error", err)
		}
	}
	if a.Clients.Redis != nil {
		_ = a.Clients.Redis.Close()
	}
	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			a.Log.Warn("Trace flush failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
