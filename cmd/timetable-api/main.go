package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-ingest/api/swagger"
	"github.com/noah-isme/timetable-ingest/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-ingest/internal/middleware"
	"github.com/noah-isme/timetable-ingest/internal/repository"
	"github.com/noah-isme/timetable-ingest/internal/service"
	"github.com/noah-isme/timetable-ingest/internal/timetable"
	"github.com/noah-isme/timetable-ingest/migrations"
	"github.com/noah-isme/timetable-ingest/pkg/cache"
	"github.com/noah-isme/timetable-ingest/pkg/config"
	"github.com/noah-isme/timetable-ingest/pkg/database"
	"github.com/noah-isme/timetable-ingest/pkg/jobs"
	"github.com/noah-isme/timetable-ingest/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-ingest/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-ingest/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-ingest/pkg/storage"
)

// @title Timetable Ingest API
// @version 0.1.0
// @description Decodes university timetable responses into normalized course occurrences
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	var (
		db          *sqlx.DB
		imports     *repository.TimetableImportRepository
		occurrences *repository.CourseOccurrenceRepository
	)
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close() //nolint:errcheck

		applied, err := database.Migrate(ctx, db, migrations.FS)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Sugar().Infow("database ready", "migrations_applied", applied)

		imports = repository.NewTimetableImportRepository(db)
		occurrences = repository.NewCourseOccurrenceRepository(db)
		checks["database"] = db.PingContext
	}

	cacheRepo, closeCache, err := openCache(ctx, cfg, logr, checks)
	if err != nil {
		return err
	}
	defer closeCache()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	expander := timetable.NewExpander(timetable.NewTitleDetailLocator(cfg.Timetable.Marker), logr)

	var timetableSvc *service.TimetableService
	if db != nil {
		timetableSvc = service.NewTimetableService(expander, imports, occurrences, db, cacheSvc, metrics, validate, logr, service.TimetableServiceConfig{
			Institution:  cfg.Timetable.Institution,
			BatchWorkers: cfg.Imports.BatchWorkers,
		})
	} else {
		timetableSvc = service.NewTimetableService(expander, nil, nil, nil, cacheSvc, metrics, validate, logr, service.TimetableServiceConfig{
			Institution:  cfg.Timetable.Institution,
			BatchWorkers: cfg.Imports.BatchWorkers,
		})
	}

	jobSvc := service.NewImportJobService(service.NewImportJobStore(time.Hour), nil, timetableSvc, cfg.Imports.Retries, logr)
	queue := jobs.NewQueue("timetable-imports", jobSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Imports.Workers,
		MaxRetries: cfg.Imports.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	jobSvc.SetMetrics(metrics)
	jobSvc.SetQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()
	checks["import_queue"] = func(context.Context) error {
		if !queue.Running() {
			return errors.New("import queue stopped")
		}
		return nil
	}

	exportSvc, err := buildExportService(cfg, timetableSvc, logr)
	if err != nil {
		return err
	}
	exportSvc.SetMetrics(metrics)
	exportSvc.StartCleanup(ctx, time.Hour)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, reqidmiddleware.Value))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	handler.NewTimetableHandler(timetableSvc, jobSvc, exportSvc, cfg.Timetable.MaxPayloadBytes).Register(api)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting",
			"addr", srv.Addr,
			"env", cfg.Env,
			"persistence", timetableSvc.PersistenceEnabled(),
			"cache_driver", cfg.Cache.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openCache(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (service.CacheRepository, func(), error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["cache"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		repo := repository.NewRedisCacheRepository(client, logr)
		return repo, func() { _ = repo.Close() }, nil
	case config.CacheDriverBadger:
		db, err := cache.NewBadger(cfg.Cache.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		checks["cache"] = func(context.Context) error {
			if db.IsClosed() {
				return errors.New("badger store closed")
			}
			return nil
		}
		repo := repository.NewBadgerCacheRepository(db, logr)
		return repo, func() { _ = repo.Close() }, nil
	case config.CacheDriverNone, "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

func buildExportService(cfg *config.Config, source *service.TimetableService, logr *zap.Logger) (*service.ExportService, error) {
	local, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("export storage: %w", err)
	}
	termStart, err := cfg.Timetable.TermStartDate()
	if err != nil {
		return nil, fmt.Errorf("timetable term start: %w", err)
	}
	loc, err := cfg.Timetable.Location()
	if err != nil {
		return nil, fmt.Errorf("timetable timezone: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	return service.NewExportService(source, local, signer, service.ExportConfig{
		APIPrefix:   cfg.APIPrefix,
		ResultTTL:   cfg.Exports.SignedURLTTL,
		Institution: cfg.Timetable.Institution,
		TermStart:   termStart,
		Location:    loc,
	}, logr, nil, nil, nil), nil
}
