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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/necta-results-api/api/swagger"
	"github.com/noah-isme/necta-results-api/internal/handler"
	"github.com/noah-isme/necta-results-api/internal/middleware"
	"github.com/noah-isme/necta-results-api/internal/repository"
	"github.com/noah-isme/necta-results-api/internal/scoring"
	"github.com/noah-isme/necta-results-api/internal/service"
	"github.com/noah-isme/necta-results-api/pkg/cache"
	"github.com/noah-isme/necta-results-api/pkg/config"
	"github.com/noah-isme/necta-results-api/pkg/database"
	"github.com/noah-isme/necta-results-api/pkg/jobs"
	"github.com/noah-isme/necta-results-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/necta-results-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/necta-results-api/pkg/middleware/requestid"
	"github.com/noah-isme/necta-results-api/pkg/storage"
)

// @title NECTA Results API
// @version 1.0.0
// @description Grades, divisions, rankings and result sheets for NECTA O-Level and A-Level examinations.
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

	engineCfg, err := cfg.Grading.EngineConfig()
	if err != nil {
		logr.Fatal("invalid grading configuration", zap.Error(err))
	}
	engine, err := scoring.NewEngine(engineCfg, logr.Named("scoring"))
	if err != nil {
		logr.Fatal("failed to build scoring engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, serving without report cache", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	resultsSvc := service.NewResultsService(
		repository.NewResultRepository(db),
		repository.NewCombinationRepository(db),
		engine,
		cacheSvc,
		metrics,
		validator.New(),
		logr,
		service.ResultsServiceConfig{CacheTTL: cfg.Cache.TTL, BatchConcurrency: cfg.Workers.BatchConcurrency},
	)

	recomputeWorker := service.NewRecomputeWorker(resultsSvc, metrics, logr)
	queue := jobs.NewQueue("recompute", recomputeWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers.Concurrency,
		MaxRetries: cfg.Workers.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	recomputeWorker.SetQueue(queue)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exportSvc := service.NewExportService(
		resultsSvc,
		repository.NewExportRepository(db),
		files,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		metrics,
		logr,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, CleanupInterval: cfg.Exports.CleanupInterval},
	)
	exportSvc.StartCleanup(ctx)

	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	resultsHandler := handler.NewResultsHandler(resultsSvc, recomputeWorker)
	exportHandler := handler.NewExportHandler(exportSvc)

	results := r.Group(cfg.APIPrefix + "/results")
	results.POST("/grade", resultsHandler.Grade)
	results.POST("/preview", resultsHandler.Preview)
	results.GET("/classes/:classId/exams/:examId", resultsHandler.ClassReport)
	results.GET("/classes/:classId/exams/:examId/students/:studentId", resultsHandler.StudentReport)
	results.POST("/batch", resultsHandler.Batch)
	results.POST("/recompute", resultsHandler.Recompute)
	results.POST("/export", exportHandler.Create)
	results.GET("/export/:token", exportHandler.Download)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	queue.Stop()
}
