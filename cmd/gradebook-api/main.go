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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-grade-workflow/api/swagger"
	"github.com/noah-isme/sma-grade-workflow/internal/handler"
	"github.com/noah-isme/sma-grade-workflow/internal/repository"
	"github.com/noah-isme/sma-grade-workflow/internal/service"
	"github.com/noah-isme/sma-grade-workflow/pkg/cache"
	"github.com/noah-isme/sma-grade-workflow/pkg/config"
	"github.com/noah-isme/sma-grade-workflow/pkg/database"
	"github.com/noah-isme/sma-grade-workflow/pkg/logger"
	"github.com/noah-isme/sma-grade-workflow/pkg/storage"
)

// @title SMA Grade Workflow API
// @version 1.0.0
// @description Gradesheet entry, submission, class approval and student results
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	var redisClient *redis.Client
	if cfg.Workflow.StoreDriver == config.StoreDriverRedis || cfg.Workflow.ResultCache {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			if cfg.Workflow.StoreDriver == config.StoreDriverRedis {
				logr.Fatal("redis unavailable for workflow store", zap.Error(err))
			}
			logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	store, closeStore, err := openWorkflowStore(ctx, cfg, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to open workflow store", zap.String("driver", cfg.Workflow.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var resultCache *service.CacheService
	if redisClient != nil && cfg.Workflow.ResultCache {
		resultCache = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Workflow.ResultCacheTTL, logr, true)
	}

	var workflow *service.GradeWorkflowService
	if resultCache != nil {
		workflow = service.NewGradeWorkflowService(store, resultCache, metrics, validate, logr, service.WorkflowOptions{})
	} else {
		workflow = service.NewGradeWorkflowService(store, nil, metrics, validate, logr, service.WorkflowOptions{})
	}

	if cfg.Workflow.SeedFile != "" {
		classes, err := service.LoadRosterSeed(cfg.Workflow.SeedFile)
		if err != nil {
			logr.Fatal("failed to read roster seed", zap.String("file", cfg.Workflow.SeedFile), zap.Error(err))
		}
		if _, err := workflow.SeedRoster(ctx, classes); err != nil {
			logr.Fatal("failed to seed rosters", zap.Error(err))
		}
		logr.Info("roster seed applied", zap.Int("classes", len(classes)))
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration})
	router := handler.NewRouter(handler.RouterDeps{
		Config:      cfg,
		Logger:      logr,
		Tokens:      tokens,
		Gradesheets: handler.NewGradesheetHandler(workflow, validate),
		Classes:     handler.NewClassHandler(workflow, service.NewExportService(workflow, logr)),
		Rosters:     handler.NewRosterHandler(workflow),
		Metrics:     handler.NewMetricsHandler(metrics, store, logr),
		Observer:    metrics,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Workflow.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}

func openWorkflowStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logr *zap.Logger) (service.WorkflowStore, func(), error) {
	noop := func() {}
	switch cfg.Workflow.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store := repository.NewPostgresWorkflowStore(db, cfg.Workflow.StoreKey, logr)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, func() { _ = db.Close() }, nil
	case config.StoreDriverRedis:
		return repository.NewRedisWorkflowStore(redisClient, cfg.Workflow.StoreKey, logr), noop, nil
	case config.StoreDriverFile:
		files, err := storage.NewLocalStorage(cfg.Workflow.StoreDir)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewFileWorkflowStore(files, cfg.Workflow.StoreKey, logr), noop, nil
	default:
		return repository.NewMemoryWorkflowStore(nil, logr), noop, nil
	}
}
