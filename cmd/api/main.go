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

	"github.com/noah-isme/sma-results-api/internal/handler"
	"github.com/noah-isme/sma-results-api/internal/repository"
	"github.com/noah-isme/sma-results-api/internal/scoring"
	"github.com/noah-isme/sma-results-api/internal/service"
	"github.com/noah-isme/sma-results-api/pkg/cache"
	"github.com/noah-isme/sma-results-api/pkg/config"
	"github.com/noah-isme/sma-results-api/pkg/database"
	"github.com/noah-isme/sma-results-api/pkg/jobs"
	"github.com/noah-isme/sma-results-api/pkg/logger"
	"github.com/noah-isme/sma-results-api/pkg/storage"
)

// @title School Results API
// @version 1.0.0
// @description Result entry, approval, class ranking and broadsheet exports.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	scorePolicy, err := scoring.ParseScorePolicy(cfg.Results.ScorePolicy)
	if err != nil {
		return err
	}
	tiePolicy, err := scoring.ParseTiePolicy(cfg.Results.TiePolicy)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Performance.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis, logr)
		if err != nil {
			logr.Warn("redis unavailable, performance cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	resultRepo := repository.NewResultRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Performance.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	resultSvc := service.NewResultService(resultRepo, subjectRepo, studentRepo, scoring.NewNormalizer(scorePolicy), cacheSvc, metrics, validate, logr)
	performanceSvc := service.NewPerformanceService(classRepo, studentRepo, subjectRepo, resultRepo, cacheSvc, metrics, service.PerformanceConfig{
		DefaultTiePolicy: tiePolicy,
		CacheTTL:         cfg.Performance.CacheTTL,
	}, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	rosterSvc := service.NewRosterService(studentRepo, classRepo, logr)

	var (
		fileStore service.ExportStorage
		signer    *storage.SignedURLSigner
	)
	if cfg.Exports.Enabled {
		local, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			return err
		}
		fileStore = local
		signer = storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	}
	exportSvc := service.NewExportService(performanceSvc, fileStore, signer, service.ExportConfig{
		APIPrefix:        cfg.APIPrefix,
		ResultTTL:        cfg.Exports.SignedURLTTL,
		CSVByteOrderMark: cfg.Exports.CSVByteOrderMark,
	}, metrics, logr)

	exportHandler := handler.NewExportHandler(exportSvc, nil)
	if cfg.Exports.Enabled {
		worker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		queue := jobs.NewQueue("broadsheet-exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		exportJobSvc := service.NewExportJobService(exportJobRepo, queue, exportSvc, validate, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(exportSvc, exportJobSvc)
	}

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	router := newRouter(cfg, logr, routes{
		auth:        handler.NewAuthHandler(authSvc),
		results:     handler.NewResultHandler(resultSvc),
		performance: handler.NewPerformanceHandler(performanceSvc),
		subjects:    handler.NewSubjectHandler(subjectSvc),
		roster:      handler.NewRosterHandler(rosterSvc),
		exports:     exportHandler,
		metrics:     handler.NewMetricsHandler(metrics, checks),
		tokens:      authSvc,
		observer:    metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
