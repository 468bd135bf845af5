package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/MikeSquared-Agency/Ranking/internal/admin"
	"github.com/MikeSquared-Agency/Ranking/internal/api"
	"github.com/MikeSquared-Agency/Ranking/internal/config"
	"github.com/MikeSquared-Agency/Ranking/internal/extractor"
	"github.com/MikeSquared-Agency/Ranking/internal/files"
	"github.com/MikeSquared-Agency/Ranking/internal/guard"
	"github.com/MikeSquared-Agency/Ranking/internal/hermes"
	"github.com/MikeSquared-Agency/Ranking/internal/scoring"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
	"github.com/MikeSquared-Agency/Ranking/internal/weights"
)

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Warn("no database url configured, using in-memory store")
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, hermes.Options{
			URL:             cfg.Hermes.URL,
			Stream:          cfg.Hermes.Stream,
			MaxAge:          cfg.HermesMaxAge(),
			DuplicateWindow: cfg.HermesDuplicateWindow(),
			PublishTimeout:  cfg.HermesPublishTimeout(),
		}, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Weight and ranking locks span instances only when redis is configured.
	var locker weights.Locker = weights.NewMutexLocker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("failed to reach redis, using process-local locks", "error", err)
			_ = rdb.Close()
		} else {
			locker = weights.NewRedisLocker(rdb, cfg.LockTTL(), logger)
			defer rdb.Close()
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	extractorClient := extractor.NewHTTPClient(cfg.Extractor.URL, cfg.Extractor.Token, cfg.ExtractorTimeout(), cfg.Extractor.MaxRetries)

	normalizer := weights.NewNormalizer(db, locker, weights.Options{
		StrictLimit: cfg.Weights.StrictLimit,
		LockWait:    cfg.LockWait(),
	}, logger)
	engine := scoring.NewEngine(db, cfg.Ranking.Workers, logger)

	var documentFiles files.Store = files.NewLocal(cfg.Documents.Dir)
	if cfg.Documents.Bucket != "" {
		s3Files, err := files.NewS3(ctx, cfg.Documents.Region, cfg.Documents.Bucket, cfg.Documents.Prefix)
		if err != nil {
			logger.Error("failed to configure document bucket", "error", err)
			os.Exit(1)
		}
		documentFiles = s3Files
		logger.Info("storing documents in s3", "bucket", cfg.Documents.Bucket, "prefix", cfg.Documents.Prefix)
	}

	svc := admin.New(db, normalizer, engine, guard.New(db, hermesClient, logger), hermesClient, admin.Options{
		DefaultYearsFrom: cfg.Ranking.DefaultYearsFrom,
		StandingsLimit:   cfg.Ranking.StandingsLimit,
		Locker:           locker,
		Files:            documentFiles,
		MaxUploadBytes:   int64(cfg.Documents.MaxUploadMB) << 20,
	}, logger)

	// API server
	router := api.NewRouter(svc, extractorClient, api.RouterOptions{
		AdminToken:         cfg.Server.AdminToken,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		CORSOrigins:        cfg.Server.CORSOrigins,
	}, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
