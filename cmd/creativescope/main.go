package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admetrica/creativescope/internal/config"
	"github.com/admetrica/creativescope/internal/database"
	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/geo"
	"github.com/admetrica/creativescope/internal/httpserver"
	"github.com/admetrica/creativescope/internal/metrics"
	"github.com/admetrica/creativescope/internal/middleware"
	"github.com/admetrica/creativescope/internal/scoring"
	"github.com/admetrica/creativescope/internal/warehouse"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting creativescope",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend),
	)

	ctx := context.Background()

	// Document store backend
	store, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize document store", zap.Error(err))
	}
	defer cleanup()

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("creativescope")
	}

	// Scorer
	var scorer scoring.Scorer
	if cfg.Scorer.Backend == "http" {
		scorer = scoring.NewHTTPScorer(cfg.Scorer, logger, m)
	} else {
		scorer = scoring.NewStaticScorer()
		logger.Warn("using static scorer, results are deterministic placeholders")
	}

	// GeoIP enrichment
	var geoProvider *geo.Provider
	if cfg.Geo.Enabled {
		geoProvider, err = geo.NewProvider(cfg.Geo.DatabasePath)
		if err != nil {
			logger.Warn("GeoIP database not available, geo enrichment disabled", zap.Error(err))
			geoProvider = nil
		} else {
			defer geoProvider.Close()
		}
	}

	// ClickHouse event warehouse
	var archiver *warehouse.Archiver
	if cfg.ClickHouse.Enabled {
		ch, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, event archiving disabled", zap.Error(err))
		} else {
			defer ch.Close()
			archiver = warehouse.NewArchiver(ch.Conn, logger)
			if err := archiver.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to ensure warehouse schema, event archiving disabled", zap.Error(err))
				archiver = nil
			}
		}
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Store:    store,
		Scorer:   scorer,
		Geo:      geoProvider,
		Archiver: archiver,
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
	})

	// Middleware chain: recovery outermost, then logging, rate limiting and
	// the admin gate.
	rateLimiter := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimiter.SetMetrics(m)
	adminAuth := middleware.NewAdminAuthMiddleware(cfg.Auth, logger, httpserver.AdminPaths)

	handler = adminAuth.Handler(handler)
	handler = rateLimiter.Handler(handler)
	handler = middleware.NewLoggingMiddleware(logger, m).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(logger).Handler(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Periodic cleanup of per-IP rate limiters
	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()
	go func() {
		for range cleanupTicker.C {
			rateLimiter.CleanupIPLimiters()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newStore builds the configured document store backend. The returned cleanup
// closes the underlying connection.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (docstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store := docstore.NewPostgresStore(db.Pool)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	case "redis":
		rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewRedisStore(rdb.Client), func() { rdb.Close() }, nil

	default:
		logger.Warn("using in-memory document store, data is not persisted")
		return docstore.NewMemoryStore(), func() {}, nil
	}
}
