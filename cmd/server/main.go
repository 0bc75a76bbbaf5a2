package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"pool-dispatch-service/internal/adapters/cache"
	"pool-dispatch-service/internal/adapters/directions"
	"pool-dispatch-service/internal/adapters/repositories"
	"pool-dispatch-service/internal/api"
	"pool-dispatch-service/internal/config"
	"pool-dispatch-service/internal/platform/db"
	"pool-dispatch-service/internal/platform/obs"
	"pool-dispatch-service/internal/ports"
	"pool-dispatch-service/internal/services"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// main is the application composition root.
// It wires concrete adapters (Postgres or memory, directions, leg cache)
// behind ports and starts the HTTP server.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := obs.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	metrics, err := obs.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	var conn *sql.DB
	if strings.TrimSpace(cfg.Database.URL) != "" {
		conn, err = db.Open(ctx, cfg.Database.URL, db.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	repo, err := openRepository(ctx, conn, cfg.Seed.Path, logger)
	if err != nil {
		return err
	}

	legCache, closeCache, err := openLegCache(ctx, cfg.Cache, conn)
	if err != nil {
		return err
	}
	defer closeCache()

	provider := newDirectionsProvider(cfg.Directions, legCache, metrics, logger)
	dispatcher := services.NewDispatcher(repo, provider, metrics)

	deps := api.Deps{
		Dispatcher: dispatcher,
		Logger:     obs.Component(logger, "http"),
		Metrics:    metrics,
	}
	if conn != nil {
		deps.HealthCheck = conn.PingContext
	}

	// Timeouts leave room for cold-cache optimization (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRepository picks Postgres when a connection is available, otherwise
// an in-memory store loaded from the seed file.
func openRepository(ctx context.Context, conn *sql.DB, seedPath string, logger zerolog.Logger) (ports.DispatchRepository, error) {
	if conn != nil {
		return repositories.NewPostgresDispatchRepository(conn), nil
	}

	repo := repositories.NewMemoryDispatchRepository()
	if strings.TrimSpace(seedPath) == "" {
		logger.Warn().Msg("no database.url or seed.path configured, starting with an empty store")
		return repo, nil
	}

	data, err := repositories.LoadSeedFile(seedPath)
	if err != nil {
		return nil, err
	}
	if err := repo.Seed(ctx, data); err != nil {
		return nil, err
	}

	logger.Info().Str("seed", seedPath).Msg("using in-memory store")
	return repo, nil
}

func openLegCache(ctx context.Context, cfg config.CacheConfig, conn *sql.DB) (ports.LegCache, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "sql":
		if conn == nil {
			return nil, noop, errors.New("cache.backend sql requires database.url")
		}
		return cache.NewSQLLegCache(conn, cfg.TTL), noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("open leg cache: redis %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisLegCache(client, cfg.TTL), func() { _ = client.Close() }, nil
	}

	return nil, noop, nil
}

func newDirectionsProvider(
	cfg config.DirectionsConfig,
	legCache ports.LegCache,
	metrics *obs.Metrics,
	logger zerolog.Logger,
) ports.DirectionsProvider {
	if cfg.Provider == "mock" {
		logger.Warn().Msg("using mock directions provider")
		return directions.NewMockDirectionsProvider()
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn().Msg("directions api key not set, optimization falls back to nearest neighbor")
		return nil
	}

	return directions.NewGoogleDirectionsProvider(directions.Options{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		MaxWaypoints:   cfg.MaxWaypoints,
		MaxConcurrency: cfg.MaxConcurrency,
		Cache:          legCache,
		Metrics:        metrics,
	})
}
