package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/cpandares/random-places/internal/adapters/cache"
	"github.com/cpandares/random-places/internal/adapters/catalog"
	"github.com/cpandares/random-places/internal/adapters/fallback"
	httpadapter "github.com/cpandares/random-places/internal/adapters/http"
	"github.com/cpandares/random-places/internal/adapters/places/geoapify"
	"github.com/cpandares/random-places/internal/app"
	"github.com/cpandares/random-places/internal/config"
	"github.com/cpandares/random-places/internal/ports"
)

// stdRNG delegates to math/rand/v2 (auto-seeded).
type stdRNG struct{}

func (stdRNG) Intn(n int) int { return rand.IntN(n) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if cfg.GeoapifyAPIKey == "" {
		logger.Warn("GEOAPIFY_API_KEY is empty, sessions will use local places")
	}

	cat, err := catalog.Builtin()
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()

	placesClient := geoapify.NewClient(
		&http.Client{Timeout: cfg.PlacesTimeout},
		cfg.GeoapifyAPIKey,
		cfg.GeoapifyBaseURL,
		cfg.PlacesLimit,
		logger,
	)

	store, closeStore, err := newCacheStore(cfg, clock)
	if err != nil {
		logger.Error("failed to set up cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	manager := app.NewSessionManager(app.Deps{
		Catalog:  cat,
		Source:   cache.NewCachingSource(placesClient, store, cfg.CacheTTL, logger),
		Fallback: fallback.NewEmbeddedStore(),
		Clock:    clock,
		RNG:      stdRNG{},
		Logger:   logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))
	e.Use(httpadapter.CORSMiddleware(cfg.CORSOrigins))

	handler := httpadapter.NewHandler(manager, cat, cfg.CORSOrigins, logger)
	handler.Register(e)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go manager.RunReaper(ctx, cfg.SessionIdleTTL)

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "cache", cfg.CacheBackend)
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "sessions", manager.Len())

	// Closing sessions ends open streams, which Shutdown does not track.
	manager.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func newCacheStore(cfg config.Config, clock clockwork.Clock) (ports.CacheStore, func(), error) {
	if cfg.CacheBackend != config.CacheRedis {
		return cache.NewMemoryStore(clock), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := cache.NewRedisStore(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}
