package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apphttp "ean_lookup_backend/internal/http"
	"ean_lookup_backend/internal/http/router"
	"ean_lookup_backend/internal/lookups"
	lookupservice "ean_lookup_backend/internal/lookups/service"
	"ean_lookup_backend/internal/lookups/store"
	"ean_lookup_backend/internal/meteringpoint"
	"ean_lookup_backend/platform/cache"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"
	"ean_lookup_backend/platform/validator"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var redisClient *redis.Client
	var health apphttp.HealthChecker
	if cfg.IsRedisEnabled() {
		if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
			c, err := cache.NewRedisClient(ctx, cfg)
			if err != nil {
				return err
			}
			redisClient = c
			return nil
		}); err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer func() {
			_ = redisClient.Close()
		}()
		health = cache.NewHealthAdapter(redisClient)
		log.Info("redis connection established")
	} else {
		log.Warn("REDIS_URL not configured; results and registry answers are kept in memory")
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	meteringPointModule := meteringpoint.NewModule(cfg, redisClient, log)

	rowValidator, err := lookupservice.NewRowValidator(val)
	if err != nil {
		log.Error("failed to initialize row validator", "error", err)
		panic("failed to initialize row validator: " + err.Error())
	}
	processor := lookupservice.NewProcessor(rowValidator, meteringPointModule.Service(), log)

	var resultStore store.Store
	if redisClient != nil {
		resultStore = store.NewRedisStore(redisClient, cfg.GetResultTTL())
	} else {
		resultStore = store.NewMemoryStore(cfg.GetResultTTL())
	}

	lookupsModule := lookups.NewModule(processor, resultStore, val, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: health,
		Modules: []apphttp.Module{
			lookupsModule,
		},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
