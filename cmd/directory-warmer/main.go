package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/config"
	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/logging"
	redisclient "github.com/spark200410/consultancy/internal/redis"
)

// directory-warmer keeps the shared doctor list in redis fresh so portal
// replicas rarely have to wait on the backend for it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("directory-warmer", cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("directory-warmer starting up")

	if !cfg.RedisEnabled() {
		logger.Fatal().Msg("REDIS_ADDR or REDIS_URL is required, there is no shared cache to warm")
	}
	if cfg.WorkerInterval >= cfg.DoctorCacheTTL {
		logger.Warn().Dur("interval", cfg.WorkerInterval).Dur("cache_ttl", cfg.DoctorCacheTTL).
			Msg("cache entry expires before the next refresh")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	client, err := backend.New(backend.Options{
		BaseURL:   cfg.BackendBaseURL,
		Timeout:   cfg.BackendTimeout,
		JWTSecret: cfg.BackendJWTSecret,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}

	dir := doctor.NewDirectory(client, doctor.NewRedisCache(rdb, cfg.DoctorCacheTTL, logger), nil, logger)
	ctx := backend.WithCredential(rootCtx, backend.Credential{Email: cfg.ServiceEmail, Role: "admin"})

	// Run once at startup
	runOnce(ctx, dir, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping directory-warmer")
			return
		case <-ticker.C:
			runOnce(ctx, dir, logger)
		}
	}
}

func runOnce(ctx context.Context, dir *doctor.Directory, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := dir.Refresh(runCtx)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(backend.KindOf(err))).Msg("refresh run error")
		return
	}
	logger.Info().Int("doctors", n).Dur("took", time.Since(start)).Msg("refresh run complete")
}
