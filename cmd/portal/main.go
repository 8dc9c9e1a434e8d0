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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spark200410/consultancy/internal/appointment"
	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/chat"
	"github.com/spark200410/consultancy/internal/config"
	"github.com/spark200410/consultancy/internal/db"
	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/logging"
	"github.com/spark200410/consultancy/internal/metrics"
	redisclient "github.com/spark200410/consultancy/internal/redis"
	"github.com/spark200410/consultancy/internal/session"
	"github.com/spark200410/consultancy/internal/web"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("portal", cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("backend", cfg.BackendBaseURL).Msg("portal starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := backend.New(backend.Options{
		BaseURL:   cfg.BackendBaseURL,
		Timeout:   cfg.BackendTimeout,
		JWTSecret: cfg.BackendJWTSecret,
		Metrics:   m,
		Logger:    logger.With().Str("component", "backend").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("backend client")
	}
	checks := []web.Check{{Name: "backend", Critical: true, Ping: client.Ping}}

	var (
		store  session.Store = session.NewMemoryStore(10000, cfg.SessionTTL)
		cache  doctor.Cache  = doctor.NopCache{}
		locker chat.Locker
	)

	// Connect Redis
	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		store = session.NewRedisStore(rdb, cfg.SessionTTL)
		cache = doctor.NewRedisCache(rdb, cfg.DoctorCacheTTL, logger)
		locker = redisclient.NewConversationLocker(rdb, cfg.ChatLockTTL)
		checks = append(checks, web.Check{Name: "redis", Critical: true, Ping: redisclient.Ping(rdb)})
	} else {
		logger.Warn().Msg("redis not configured, sessions and chat locks stay in process")
	}

	// Connect Postgres
	var rec audit.Recorder = audit.NewLogRecorder(logger)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pool.Close()
		logger.Info().Msg("connected to Postgres")

		rec = audit.NewPgRecorder(pool, logger)
		checks = append(checks, web.Check{Name: "postgres", Ping: pool.Ping})
	}

	renderer, err := web.NewRenderer(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load templates")
	}

	dir := doctor.NewDirectory(client, cache, rec, logger)
	handler := web.NewRouter(web.RouterConfig{
		Auth:         client,
		Directory:    dir,
		Appointments: appointment.NewService(client, dir, rec, logger),
		Chat: chat.NewRegistry(chat.RegistryOptions{
			Responder: client,
			Locker:    locker,
			Device:    chat.NewBufferDevice(cfg.ChatMaxAudio, m),
			Metrics:   m,
			Logger:    logger.With().Str("component", "chat").Logger(),
			TTL:       cfg.SessionTTL,
		}),
		Sessions:      session.NewManager(store, cfg.SessionTTL, cfg.CookieSecure, logger),
		Renderer:      renderer,
		Audit:         rec,
		Limiter:       web.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst),
		TrustProxy:    cfg.TrustProxy,
		Checks:        checks,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		MaxPhotoBytes: cfg.MaxPhotoBytes,
		MaxAudioBytes: cfg.ChatMaxAudio,
		RedirectDelay: cfg.RedirectDelay,
		Logger:        logger,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down portal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
