package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brightpath/brightpath/pkg/api"
	"github.com/brightpath/brightpath/pkg/audit"
	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/config"
	"github.com/brightpath/brightpath/pkg/maintenance"
	"github.com/brightpath/brightpath/pkg/middleware"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/rewards"
	"github.com/brightpath/brightpath/pkg/storage"
	"github.com/brightpath/brightpath/pkg/storage/postgres"
)

// accountBackend is the full persistence surface the service needs. Both the
// in-memory store and the postgres store satisfy it.
type accountBackend interface {
	storage.AccountStore
	audit.Store
	rewards.Store
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)
	ctx := context.Background()

	// Tracing is optional; a broken exporter should not stop the service.
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize tracing, continuing without it")
		providers = nil
	}

	var (
		backend accountBackend
		db      *sql.DB
	)
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.NewStore(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		if err := pg.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		backend = pg
		db = pg.DB()
		logger.Info("Using postgres storage")
	default:
		backend = storage.NewMemoryStore()
		logger.Warn("Using in-memory storage, data will not survive a restart")
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)

	var limitStore middleware.LimitStore
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			limitStore = middleware.NewRedisLimitStore(redisClient, "ratelimit")
		} else {
			limitStore = middleware.NewMemoryLimitStore(10000, cfg.RateLimit.GlobalWindow)
		}
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})

	server := api.NewServer(api.ServerConfig{
		Store:           backend,
		Issuer:          issuer,
		Hasher:          auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Lockout:         auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold, LockDuration: cfg.Auth.LockoutDuration},
		RefreshTokenCap: cfg.Auth.RefreshTokenCap,
		Auditor:         audit.NewRecorder(backend, logger),
		Rewards:         rewards.NewService(backend, logger),
		Metrics:         metrics,
		Logger:          logger,
		LimitStore:      limitStore,
		LoginLimit:      cfg.RateLimit.LoginLimit,
		LoginWindow:     cfg.RateLimit.LoginWindow,
		GlobalLimit:     cfg.RateLimit.GlobalLimit,
		GlobalWindow:    cfg.RateLimit.GlobalWindow,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		TraceRequests:   providers != nil,
	})

	scheduler := maintenance.NewScheduler(maintenance.DefaultConfig(cfg.Auth.RefreshTTL), backend, backend, logger)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	healthServer := startHealthServer(cfg, db, redisClient, registry, logger)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return scheduler.Stop(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if db != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return db.Close()
		})
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	go func() {
		logger.WithField("addr", addr).Info("Brightpath API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
}

// connectRedis dials Redis when configured. Connection failures degrade to
// in-memory rate limiting instead of stopping the service.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) *redis.Client {
	if cfg.URL == "" {
		return nil
	}

	var opts *redis.Options
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			logger.WithError(err).Warn("Invalid redis URL, falling back to in-memory rate limiting")
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.URL, Password: cfg.Password, DB: cfg.DB}
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, falling back to in-memory rate limiting")
		client.Close()
		return nil
	}
	logger.Info("Connected to redis")
	return client
}

// startHealthServer serves liveness, readiness, and metrics on a separate
// port so probes bypass auth and rate limiting.
func startHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.Handler(registry))
	}

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: mux,
	}
	go func() {
		logger.WithField("addr", server.Addr).Info("Health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	return server
}
