package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pakli/sofia-outages/internal/config"
	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/handler"
	"github.com/pakli/sofia-outages/internal/infra/cache"
	"github.com/pakli/sofia-outages/internal/infra/mailer"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/infra/resilience"
	"github.com/pakli/sofia-outages/internal/infra/source"
	"github.com/pakli/sofia-outages/internal/infra/supabase"
	"github.com/pakli/sofia-outages/internal/port"
	"github.com/pakli/sofia-outages/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sentMarkerTTL = 24 * time.Hour

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.SupabaseEnabled()),
		zap.String("outages_file", cfg.OutagesFile),
		zap.String("outages_feed_url", cfg.OutagesFeedURL),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.TracingEndpoint(), "pakli")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache backend ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory caches", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
			logger.Info("using redis for caches and rate limiting")
		}
	}

	snapshotCache := newCache[*domain.OutageSnapshot](rdb, "pakli:snapshot:", cfg.CacheTTL, logger)
	profileCache := newCache[*domain.User](rdb, "pakli:profile:", cfg.CacheTTL, logger)
	revokedTokens := newCache[bool](rdb, "pakli:revoked:", cfg.JWTAccessTTL, logger)
	sentMarkers := newCache[bool](rdb, "pakli:sent:", sentMarkerTTL, logger)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Outage sources ---
	var sources []port.OutageSource
	if cfg.OutagesFile != "" {
		sources = append(sources, source.NewFile(cfg.OutagesFile))
	}
	if cfg.OutagesFeedURL != "" {
		sources = append(sources, source.NewFeedClient(
			httpClient, cfg.OutagesFeedURL, resilience.NewCircuitBreaker("outages-feed"), resilienceCfg,
		))
	}

	// --- Supabase stores ---
	var (
		supabaseClient *supabase.Client
		userStore      port.UserStore
		subStore       port.SubscriptionStore
	)
	if cfg.SupabaseEnabled() {
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		supabaseClient = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		userStore = supabaseClient
		subStore = supabaseClient
		sources = append(sources, supabase.NewOutagesTable(supabaseClient, 0))
	} else {
		logger.Warn("Supabase not configured: auth, profile and subscription routes unavailable")
	}

	// --- Services ---
	outageSvc := service.NewOutageService(
		sources,
		snapshotCache,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics,
		logger,
	)

	var (
		authSvc  *service.AuthService
		userSvc  *service.UserService
		notifier *service.Notifier
	)
	if supabaseClient != nil {
		authSvc = service.NewAuthService(userStore, revokedTokens, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		userSvc = service.NewUserService(userStore, subStore, profileCache, metrics, logger)
		notifier = service.NewNotifier(userStore, subStore, newMailer(cfg, logger), sentMarkers, metrics, logger)
	}

	// --- Background refresh ---
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	refreshDone := service.NewRefresher(outageSvc, notifier, cfg.RefreshInterval, logger).Start(refreshCtx)

	// --- Router ---
	var checks []handler.HealthCheck
	if supabaseClient != nil {
		checks = append(checks, handler.HealthCheck{Name: "supabase", Check: supabaseClient.Ping})
	}
	if rdb != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	router := handler.NewRouter(handler.Deps{
		Outages:      outageSvc,
		Auth:         authSvc,
		Users:        userSvc,
		Metrics:      metrics,
		LoginLimiter: handler.NewRateLimiter(rdb, "login", cfg.LoginRateLimit, logger),
		CORSOrigins:  cfg.CORSAllowedOrigins,
		HealthChecks: checks,
		Logger:       logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	select {
	case <-refreshDone:
	case <-ctx.Done():
		logger.Warn("refresher did not stop in time")
	}

	logger.Info("server stopped")
}

// newCache returns a Redis-backed cache when rdb is set, in-memory otherwise.
func newCache[T any](rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) port.Cache[T] {
	if rdb != nil {
		return cache.NewRedis[T](rdb, prefix, ttl, logger)
	}
	return cache.New[T](ttl)
}

func newMailer(cfg *config.Config, logger *zap.Logger) port.Mailer {
	if cfg.SendGridAPIKey == "" {
		logger.Info("SENDGRID_API_KEY not set, alerts are logged instead of mailed")
		return mailer.NewLog(logger)
	}
	return mailer.NewSendGrid(cfg.SendGridAPIKey, cfg.SendGridHost, cfg.MailFrom, cfg.MailFromName)
}
