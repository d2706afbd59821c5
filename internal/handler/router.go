package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck checks one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps groups what the router needs. Auth and Users may be nil when
// Supabase is not configured; LoginLimiter may be nil to disable limiting.
type Deps struct {
	Outages      *service.OutageService
	Auth         *service.AuthService
	Users        *service.UserService
	Metrics      *observability.Metrics
	LoginLimiter *RateLimiter
	CORSOrigins  []string
	HealthChecks []HealthCheck
	Logger       *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.HealthChecks))
	r.Get("/readyz", readyzHandler())
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// =============================================
		// Outages (public; a token adds district view + alerts)
		// =============================================
		r.Group(func(r chi.Router) {
			if d.Auth != nil {
				r.Use(OptionalAuthMiddleware(d.Auth, logger))
			}
			r.Get("/outages", listOutagesHandler(d.Outages, d.Users, logger))
			r.Get("/outages/stats", outageStatsHandler(d.Outages, d.Users, logger))
			r.Get("/outages/{id}", getOutageHandler(d.Outages, logger))
		})
		r.Get("/districts", districtsHandler())

		if d.Metrics != nil {
			r.Get("/metrics/outages", outageMetricsHandler(d.Metrics))
		}

		// =============================================
		// Auth
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			if d.Auth == nil {
				r.Handle("/*", unavailableHandler("auth"))
				return
			}
			r.Post("/register", registerHandler(d.Auth, logger))
			r.Group(func(r chi.Router) {
				if d.LoginLimiter != nil {
					r.Use(d.LoginLimiter.Handler)
				}
				r.Post("/login", loginHandler(d.Auth, logger))
			})
			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(d.Auth, logger))
				r.Post("/logout", logoutHandler(d.Auth, logger))
			})
		})

		// =============================================
		// Profile, subscription, notifications (protected)
		// =============================================
		r.Group(func(r chi.Router) {
			if d.Auth == nil || d.Users == nil {
				r.Handle("/users/*", unavailableHandler("users"))
				r.Handle("/subscription", unavailableHandler("subscriptions"))
				r.Handle("/notifications", unavailableHandler("notifications"))
				return
			}
			r.Use(JWTAuthMiddleware(d.Auth, logger))

			r.Get("/users/me", getMeHandler(d.Users, logger))
			r.Patch("/users/me", updateMeHandler(d.Users, logger))
			r.Delete("/users/me", deleteMeHandler(d.Users, d.Auth, logger))

			r.Get("/subscription", getSubscriptionHandler(d.Users, logger))
			r.Post("/subscription", subscribeHandler(d.Users, logger))
			r.Delete("/subscription", cancelSubscriptionHandler(d.Users, logger))

			r.Get("/notifications", notificationsHandler(d.Outages, d.Users, logger))
		})
	})

	return r
}

func unavailableHandler(feature string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := &domain.ErrUnavailable{Feature: feature}
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "pakli-api", Status: "healthy", LastChecked: now},
		}

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			start := time.Now()
			err := c.Check(ctx)
			cancel()

			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        c.Name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func outageMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetOutageSnapshot())
	}
}
