package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Outages: GET /api/outages
// ============================================================

// parseOutageQuery reads category, area, type, serviceType, q and
// onlyUserDistrict. Missing selectors mean "all".
func parseOutageQuery(r *http.Request) service.OutageQuery {
	q := r.URL.Query()
	f := domain.DefaultFilters()

	if v := strings.TrimSpace(q.Get("category")); v != "" {
		f.SelectedCategory = v
	}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		f.SelectedType = v
	}
	if v := strings.TrimSpace(q.Get("serviceType")); v != "" {
		f.SelectedService = v
	}
	f.SearchQuery = q.Get("q")
	if v := q.Get("onlyUserDistrict"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.ShowOnlyUserDistrict = b
		}
	}

	return service.OutageQuery{Filters: f, Area: q.Get("area")}
}

// viewer loads the authenticated user and subscription. Failures degrade to
// the anonymous view rather than failing the outage list.
func viewer(ctx context.Context, users *service.UserService, logger *zap.Logger) (*domain.User, *domain.Subscription) {
	userID := UserIDFromContext(ctx)
	if userID == "" || users == nil {
		return nil, nil
	}

	user, err := users.GetUser(ctx, userID)
	if err != nil {
		logger.Warn("outages: could not load viewer", zap.String("user_id", userID), zap.Error(err))
		return nil, nil
	}
	sub, err := users.GetSubscription(ctx, userID)
	if err != nil {
		logger.Warn("outages: could not load subscription", zap.String("user_id", userID), zap.Error(err))
		sub = nil
	}
	return user, sub
}

func listOutagesHandler(outages *service.OutageService, users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/outages")
		defer span.End()

		query := parseOutageQuery(r)
		user, sub := viewer(ctx, users, logger)

		resp := outages.List(ctx, query, user, sub)
		span.SetAttributes(
			attribute.Int("outages.total", resp.Total),
			attribute.Bool("outages.fallback", resp.Warning != ""),
		)
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// GET /api/outages/stats
// ============================================================

func outageStatsHandler(outages *service.OutageService, users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/outages/stats")
		defer span.End()

		user, _ := viewer(ctx, users, logger)
		stats := outages.Stats(ctx, parseOutageQuery(r), user)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    stats,
		})
	}
}

// ============================================================
// GET /api/outages/{id}
// ============================================================

func getOutageHandler(outages *service.OutageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/outages/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("outage.id", id))

		o, err := outages.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"data":        o,
			"coordinates": domain.Locate(*o),
		})
	}
}

// ============================================================
// GET /api/districts
// ============================================================

func districtsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    domain.SofiaDistricts,
			"center":  domain.SofiaCenter,
		})
	}
}

// ============================================================
// GET /api/notifications
// ============================================================

func notificationsHandler(outages *service.OutageService, users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/notifications")
		defer span.End()

		userID := UserIDFromContext(ctx)
		user, err := users.GetUser(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		sub, err := users.GetSubscription(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		notifications := outages.Notifications(ctx, user, sub)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":            true,
			"data":               notifications,
			"total":              len(notifications),
			"subscriptionActive": sub.Active,
		})
	}
}
