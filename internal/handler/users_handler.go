package handler

import (
	"net/http"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Profile: /api/users/me
// ============================================================

func getMeHandler(users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/users/me")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		user, err := users.GetUser(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	}
}

func updateMeHandler(users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/users/me")
		defer span.End()

		var req domain.UpdateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user, err := users.UpdateUser(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	}
}

func deleteMeHandler(users *service.UserService, authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/users/me")
		defer span.End()

		if err := users.DeleteUser(ctx, UserIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := authSvc.Logout(ctx, ClaimsFromContext(ctx)); err != nil {
			logger.Warn("delete user: token not revoked", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true, Message: "Профилът е изтрит."})
	}
}

// ============================================================
// Subscription: /api/subscription
// ============================================================

func getSubscriptionHandler(users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/subscription")
		defer span.End()

		sub, err := users.GetSubscription(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
	}
}

func subscribeHandler(users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/subscription")
		defer span.End()

		var req domain.SubscribeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		sub, err := users.Subscribe(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "subscription": sub})
	}
}

func cancelSubscriptionHandler(users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/subscription")
		defer span.End()

		if err := users.CancelSubscription(ctx, UserIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true, Message: "Абонаментът е прекратен."})
	}
}
