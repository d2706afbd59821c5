package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var userTracer = otel.Tracer("service/users")

// UserService serves the caller's profile and subscription.
type UserService struct {
	users   port.UserStore
	subs    port.SubscriptionStore
	cache   port.Cache[*domain.User]
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewUserService creates the user service. Either store may be nil when
// Supabase is not configured; the affected calls then fail with ErrUnavailable.
func NewUserService(
	users port.UserStore,
	subs port.SubscriptionStore,
	cache port.Cache[*domain.User],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:   users,
		subs:    subs,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// GetUser returns the user's profile, from cache when possible.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.users == nil {
		return nil, &domain.ErrUnavailable{Feature: "users"}
	}

	if u, ok := s.cache.Get(profileKey(userID)); ok && u != nil {
		s.metrics.IncrCacheHit("profile")
		return u, nil
	}
	s.metrics.IncrCacheMiss("profile")

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	s.cache.Set(profileKey(userID), u)
	return u, nil
}

// UpdateUser writes the non-nil fields of req.
func (s *UserService) UpdateUser(ctx context.Context, userID string, req *domain.UpdateUserRequest) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.users == nil {
		return nil, &domain.ErrUnavailable{Feature: "users"}
	}
	if req.Empty() {
		return nil, &domain.ErrValidation{Message: "No fields to update"}
	}

	u, err := s.users.UpdateUser(ctx, userID, req.UserColumns(), req.ProfileColumns())
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.cache.Set(profileKey(userID), u)

	s.logger.Info("user updated", zap.String("user_id", userID))
	return u, nil
}

// DeleteUser removes the account with its profile and subscription.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	ctx, span := userTracer.Start(ctx, "UserService.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.users == nil {
		return &domain.ErrUnavailable{Feature: "users"}
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.cache.Delete(profileKey(userID))

	s.logger.Info("user deleted", zap.String("user_id", userID))
	return nil
}

// GetSubscription returns the user's subscription, or an inactive one when
// the user never subscribed.
func (s *UserService) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	ctx, span := userTracer.Start(ctx, "UserService.GetSubscription")
	defer span.End()

	if s.subs == nil {
		return nil, &domain.ErrUnavailable{Feature: "subscriptions"}
	}
	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return &domain.Subscription{UserID: userID}, nil
	}
	if sub.Active && !sub.ActiveAt(s.now()) {
		sub.Active = false
	}
	return sub, nil
}

// Subscribe activates a simulated 30-day subscription. No payment is taken.
func (s *UserService) Subscribe(ctx context.Context, userID string, req *domain.SubscribeRequest) (*domain.Subscription, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Subscribe")
	defer span.End()
	span.SetAttributes(attribute.String("payment.method", req.PaymentMethod))

	if s.subs == nil {
		return nil, &domain.ErrUnavailable{Feature: "subscriptions"}
	}

	sub := domain.NewSubscription(userID, req.PaymentMethod, s.now())
	if err := s.subs.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.logger.Info("subscription activated",
		zap.String("user_id", userID),
		zap.String("payment_method", req.PaymentMethod),
		zap.Time("expires_at", sub.ExpiresAt),
	)
	return sub, nil
}

// CancelSubscription deactivates the user's subscription.
func (s *UserService) CancelSubscription(ctx context.Context, userID string) error {
	ctx, span := userTracer.Start(ctx, "UserService.CancelSubscription")
	defer span.End()

	if s.subs == nil {
		return &domain.ErrUnavailable{Feature: "subscriptions"}
	}
	if err := s.subs.DeactivateSubscription(ctx, userID); err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}

	s.logger.Info("subscription cancelled", zap.String("user_id", userID))
	return nil
}
