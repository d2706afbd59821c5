// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/pakli/sofia-outages/internal/domain"
)

// OutageSource yields raw outage records in whatever shape the upstream uses.
type OutageSource interface {
	Name() string
	FetchOutages(ctx context.Context) ([]map[string]any, error)
}

// UserStore persists accounts and their profiles.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User, passwordHash string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetCredentialByEmail(ctx context.Context, email string) (*domain.UserCredential, error)
	UpdateUser(ctx context.Context, userID string, userCols, profileCols map[string]any) (*domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
	ListNotifiableUsers(ctx context.Context) ([]domain.User, error)
}

// SubscriptionStore persists simulated notification subscriptions.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	SaveSubscription(ctx context.Context, sub *domain.Subscription) error
	DeactivateSubscription(ctx context.Context, userID string) error
}

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
