package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// SubscriptionStore implementation: table subscriptions
// ============================================================

type subscriptionRow struct {
	UserID        string    `json:"user_id"`
	Active        bool      `json:"active"`
	ExpiresAt     time.Time `json:"expires_at"`
	PaymentMethod string    `json:"payment_method"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	StartDate     time.Time `json:"start_date"`
}

// GetSubscription returns nil when the user never subscribed.
func (c *Client) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []subscriptionRow
	err := c.call(ctx, "subscriptions", func() error {
		body, err := c.doGet(ctx, "subscriptions?select=*&"+eq("user_id", userID)+"&limit=1")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode subscriptions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	return &domain.Subscription{
		UserID:        r.UserID,
		Active:        r.Active,
		ExpiresAt:     r.ExpiresAt,
		PaymentMethod: r.PaymentMethod,
		Amount:        r.Amount,
		Currency:      r.Currency,
		StartDate:     r.StartDate,
	}, nil
}

// SaveSubscription upserts the user's subscription row.
func (c *Client) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", sub.UserID))

	row := subscriptionRow{
		UserID:        sub.UserID,
		Active:        sub.Active,
		ExpiresAt:     sub.ExpiresAt.UTC(),
		PaymentMethod: sub.PaymentMethod,
		Amount:        sub.Amount,
		Currency:      sub.Currency,
		StartDate:     sub.StartDate.UTC(),
	}
	return c.call(ctx, "subscriptions", func() error {
		return c.doUpsert(ctx, "subscriptions?on_conflict=user_id", row)
	})
}

// DeactivateSubscription clears the active flag; the row is kept.
func (c *Client) DeactivateSubscription(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeactivateSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return c.call(ctx, "subscriptions", func() error {
		return c.doPatch(ctx, "subscriptions?"+eq("user_id", userID), map[string]any{"active": false})
	})
}
