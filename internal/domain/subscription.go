package domain

import "time"

// Subscription is a simulated notification-payment record. No payment
// gateway is involved; activation is trusted.
type Subscription struct {
	UserID        string    `json:"-"`
	Active        bool      `json:"active"`
	ExpiresAt     time.Time `json:"expiresAt"`
	PaymentMethod string    `json:"paymentMethod"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	StartDate     time.Time `json:"startDate"`
}

const (
	SubscriptionPeriod   = 30 * 24 * time.Hour
	SubscriptionAmount   = 1.0
	SubscriptionCurrency = "BGN"
)

// ActiveAt reports whether the subscription grants notifications at now.
// A nil subscription is inactive.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s == nil || !s.Active {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// NewSubscription builds an active subscription starting at now.
func NewSubscription(userID, method string, now time.Time) *Subscription {
	return &Subscription{
		UserID:        userID,
		Active:        true,
		ExpiresAt:     now.Add(SubscriptionPeriod),
		PaymentMethod: method,
		Amount:        SubscriptionAmount,
		Currency:      SubscriptionCurrency,
		StartDate:     now,
	}
}

// SubscribeRequest is the body for POST /api/subscription.
type SubscribeRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=epay stripe"`
}
