package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var notifyTracer = otel.Tracer("service/notifier")

// Notifier emails subscribed users about high-severity outages in their
// district. Each (user, outage) pair is mailed once while its sent marker lives.
type Notifier struct {
	users   port.UserStore
	subs    port.SubscriptionStore
	mailer  port.Mailer
	sent    port.Cache[bool]
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotifier creates the district alert dispatcher.
func NewNotifier(
	users port.UserStore,
	subs port.SubscriptionStore,
	mailer port.Mailer,
	sent port.Cache[bool],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Notifier {
	return &Notifier{
		users:   users,
		subs:    subs,
		mailer:  mailer,
		sent:    sent,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch mails every pending alert for the snapshot and returns how many
// were sent. Fallback snapshots are never dispatched.
func (n *Notifier) Dispatch(ctx context.Context, snap *domain.OutageSnapshot) (int, error) {
	if snap == nil || snap.Fallback {
		return 0, nil
	}

	ctx, span := notifyTracer.Start(ctx, "Notifier.Dispatch")
	defer span.End()

	users, err := n.users.ListNotifiableUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notifiable users: %w", err)
	}

	sent := 0
	for i := range users {
		user := &users[i]
		if user.Email == "" || user.District == "" {
			continue
		}

		sub, err := n.subs.GetSubscription(ctx, user.ID)
		if err != nil {
			n.logger.Warn("notifier: subscription lookup failed",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			continue
		}

		result := domain.ApplyFilters(domain.FilterInput{
			Outages:      snap.Outages,
			User:         user,
			Filters:      domain.DefaultFilters(),
			Subscription: sub,
			Now:          n.now(),
		})

		for _, o := range result.Notifications {
			key := fmt.Sprintf("sent:%s:%s", user.ID, o.ID)
			if done, _ := n.sent.Get(key); done {
				continue
			}
			subject, body := alertMail(o)
			if err := n.mailer.Send(ctx, user.Email, subject, body); err != nil {
				n.metrics.IncrNotification("failed")
				n.logger.Error("notifier: send failed",
					zap.String("user_id", user.ID),
					zap.String("outage_id", o.ID),
					zap.Error(err),
				)
				continue
			}
			n.sent.Set(key, true)
			n.metrics.IncrNotification("sent")
			sent++
		}
	}

	span.SetAttributes(
		attribute.Int("notify.users", len(users)),
		attribute.Int("notify.sent", sent),
	)
	return sent, nil
}

func alertMail(o domain.Outage) (subject, body string) {
	subject = fmt.Sprintf("%s: %s в район %s", domain.TypeName(o.Type), domain.ServiceName(string(o.ServiceType)), o.District)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", o.Type)
	fmt.Fprintf(&b, "Район: %s\n", o.District)
	fmt.Fprintf(&b, "Зона: %s\n", o.Area)
	fmt.Fprintf(&b, "Услуга: %s\n", domain.ServiceName(string(o.ServiceType)))
	fmt.Fprintf(&b, "От: %s\n", o.Start)
	fmt.Fprintf(&b, "До: %s\n", o.End)
	if o.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", o.Description)
	}
	fmt.Fprintf(&b, "\nИзточник: %s\n", o.Source)
	return subject, b.String()
}
