package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/cache"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/service"

	"go.uber.org/zap"
)

func notifierFixture(t *testing.T) (*service.Notifier, *mockUserStore, *mockSubStore, *mockMailer) {
	t.Helper()
	users := newMockUserStore()
	subs := newMockSubStore()
	mailer := &mockMailer{}
	sent := cache.New[bool](24 * time.Hour)
	t.Cleanup(sent.Close)

	n := service.NewNotifier(users, subs, mailer, sent, observability.NewMetrics(), zap.NewNop())
	return n, users, subs, mailer
}

func alertSnapshot() *domain.OutageSnapshot {
	return &domain.OutageSnapshot{Outages: domain.NormalizeOutages(sampleRows())}
}

func TestDispatch_SendsOncePerOutage(t *testing.T) {
	n, users, subs, mailer := notifierFixture(t)
	users.add(domain.User{ID: "u1", Email: "a@b.bg", District: "Младост", EmailNotifications: true})
	_ = subs.SaveSubscription(context.Background(), domain.NewSubscription("u1", "epay", time.Now()))

	sent, err := n.Dispatch(context.Background(), alertSnapshot())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 1 || mailer.Count() != 1 {
		t.Fatalf("expected 1 mail, got %d (%d)", sent, mailer.Count())
	}
	if !strings.Contains(mailer.sent[0].subject, "Младост") {
		t.Errorf("subject = %q", mailer.sent[0].subject)
	}

	sent, _ = n.Dispatch(context.Background(), alertSnapshot())
	if sent != 0 || mailer.Count() != 1 {
		t.Errorf("alerts must not repeat, got %d more", sent)
	}
}

func TestDispatch_SkipsInactiveAndFallback(t *testing.T) {
	n, users, _, mailer := notifierFixture(t)
	users.add(domain.User{ID: "u1", Email: "a@b.bg", District: "Младост", EmailNotifications: true})

	if sent, _ := n.Dispatch(context.Background(), alertSnapshot()); sent != 0 {
		t.Errorf("no subscription: expected 0, got %d", sent)
	}

	fallback := &domain.OutageSnapshot{Outages: domain.FallbackOutages(time.Now()), Fallback: true}
	if sent, _ := n.Dispatch(context.Background(), fallback); sent != 0 {
		t.Errorf("fallback: expected 0, got %d", sent)
	}
	if mailer.Count() != 0 {
		t.Errorf("expected no mail, got %d", mailer.Count())
	}
}

func TestDispatch_FailedSendRetriedLater(t *testing.T) {
	n, users, subs, mailer := notifierFixture(t)
	users.add(domain.User{ID: "u1", Email: "a@b.bg", District: "Младост", EmailNotifications: true})
	_ = subs.SaveSubscription(context.Background(), domain.NewSubscription("u1", "epay", time.Now()))

	mailer.err = errors.New("smtp down")
	if sent, _ := n.Dispatch(context.Background(), alertSnapshot()); sent != 0 {
		t.Fatalf("expected 0 sent, got %d", sent)
	}

	mailer.err = nil
	if sent, _ := n.Dispatch(context.Background(), alertSnapshot()); sent != 1 {
		t.Errorf("expected retry to send 1, got %d", sent)
	}
}

func TestDispatch_StoreError(t *testing.T) {
	n, users, _, _ := notifierFixture(t)
	users.err = errors.New("db down")

	if _, err := n.Dispatch(context.Background(), alertSnapshot()); err == nil {
		t.Error("expected error")
	}
}
