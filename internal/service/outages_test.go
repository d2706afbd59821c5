package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/cache"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/infra/resilience"
	"github.com/pakli/sofia-outages/internal/port"
	"github.com/pakli/sofia-outages/internal/service"

	"go.uber.org/zap"
)

func sampleRows() []map[string]any {
	return []map[string]any{
		{
			"id":           "a",
			"source":       "Софийска вода",
			"category":     "emergency",
			"affectedArea": "ж.к. Младост 1",
			"district":     "Младост",
			"startTime":    "2025-01-15T10:00:00Z",
			"endTime":      "2025-01-15T16:00:00Z",
			"serviceType":  "water",
			"severity":     "high",
			"description":  "Авария",
		},
		{
			"id":          "b",
			"source":      "ЧЕЗ",
			"category":    "scheduled",
			"location":    map[string]any{"address": "ул. Шипка 5", "district": "Оборище"},
			"startTime":   "2025-01-16T09:00:00Z",
			"endTime":     "2025-01-16T12:00:00Z",
			"serviceType": "electricity",
			"priority":    "low",
			"description": "Ремонт",
		},
	}
}

func newOutageService(sources ...port.OutageSource) (*service.OutageService, *cache.InMemory[*domain.OutageSnapshot]) {
	c := cache.New[*domain.OutageSnapshot](time.Minute)
	svc := service.NewOutageService(
		sources,
		c,
		resilience.NewBulkhead(2),
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return svc, c
}

func TestSnapshot_MergesDedupsAndSorts(t *testing.T) {
	dup := sampleRows()[0]
	svc, c := newOutageService(
		&mockSource{name: "file", rows: sampleRows()},
		&mockSource{name: "feed", rows: []map[string]any{dup}},
	)
	defer c.Close()

	snap := svc.Snapshot(context.Background())
	if snap.Fallback {
		t.Fatalf("unexpected fallback: %s", snap.Warning)
	}
	if len(snap.Outages) != 2 {
		t.Fatalf("expected 2 outages after dedup, got %d", len(snap.Outages))
	}
	if snap.Outages[0].ID != "b" {
		t.Errorf("expected newest first, got %s", snap.Outages[0].ID)
	}
}

func TestSnapshot_CachedBetweenCalls(t *testing.T) {
	src := &mockSource{name: "file", rows: sampleRows()}
	svc, c := newOutageService(src)
	defer c.Close()

	svc.Snapshot(context.Background())
	svc.Snapshot(context.Background())

	if src.Calls() != 1 {
		t.Errorf("expected 1 fetch, got %d", src.Calls())
	}
}

func TestSnapshot_OneSourceFailing(t *testing.T) {
	svc, c := newOutageService(
		&mockSource{name: "feed", err: errors.New("timeout")},
		&mockSource{name: "file", rows: sampleRows()},
	)
	defer c.Close()

	snap := svc.Snapshot(context.Background())
	if snap.Fallback {
		t.Fatal("a single failing source must not trigger fallback")
	}
	if len(snap.Outages) != 2 {
		t.Errorf("expected 2 outages, got %d", len(snap.Outages))
	}
}

func TestSnapshot_FallbackWhenAllFail(t *testing.T) {
	src := &mockSource{name: "file", err: errors.New("boom")}
	svc, c := newOutageService(src)
	defer c.Close()

	snap := svc.Snapshot(context.Background())
	if !snap.Fallback {
		t.Fatal("expected fallback snapshot")
	}
	if len(snap.Outages) != 1 || snap.Outages[0].ID != domain.FallbackID {
		t.Fatalf("unexpected fallback data: %+v", snap.Outages)
	}
	if !strings.HasPrefix(snap.Warning, domain.FallbackWarningPrefix) || !strings.Contains(snap.Warning, "boom") {
		t.Errorf("unexpected warning: %q", snap.Warning)
	}
	if c.Len() != 0 {
		t.Error("fallback data must not be cached")
	}

	svc.Snapshot(context.Background())
	if src.Calls() != 2 {
		t.Errorf("expected a retry on the next call, got %d fetches", src.Calls())
	}
}

func TestSnapshot_ConcurrentMissesShareOneFetch(t *testing.T) {
	src := &mockSource{name: "feed", err: errors.New("timeout"), delay: 200 * time.Millisecond}
	svc, c := newOutageService(src)
	defer c.Close()

	const callers = 8
	totals := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := svc.List(context.Background(), service.OutageQuery{Filters: domain.DefaultFilters()}, nil, nil)
			totals[i] = resp.Total
		}()
	}
	wg.Wait()

	if src.Calls() != 1 {
		t.Errorf("expected concurrent callers to share 1 fetch, got %d", src.Calls())
	}
	for i, total := range totals {
		if total != 1 {
			t.Errorf("caller %d: expected the fallback record, got %d outages", i, total)
		}
	}
}

func TestSnapshot_RebuildSurvivesCallerCancel(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", rows: sampleRows()})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := svc.Snapshot(ctx)
	if snap.Fallback {
		t.Errorf("cancelled caller must not force fallback: %s", snap.Warning)
	}
}

func TestSnapshot_FallbackWhenEmpty(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", rows: []map[string]any{}})
	defer c.Close()

	snap := svc.Snapshot(context.Background())
	if !snap.Fallback {
		t.Fatal("empty data must fall back")
	}
}

func TestList_QueryFilters(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", rows: sampleRows()})
	defer c.Close()

	tests := []struct {
		name  string
		query service.OutageQuery
		want  []string
	}{
		{"all", service.OutageQuery{Filters: domain.DefaultFilters()}, []string{"b", "a"}},
		{"category", service.OutageQuery{Filters: domain.Filters{SelectedCategory: "emergency"}}, []string{"a"}},
		{"type scheduled", service.OutageQuery{Filters: domain.Filters{SelectedType: "scheduled"}}, []string{"b"}},
		{"service", service.OutageQuery{Filters: domain.Filters{SelectedService: "electricity"}}, []string{"b"}},
		{"area", service.OutageQuery{Area: "МЛАДОСТ"}, []string{"a"}},
		{"area ignores district", service.OutageQuery{Area: "Оборище"}, nil},
		{"search matches district", service.OutageQuery{Filters: domain.Filters{SearchQuery: "оборище"}}, []string{"b"}},
		{"search", service.OutageQuery{Filters: domain.Filters{SearchQuery: " ремонт "}}, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.List(context.Background(), tt.query, nil, nil)
			if !resp.Success {
				t.Fatal("expected success")
			}
			if resp.Total != len(tt.want) {
				t.Fatalf("expected %d outages, got %d", len(tt.want), resp.Total)
			}
			for i, id := range tt.want {
				if resp.Data[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, resp.Data[i].ID)
				}
				if resp.Data[i].Labels == nil {
					t.Errorf("outage %s has no labels", id)
				}
			}
			if resp.Notifications != nil {
				t.Error("anonymous responses carry no notifications")
			}
		})
	}
}

func TestList_UserDistrictAndNotifications(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", rows: sampleRows()})
	defer c.Close()

	user := &domain.User{ID: "u1", District: "младост"}
	sub := domain.NewSubscription("u1", "epay", time.Now())

	resp := svc.List(context.Background(), service.OutageQuery{Filters: domain.DefaultFilters()}, user, sub)
	if resp.Total != 1 || resp.Data[0].ID != "a" {
		t.Fatalf("expected only the user's district, got %+v", resp.Data)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].ID != "a" {
		t.Errorf("expected one notification, got %+v", resp.Notifications)
	}

	resp = svc.List(context.Background(), service.OutageQuery{Filters: domain.DefaultFilters()}, user, nil)
	if resp.Notifications == nil || len(resp.Notifications) != 0 {
		t.Errorf("no subscription must give an empty notification list, got %v", resp.Notifications)
	}
}

func TestGet(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", rows: sampleRows()})
	defer c.Close()

	o, err := svc.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Labels == nil || o.Labels.Type != "Авария" {
		t.Errorf("unexpected labels: %+v", o.Labels)
	}

	_, err = svc.Get(context.Background(), "missing")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", rows: sampleRows()})
	defer c.Close()

	stats := svc.Stats(context.Background(), service.OutageQuery{Filters: domain.DefaultFilters()}, nil)
	if stats.Total != 2 || stats.Emergency != 1 || stats.Scheduled != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Water != 1 || stats.Electricity != 1 || stats.Heating != 0 {
		t.Errorf("unexpected service counts: %+v", stats)
	}
	if stats.BySeverity[domain.SeverityHigh] != 1 || stats.BySeverity[domain.SeverityLow] != 1 {
		t.Errorf("unexpected severity counts: %+v", stats.BySeverity)
	}
}

func TestList_FallbackIgnoresFilters(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", err: errors.New("boom")})
	defer c.Close()

	user := &domain.User{ID: "u1", District: "Младост"}
	sub := domain.NewSubscription("u1", "epay", time.Now())

	tests := []struct {
		name   string
		user   *domain.User
		sub    *domain.Subscription
		mutate func(*domain.Filters)
	}{
		{"user in another district", user, sub, func(*domain.Filters) {}},
		{"category", nil, nil, func(f *domain.Filters) { f.SelectedCategory = "scheduled" }},
		{"type", nil, nil, func(f *domain.Filters) { f.SelectedType = "scheduled" }},
		{"search", nil, nil, func(f *domain.Filters) { f.SearchQuery = "няма такова" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := domain.DefaultFilters()
			tt.mutate(&f)
			q := service.OutageQuery{Filters: f, Area: "Лозенец"}

			resp := svc.List(context.Background(), q, tt.user, tt.sub)
			if resp.Total != 1 || resp.Data[0].ID != domain.FallbackID {
				t.Fatalf("expected the fallback record, got %+v", resp.Data)
			}
			if resp.Data[0].Labels == nil {
				t.Error("fallback record must carry labels")
			}
			if resp.Warning == "" {
				t.Error("expected a warning")
			}
			if len(resp.Notifications) != 0 {
				t.Errorf("fallback data must not notify, got %+v", resp.Notifications)
			}

			if stats := svc.Stats(context.Background(), q, tt.user); stats.Total != 1 {
				t.Errorf("expected stats over the fallback record, got %+v", stats)
			}
		})
	}
}

func TestNotifications_FallbackIsEmpty(t *testing.T) {
	svc, c := newOutageService(&mockSource{name: "file", err: errors.New("boom")})
	defer c.Close()

	user := &domain.User{ID: "u1", District: "Център"}
	got := svc.Notifications(context.Background(), user, domain.NewSubscription("u1", "epay", time.Now()))
	if len(got) != 0 {
		t.Errorf("expected no notifications from fallback data, got %+v", got)
	}
}
