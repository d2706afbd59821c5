package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/observability"
	"github.com/pakli/sofia-outages/internal/infra/resilience"
	"github.com/pakli/sofia-outages/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/outages")

const snapshotKey = "outages:snapshot"

// errNoData is reported when every source answered but none had records.
var errNoData = errors.New("no outage data found")

// OutageQuery is the query string of the outage endpoints.
type OutageQuery struct {
	Filters domain.Filters
	// Area narrows by area text only, unlike the free-text search.
	Area string
}

// OutageService merges the configured sources into one normalized snapshot
// and serves filtered views of it.
type OutageService struct {
	sources  []port.OutageSource
	cache    port.Cache[*domain.OutageSnapshot]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time

	// rebuilds collapses concurrent rebuilds into one source fetch.
	rebuilds singleflight.Group
}

// NewOutageService creates the outage service with all dependencies injected.
func NewOutageService(
	sources []port.OutageSource,
	cache port.Cache[*domain.OutageSnapshot],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OutageService {
	return &OutageService{
		sources:  sources,
		cache:    cache,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Snapshot returns the cached snapshot, rebuilding it on a miss. Callers
// that miss while a rebuild is running wait for that rebuild.
func (s *OutageService) Snapshot(ctx context.Context) *domain.OutageSnapshot {
	if snap, ok := s.cache.Get(snapshotKey); ok && snap != nil {
		s.metrics.IncrCacheHit("outages")
		return snap
	}
	s.metrics.IncrCacheMiss("outages")
	return s.sharedRebuild(ctx)
}

// Refresh rebuilds the snapshot, joining a rebuild already in flight.
func (s *OutageService) Refresh(ctx context.Context) *domain.OutageSnapshot {
	return s.sharedRebuild(ctx)
}

// sharedRebuild detaches the rebuild from the caller's cancellation, since
// every waiting caller receives its result.
func (s *OutageService) sharedRebuild(ctx context.Context) *domain.OutageSnapshot {
	v, _, _ := s.rebuilds.Do(snapshotKey, func() (any, error) {
		return s.rebuild(context.WithoutCancel(ctx)), nil
	})
	return v.(*domain.OutageSnapshot)
}

func (s *OutageService) rebuild(ctx context.Context) *domain.OutageSnapshot {
	ctx, span := tracer.Start(ctx, "OutageService.Refresh")
	defer span.End()

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("refresh", time.Since(start))
	}()

	outages, err := s.fetchAll(ctx)
	if err == nil && len(outages) == 0 {
		err = errNoData
	}
	if err != nil {
		s.logger.Warn("serving fallback outages", zap.Error(err))
		snap := &domain.OutageSnapshot{
			Outages:     domain.FallbackOutages(s.now()),
			RefreshedAt: s.now().UTC().Format(time.RFC3339Nano),
			Fallback:    true,
			Warning:     domain.FallbackWarningPrefix + err.Error(),
		}
		s.metrics.RecordRefresh(len(snap.Outages), true)
		span.SetAttributes(attribute.Bool("outages.fallback", true))
		return snap
	}

	outages = domain.Dedup(outages)
	domain.SortNewestFirst(outages)

	snap := &domain.OutageSnapshot{
		Outages:     outages,
		RefreshedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	s.cache.Set(snapshotKey, snap)
	s.metrics.RecordRefresh(len(outages), false)
	span.SetAttributes(attribute.Int("outages.count", len(outages)))

	s.logger.Info("outage snapshot refreshed",
		zap.Int("count", len(outages)),
		zap.Duration("took", time.Since(start)),
	)
	return snap
}

// fetchAll queries every source concurrently. It fails only when every
// source failed; results keep the configured source order.
func (s *OutageService) fetchAll(ctx context.Context) ([]domain.Outage, error) {
	if len(s.sources) == 0 {
		return nil, errors.New("no outage sources configured")
	}

	results := make([][]map[string]any, len(s.sources))
	errs := make([]error, len(s.sources))

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			if err := s.bulkhead.Acquire(gCtx); err != nil {
				errs[i] = err
				return nil
			}
			defer s.bulkhead.Release()

			rows, err := src.FetchOutages(gCtx)
			if err != nil {
				s.logger.Error("outage source failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				s.metrics.IncrSourceError(src.Name())
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			results[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	var (
		outages []domain.Outage
		failed  []string
	)
	for i := range s.sources {
		if errs[i] != nil {
			failed = append(failed, errs[i].Error())
			continue
		}
		outages = append(outages, domain.NormalizeOutages(results[i])...)
	}
	if len(failed) == len(s.sources) {
		return nil, errors.New(strings.Join(failed, "; "))
	}
	return outages, nil
}

// List applies the query to the snapshot. Notifications are only included
// when a user is given.
func (s *OutageService) List(ctx context.Context, q OutageQuery, user *domain.User, sub *domain.Subscription) *domain.OutageListResponse {
	ctx, span := tracer.Start(ctx, "OutageService.List")
	defer span.End()

	snap := s.Snapshot(ctx)
	result := s.filter(snap, q, user, sub)

	data := make([]domain.Outage, len(result.Filtered))
	for i, o := range result.Filtered {
		data[i] = o.WithLabels()
	}

	resp := &domain.OutageListResponse{
		Success:   true,
		Data:      data,
		Total:     len(data),
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Warning:   snap.Warning,
	}
	if user != nil {
		resp.Notifications = result.Notifications
	}
	span.SetAttributes(attribute.Int("outages.total", resp.Total))
	return resp
}

// Notifications returns the user's alert subset of the unfiltered snapshot.
func (s *OutageService) Notifications(ctx context.Context, user *domain.User, sub *domain.Subscription) []domain.Outage {
	q := OutageQuery{Filters: domain.DefaultFilters()}
	return s.filter(s.Snapshot(ctx), q, user, sub).Notifications
}

// Stats aggregates the filtered view.
func (s *OutageService) Stats(ctx context.Context, q OutageQuery, user *domain.User) domain.OutageStatistics {
	ctx, span := tracer.Start(ctx, "OutageService.Stats")
	defer span.End()

	return domain.Statistics(s.filter(s.Snapshot(ctx), q, user, nil).Filtered)
}

// Get looks an outage up by id in the current snapshot.
func (s *OutageService) Get(ctx context.Context, id string) (*domain.Outage, error) {
	for _, o := range s.Snapshot(ctx).Outages {
		if o.ID == id {
			labeled := o.WithLabels()
			return &labeled, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "outage", ID: id}
}

// filter applies the query to the snapshot. Fallback data is returned whole
// and never raises notifications.
func (s *OutageService) filter(snap *domain.OutageSnapshot, q OutageQuery, user *domain.User, sub *domain.Subscription) domain.FilterResult {
	if snap.Fallback {
		return domain.FilterResult{Filtered: snap.Outages, Notifications: []domain.Outage{}}
	}

	outages := snap.Outages
	if area := strings.ToLower(strings.TrimSpace(q.Area)); area != "" {
		narrowed := make([]domain.Outage, 0, len(outages))
		for _, o := range outages {
			if strings.Contains(strings.ToLower(o.Area), area) {
				narrowed = append(narrowed, o)
			}
		}
		outages = narrowed
	}

	return domain.ApplyFilters(domain.FilterInput{
		Outages:      outages,
		User:         user,
		Filters:      q.Filters,
		Subscription: sub,
		Now:          s.now(),
	})
}
