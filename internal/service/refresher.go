package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher rebuilds the outage snapshot on an interval and hands each
// fresh snapshot to the notifier.
type Refresher struct {
	outages  *OutageService
	notifier *Notifier
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher creates a refresher. notifier may be nil.
func NewRefresher(outages *OutageService, notifier *Notifier, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		outages:  outages,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// Start runs one refresh immediately and then one per interval until ctx is
// done. It returns a channel that is closed when the loop has stopped.
func (r *Refresher) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		r.tick(ctx)
		if r.interval <= 0 {
			return
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.tick(ctx)
			case <-ctx.Done():
				r.logger.Info("outage refresher stopped")
				return
			}
		}
	}()
	return done
}

func (r *Refresher) tick(ctx context.Context) {
	snap := r.outages.Refresh(ctx)
	if r.notifier == nil || ctx.Err() != nil {
		return
	}
	sent, err := r.notifier.Dispatch(ctx, snap)
	if err != nil {
		r.logger.Error("notification dispatch failed", zap.Error(err))
		return
	}
	if sent > 0 {
		r.logger.Info("district alerts sent", zap.Int("count", sent))
	}
}
