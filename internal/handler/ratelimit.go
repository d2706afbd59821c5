package handler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client IP. It uses Redis when a client is
// given and an in-process token bucket otherwise or when Redis fails.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	prefix   string
	logger   *zap.Logger
}

// NewRateLimiter creates a limiter allowing perMinute requests per IP.
// rdb may be nil.
func NewRateLimiter(rdb *redis.Client, prefix string, perMinute int, logger *zap.Logger) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	rl := &RateLimiter{
		fallback: &localLimiter{},
		limit:    redis_rate.PerMinute(perMinute),
		prefix:   prefix,
		logger:   logger,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

// Handler is the chi middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:" + rl.prefix + ":" + clientIP(r)
		res := rl.allow(r.Context(), key)

		setRateLimitHeaders(w, res, rl.limit)
		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests,
				fmt.Sprintf("Твърде много опити. Опитайте отново след %d секунди.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) *redis_rate.Result {
	if rl.limiter != nil {
		res, err := rl.limiter.Allow(ctx, key, rl.limit)
		if err == nil {
			return res
		}
		rl.logger.Warn("rate limiter: redis failed, using local limiter", zap.Error(err))
	}
	return rl.fallback.allow(key, rl.limit)
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

// ============================================================
// In-process fallback
// ============================================================

const (
	localCleanupInterval = 5 * time.Minute
	localEntryTTL        = 10 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

type localLimiter struct {
	limiters    sync.Map
	lastCleanup atomic.Int64
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	now := time.Now().Unix()
	l.maybeCleanup(now)

	ratePerSec := float64(limit.Rate) / limit.Period.Seconds()
	entryI, ok := l.limiters.Load(key)
	if !ok {
		entryI, _ = l.limiters.LoadOrStore(key, &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(ratePerSec), limit.Burst),
		})
	}
	entry := entryI.(*limiterEntry)
	entry.lastAccess.Store(now)

	res := &redis_rate.Result{
		Limit:      limit,
		ResetAfter: time.Duration(float64(time.Second) / ratePerSec),
		RetryAfter: -1,
	}
	if entry.limiter.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / ratePerSec)
	}
	if remaining := int(entry.limiter.Tokens()); remaining > 0 {
		res.Remaining = remaining
	}
	return res
}

func (l *localLimiter) maybeCleanup(now int64) {
	last := l.lastCleanup.Load()
	if now-last < int64(localCleanupInterval.Seconds()) || !l.lastCleanup.CompareAndSwap(last, now) {
		return
	}
	cutoff := now - int64(localEntryTTL.Seconds())
	l.limiters.Range(func(key, value any) bool {
		if entry, ok := value.(*limiterEntry); ok && entry.lastAccess.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}
