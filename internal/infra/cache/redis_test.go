package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/cache"
)

func newRedisCache[T any](t *testing.T, ttl time.Duration) (*cache.Redis[T], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedis[T](client, "pakli:", ttl, zap.NewNop()), mr
}

func TestRedis_GetMiss(t *testing.T) {
	c, _ := newRedisCache[string](t, time.Minute)

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestRedis_SetAndGet(t *testing.T) {
	c, mr := newRedisCache[*domain.OutageSnapshot](t, time.Minute)

	snap := &domain.OutageSnapshot{
		Outages:     []domain.Outage{{ID: "w1", Area: "Младост"}},
		RefreshedAt: "2025-01-15T08:00:00Z",
	}
	c.Set("outages", snap)

	if !mr.Exists("pakli:outages") {
		t.Fatal("expected value stored under the prefixed key")
	}
	if ttl := mr.TTL("pakli:outages"); ttl != time.Minute {
		t.Errorf("expected TTL 1m, got %v", ttl)
	}

	got, ok := c.Get("outages")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Outages) != 1 || got.Outages[0].Area != "Младост" || got.RefreshedAt != "2025-01-15T08:00:00Z" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestRedis_DecodeFailureIsMiss(t *testing.T) {
	c, mr := newRedisCache[*domain.OutageSnapshot](t, time.Minute)

	if err := mr.Set("pakli:outages", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, ok := c.Get("outages")
	if ok {
		t.Fatal("expected miss for undecodable value")
	}
	if got != nil {
		t.Errorf("expected zero value, got %+v", got)
	}
}

func TestRedis_Expiration(t *testing.T) {
	c, mr := newRedisCache[string](t, 30*time.Second)

	c.Set("key1", "value1")
	mr.FastForward(31 * time.Second)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be expired")
	}
}

func TestRedis_Delete(t *testing.T) {
	c, mr := newRedisCache[string](t, time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	if mr.Exists("pakli:key1") {
		t.Fatal("expected key to be deleted")
	}
	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedis_ServerDownIsMiss(t *testing.T) {
	c, mr := newRedisCache[string](t, time.Minute)

	c.Set("key1", "value1")
	mr.Close()

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	// Must not panic or block.
	c.Set("key2", "value2")
	c.Delete("key1")
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := cache.NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := cache.NewRedisClient(context.Background(), "not-a-redis-url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
