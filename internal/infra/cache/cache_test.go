package cache_test

import (
	"testing"
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_StoresSnapshots(t *testing.T) {
	c := cache.New[*domain.OutageSnapshot](5 * time.Minute)
	defer c.Close()

	snap := &domain.OutageSnapshot{Outages: []domain.Outage{{ID: "o-1", District: "Младост"}}}
	c.Set("outages:snapshot", snap)

	got, ok := c.Get("outages:snapshot")
	if !ok {
		t.Fatal("expected snapshot to be cached")
	}
	if len(got.Outages) != 1 || got.Outages[0].District != "Младост" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[int](time.Minute)
	c.Close()
	c.Close()
}
