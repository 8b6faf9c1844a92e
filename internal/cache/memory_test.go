package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "a")
	if err != nil || got != "1" {
		t.Errorf("Expected '1', got %q (err %v)", got, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", "v", 30*time.Second)

	now = now.Add(29 * time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Errorf("Expected hit before expiry, got %v", err)
	}

	now = now.Add(time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected miss at expiry, got %v", err)
	}
}

func TestMemoryCacheEvictsSoonestExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)

	_ = c.Set(ctx, "long", "1", time.Hour)
	_ = c.Set(ctx, "short", "2", time.Minute)
	_ = c.Set(ctx, "new", "3", time.Hour)

	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Len())
	}
	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected 'short' to be evicted")
	}
	if _, err := c.Get(ctx, "long"); err != nil {
		t.Errorf("Expected 'long' to survive, got %v", err)
	}
}

func TestMemoryCacheClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "2", 0)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	type payload struct {
		Price float64 `json:"price"`
	}
	if err := SetJSON(ctx, c, TokenPriceKey("mint"), payload{Price: 1.5}, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var out payload
	if err := GetJSON(ctx, c, TokenPriceKey("mint"), &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Price != 1.5 {
		t.Errorf("Expected price 1.5, got %v", out.Price)
	}
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (failingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Clear(context.Context) error { return errors.New("down") }

func TestFallbackUsesSecondaryWhenPrimaryDown(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(0)
	f := &Fallback{Primary: failingCache{}, Secondary: mem}

	if err := f.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := f.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Expected 'v' from secondary, got %q (err %v)", got, err)
	}
}
