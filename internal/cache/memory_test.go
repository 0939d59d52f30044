package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryExactCache_TTL(t *testing.T) {
	c := NewMemoryExactCache(10 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	key := "fortune:u1:daily:2025-01-01:v1:abc"

	if err := c.Set(ctx, key, []byte(`{"score":80}`), 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != `{"score":80}` {
		t.Fatalf("unexpected value %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryExactCache_ValueIsCopied(t *testing.T) {
	c := NewMemoryExactCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	got[1] = 'y'

	again, _, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cache value was mutated: %q", again)
	}
}

func TestMemoryExactCache_DeleteAndPurge(t *testing.T) {
	c := NewMemoryExactCache(time.Hour)
	defer c.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_ = c.Set(ctx, "short", []byte("1"), time.Minute)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)
	_ = c.Set(ctx, "gone", []byte("3"), time.Hour)

	if err := c.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	n, err := c.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}

	// non-positive ttl removes
	_ = c.Set(ctx, "long", []byte("x"), 0)
	if _, hit, _ := c.Get(ctx, "long"); hit {
		t.Fatalf("expected miss after zero ttl Set")
	}
}
