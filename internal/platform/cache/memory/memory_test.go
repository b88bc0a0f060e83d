package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/platform/cache"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c := New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("got %q, want v", got)
	}

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("abc"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got[0] = 'x'

	again, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(again) != "abc" {
		t.Errorf("stored value mutated: %q", again)
	}
}

func TestExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrExpired) {
		t.Fatalf("error = %v, want ErrExpired", err)
	}
	exists, err := c.Exists(ctx, "k")
	if err != nil || exists {
		t.Fatalf("Exists = %v, %v, want false", exists, err)
	}
}

func TestDeletePrefix(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	for _, k := range []string{"stats:event:1:invitations", "stats:event:1:rsvps", "stats:event:2:invitations"} {
		if err := c.Set(ctx, k, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if err := c.DeletePrefix(ctx, "stats:event:1:"); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}

	for _, k := range []string{"stats:event:1:invitations", "stats:event:1:rsvps"} {
		if _, err := c.Get(ctx, k); !errors.Is(err, cache.ErrNotFound) {
			t.Errorf("key %q survived: %v", k, err)
		}
	}
	if _, err := c.Get(ctx, "stats:event:2:invitations"); err != nil {
		t.Errorf("unrelated key dropped: %v", err)
	}
}

func TestCounter(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx, "cnt", 1, time.Minute)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}

	count, err := c.GetCount(ctx, "cnt")
	if err != nil || count != 3 {
		t.Fatalf("GetCount = %d, %v, want 3", count, err)
	}

	if err := c.Reset(ctx, "cnt"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	count, err = c.GetCount(ctx, "cnt")
	if err != nil || count != 0 {
		t.Fatalf("GetCount after reset = %d, %v, want 0", count, err)
	}
}

func TestCounterWindowExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if _, err := c.Increment(ctx, "cnt", 5, time.Millisecond); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// The expired window restarts from the new delta.
	got, err := c.Increment(ctx, "cnt", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("count = %d, want 1 after window expiry", got)
	}
}

func TestDriverRegistration(t *testing.T) {
	c, err := cache.New("memory", map[string]any{"default_ttl_seconds": 60}, nil)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}
