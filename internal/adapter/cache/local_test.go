package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestMemoryCache_SetGet(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()

	// Act
	if err := c.Set(ctx, "idtag:TAG-1", "cached", 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := c.Get(ctx, "idtag:TAG-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "cached" {
		t.Errorf("expected cached, got %q", got)
	}
}

func TestMemoryCache_MissIsNotAnError(t *testing.T) {
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()

	got, err := c.Get(context.Background(), "never-set")

	if err != nil {
		t.Fatalf("expected no error on a miss, got %v", err)
	}
	if got != "" {
		t.Errorf("expected an empty value, got %q", got)
	}
}

func TestMemoryCache_OverwriteKeepsLastValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()

	_ = c.Set(ctx, "k", "first", 0)
	_ = c.Set(ctx, "k", "second", 0)

	got, _ := c.Get(ctx, "k")
	if got != "second" {
		t.Errorf("expected second, got %q", got)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()
	_ = c.Set(ctx, "k", "short-lived", 20*time.Millisecond)

	// Act
	before, _ := c.Get(ctx, "k")
	time.Sleep(50 * time.Millisecond)
	after, err := c.Get(ctx, "k")

	// Assert
	if before != "short-lived" {
		t.Errorf("expected the value before expiry, got %q", before)
	}
	if err != nil {
		t.Fatalf("expected no error after expiry, got %v", err)
	}
	if after != "" {
		t.Errorf("expected the value gone after expiry, got %q", after)
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()
	_ = c.Set(ctx, "k", "pinned", 0)

	time.Sleep(30 * time.Millisecond)

	got, _ := c.Get(ctx, "k")
	if got != "pinned" {
		t.Errorf("expected the value to stay, got %q", got)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()
	_ = c.Set(ctx, "k", "v", 0)

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, _ := c.Get(ctx, "k")
	if got != "" {
		t.Errorf("expected the key gone, got %q", got)
	}
}

func TestMemoryCache_CleanupEvictsExpiredEntries(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := NewMemoryCache(10*time.Millisecond, newTestLogger()).(*MemoryCache)
	defer c.Close()
	_ = c.Set(ctx, "short", "v", 5*time.Millisecond)
	_ = c.Set(ctx, "long", "v", time.Hour)

	// Act: wait for the cleanup loop to sweep the expired entry.
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.RLock()
		_, shortAlive := c.data["short"]
		_, longAlive := c.data["long"]
		c.mu.RUnlock()
		if !shortAlive {
			// Assert
			if !longAlive {
				t.Error("cleanup must not evict live entries")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("cleanup never evicted the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCache_Ping(t *testing.T) {
	c := NewMemoryCache(time.Minute, newTestLogger())
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
