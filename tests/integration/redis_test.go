package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/seu-repo/ocpp-central/internal/adapter/cache"
	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

func newRedisCache(t *testing.T) ports.Cache {
	t.Helper()
	e := setupEnv(t)
	c, err := cache.NewRedisCache(e.redisURL, e.log)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_SetGet(t *testing.T) {
	// Arrange
	c := newRedisCache(t)
	ctx := context.Background()

	// Act
	if err := c.Set(ctx, "it:setget", "cached", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := c.Get(ctx, "it:setget")

	// Assert
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "cached" {
		t.Errorf("expected cached, got %q", got)
	}
}

func TestRedisCache_MissIsNotAnError(t *testing.T) {
	c := newRedisCache(t)

	got, err := c.Get(context.Background(), "it:never-set")

	if err != nil {
		t.Fatalf("expected no error on a miss, got %v", err)
	}
	if got != "" {
		t.Errorf("expected an empty value, got %q", got)
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	// Arrange
	c := newRedisCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, "it:expiring", "short-lived", 100*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Act
	before, _ := c.Get(ctx, "it:expiring")
	time.Sleep(300 * time.Millisecond)
	after, err := c.Get(ctx, "it:expiring")

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

func TestRedisCache_Delete(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "it:doomed", "v", time.Minute)

	if err := c.Delete(ctx, "it:doomed"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got, _ := c.Get(ctx, "it:doomed")
	if got != "" {
		t.Errorf("expected the key gone, got %q", got)
	}
}

func TestRedisCache_Ping(t *testing.T) {
	c := newRedisCache(t)

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// TestRedisCache_AuthorizationRecordRoundTrip stores a whitelist record the
// way the authorization service does and reads it back intact.
func TestRedisCache_AuthorizationRecordRoundTrip(t *testing.T) {
	// Arrange
	c := newRedisCache(t)
	ctx := context.Background()
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &domain.AuthorizationRecord{
		IdTag:       "TAG-RT",
		Status:      domain.AuthAccepted,
		ExpiryDate:  &expiry,
		ParentIdTag: "FLEET-9",
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Act
	if err := c.Set(ctx, "idtag:TAG-RT", string(data), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	raw, err := c.Get(ctx, "idtag:TAG-RT")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// Assert
	var got domain.AuthorizationRecord
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Status != domain.AuthAccepted || got.ParentIdTag != "FLEET-9" {
		t.Errorf("record did not survive the round trip: %+v", got)
	}
	if got.ExpiryDate == nil || !got.ExpiryDate.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, got.ExpiryDate)
	}
}
