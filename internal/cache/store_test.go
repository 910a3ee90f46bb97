package cache

import (
	"context"
	"testing"
	"time"

	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/logger"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var got map[string]string
	ok, err := store.Get(ctx, "missing", &got)
	if err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	in := map[string]string{"bitcoin": "Bitcoin"}
	if err := store.Set(ctx, "meta:1", in); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Mutating the source must not leak into the cache
	in["bitcoin"] = "changed"

	ok, err = store.Get(ctx, "meta:1", &got)
	if err != nil || !ok {
		t.Fatalf("Get(meta:1) = %v, %v", ok, err)
	}
	if got["bitcoin"] != "Bitcoin" {
		t.Errorf("got %q, want Bitcoin", got["bitcoin"])
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "a", 1)
	store.Set(ctx, "b", 2)
	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}

	store.Reset()
	if store.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", store.Len())
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	cfg := &config.RedisConfig{
		Host:        "127.0.0.1",
		Port:        1,
		PoolSize:    1,
		DialTimeout: 200 * time.Millisecond,
	}

	if _, err := NewRedisStore(cfg, logger.Discard()); err == nil {
		t.Error("expected error for unreachable Redis")
	}
}
