package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// setupRedisTest creates a miniredis instance and returns the cache and a
// cleanup function
func setupRedisTest(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cfg := Config{
		URL:        "redis://" + mr.Addr(),
		DB:         0,
		MaxRetries: 3,
		PoolSize:   10,
	}

	c, err := NewRedisCache(cfg)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis cache: %v", err)
	}

	cleanup := func() {
		c.Close()
		mr.Close()
	}
	return c, mr, cleanup
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(Config{URL: "invalid://url"})
	if err == nil {
		t.Fatal("Expected error for invalid redis URL")
	}
}

func TestNewRedisCache_ConnectionFailure(t *testing.T) {
	_, err := NewRedisCache(Config{URL: "redis://localhost:9999"})
	if err == nil {
		t.Fatal("Expected connection error")
	}
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c, _, cleanup := setupRedisTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := c.Set(ctx, "permissions:u1:ws1", []byte(`["card:read"]`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, ok, err := c.Get(ctx, "permissions:u1:ws1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a hit")
	}
	if string(data) != `["card:read"]` {
		t.Errorf("Unexpected payload: %s", data)
	}

	if err := c.Delete(ctx, "permissions:u1:ws1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "permissions:u1:ws1"); ok {
		t.Error("Expected a miss after delete")
	}
}

func TestRedisCache_MissIsNotAnError(t *testing.T) {
	c, _, cleanup := setupRedisTest(t)
	defer cleanup()

	data, ok, err := c.Get(context.Background(), "member:ws1:ghost")
	if err != nil {
		t.Fatalf("Miss must not be an error: %v", err)
	}
	if ok || data != nil {
		t.Error("Expected a clean miss")
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, mr, cleanup := setupRedisTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := c.Set(ctx, "context:u1", []byte(`{}`), 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	if _, ok, _ := c.Get(ctx, "context:u1"); ok {
		t.Error("Expected entry to expire with its TTL")
	}
}

func TestRedisCache_DeleteMultipleAndMissing(t *testing.T) {
	c, _, cleanup := setupRedisTest(t)
	defer cleanup()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	if err := c.Delete(ctx, "a", "b", "never-existed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := c.Delete(ctx); err != nil {
		t.Fatalf("Empty delete must be a no-op: %v", err)
	}
}

func TestRedisCache_TransportErrorSurfaces(t *testing.T) {
	c, mr, cleanup := setupRedisTest(t)
	defer cleanup()

	mr.Close()

	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Error("Expected transport error after server shutdown")
	}
	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err == nil {
		t.Error("Expected transport error on set after server shutdown")
	}
}
