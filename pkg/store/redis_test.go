package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// setupRedisStoreTest creates a miniredis instance and returns the store and cleanup function
func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	config := RedisConfig{
		URL:        "redis://" + mr.Addr(),
		DB:         0,
		MaxRetries: 3,
		PoolSize:   10,
	}

	s, err := NewRedisStore(config)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis store: %v", err)
	}

	cleanup := func() {
		s.Close()
		mr.Close()
	}

	return s, mr, cleanup
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{URL: "invalid://url"})
	if err == nil {
		t.Fatal("Expected error for invalid Redis URL")
	}
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{URL: "redis://localhost:9999"})
	if err == nil {
		t.Fatal("Expected connection error")
	}
}

func TestRedisStore_SetAndGet(t *testing.T) {
	s, _, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx := context.Background()

	if err := s.Set(ctx, "guild:1:role_mode", "levels"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := s.Get(ctx, "guild:1:role_mode")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if value != "levels" {
		t.Errorf("Expected 'levels', got %q", value)
	}
}

func TestRedisStore_GetMissingKey(t *testing.T) {
	s, _, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx := context.Background()

	value, ok, err := s.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Errorf("Expected key to be absent, got %q", value)
	}
}

func TestRedisStore_SetWithTTL(t *testing.T) {
	s, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "verify:token-1", "payload", 10*time.Minute); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	// Expire in miniredis and confirm the key is gone
	mr.FastForward(10*time.Minute + time.Second)

	_, ok, err := s.Get(ctx, "verify:token-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected key to be expired")
	}
}

func TestRedisStore_Delete(t *testing.T) {
	s, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set("discord:1:keycloak", "kc-1")
	mr.Set("keycloak:kc-1:discord", "1")

	if err := s.Delete(ctx, "discord:1:keycloak", "keycloak:kc-1:discord"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if mr.Exists("discord:1:keycloak") || mr.Exists("keycloak:kc-1:discord") {
		t.Error("Expected both keys to be deleted")
	}
}

func TestRedisStore_DeleteMissingKeyIsNoOp(t *testing.T) {
	s, _, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx := context.Background()

	if err := s.Delete(ctx, "nonexistent"); err != nil {
		t.Fatalf("Delete of missing key should not fail: %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete with no keys should not fail: %v", err)
	}
}

func TestRedisStore_Keys(t *testing.T) {
	s, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set("discord:1:keycloak", "a")
	mr.Set("discord:2:keycloak", "b")
	mr.Set("discord:1:verified_at", "123")

	keys, err := s.Keys(ctx, "discord:*:keycloak")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 matching keys, got %d: %v", len(keys), keys)
	}
}

func TestRedisStore_KeysNoMatches(t *testing.T) {
	s, _, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	keys, err := s.Keys(context.Background(), "nothing:*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	s, _, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestRedisStore_Close(t *testing.T) {
	s, mr, _ := setupRedisStoreTest(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	mr.Close()

	if err := s.Ping(context.Background()); err == nil {
		t.Error("Expected error after closing connection")
	}
}

func TestRedisStore_ContextCancellation(t *testing.T) {
	s, _, cleanup := setupRedisStoreTest(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, "key", "value"); err == nil {
		t.Fatal("Expected error with cancelled context")
	}
}
