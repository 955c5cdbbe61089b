package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client, time.Minute)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := redisBackend(t)

	s, err := b.Open(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Clear(ctx) })

	if err := s.RegenerateID(ctx); err != nil {
		t.Fatalf("RegenerateID on empty bag: %v", err)
	}
	if err := s.Set(ctx, KeyUserID, "foo"); err != nil {
		t.Fatal(err)
	}
	old := s.ID()
	if err := s.RegenerateID(ctx); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := s.Get(ctx, KeyUserID); err != nil || !ok || v != "foo" {
		t.Errorf("Get after regenerate = %q, %v, %v", v, ok, err)
	}
	reopened, err := b.Open(ctx, old)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ID() == old {
		t.Error("old id must not resolve after regenerate")
	}
	if err := s.Remove(ctx, KeyUserID); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, KeyUserID); ok {
		t.Error("user_id should be removed")
	}
}
