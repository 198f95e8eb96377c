package captcha

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return srv, rdb
}

func TestManager_GenerateAndVerify(t *testing.T) {
	_, rdb := newRedis(t)
	m := NewManager(rdb, Options{Prefix: "test-captcha", TTL: time.Minute, Length: 4})
	ctx := context.Background()

	id, img, err := m.Generate(ctx, "127.0.0.1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if id == "" || !strings.HasPrefix(img, "data:image/") {
		t.Fatalf("unexpected challenge id=%q img prefix=%q", id, img[:min(len(img), 16)])
	}

	stored, err := rdb.Get(ctx, "test-captcha:"+id).Result()
	if err != nil || len(stored) != 4 {
		t.Fatalf("stored answer = %q, %v", stored, err)
	}

	if err := m.Verify(ctx, id, " "+stored+" "); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := m.Verify(ctx, id, stored); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second verify should find nothing, got %v", err)
	}
}

func TestManager_MismatchConsumesChallenge(t *testing.T) {
	_, rdb := newRedis(t)
	m := NewManager(rdb, Options{Prefix: "c"})
	ctx := context.Background()

	id, _, err := m.Generate(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := m.Verify(ctx, id, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if n, _ := rdb.Exists(ctx, "c:"+id).Result(); n != 0 {
		t.Fatalf("challenge should be consumed after a failed attempt")
	}
}

func TestManager_ExpiredOrBlank(t *testing.T) {
	srv, rdb := newRedis(t)
	m := NewManager(rdb, Options{Prefix: "c", TTL: time.Minute})
	ctx := context.Background()

	id, _, err := m.Generate(ctx, "10.0.0.3")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	srv.FastForward(2 * time.Minute)
	if err := m.Verify(ctx, id, "1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
	if err := m.Verify(ctx, "  ", "1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank id should be not found, got %v", err)
	}
}

func TestManager_RateLimitPerIP(t *testing.T) {
	srv, rdb := newRedis(t)
	m := NewManager(rdb, Options{Prefix: "rl", RateLimitPerMin: 2, RateLimitWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := m.Generate(ctx, "8.8.8.8"); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if _, _, err := m.Generate(ctx, "8.8.8.8"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if _, _, err := m.Generate(ctx, "9.9.9.9"); err != nil {
		t.Fatalf("other IPs are independent: %v", err)
	}

	srv.FastForward(time.Minute + time.Second)
	if _, _, err := m.Generate(ctx, "8.8.8.8"); err != nil {
		t.Fatalf("window should reset: %v", err)
	}
}

func TestManager_RedisDown(t *testing.T) {
	srv, rdb := newRedis(t)
	m := NewManager(rdb, Options{})
	srv.Close()

	if _, _, err := m.Generate(context.Background(), ""); err == nil {
		t.Fatalf("expected store error")
	}
	if err := m.Verify(context.Background(), "id", "x"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	var d Disabled
	if err := d.Verify(context.Background(), "", ""); err != nil {
		t.Fatalf("disabled gate must pass everything: %v", err)
	}
	if _, _, err := d.Generate(context.Background(), "1.1.1.1"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestNewManager_PanicsWithoutClient(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewManager(nil, Options{})
}
