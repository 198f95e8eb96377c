// Package views decides whether a detail-page hit should bump a listing's
// view counter. A visitor counts once per listing per TTL window.
package views

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the dedup window when none is configured.
const DefaultTTL = 24 * time.Hour

// Deduper reports whether a hit is the first from visitor for slug within the
// window.
type Deduper interface {
	First(ctx context.Context, slug, visitor string) (bool, error)
}

// Redis keeps one marker key per (slug, visitor) with a TTL.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis builds a Redis deduper. A nil client returns Always.
func NewRedis(rdb *redis.Client, ttl time.Duration) Deduper {
	if rdb == nil {
		return Always{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, prefix: "views", ttl: ttl}
}

// First sets the marker if absent. An empty visitor always counts.
func (r *Redis) First(ctx context.Context, slug, visitor string) (bool, error) {
	if visitor == "" {
		return true, nil
	}
	ok, err := r.rdb.SetNX(ctx, r.key(slug, visitor), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("view marker: %w", err)
	}
	return ok, nil
}

// visitor ids are hashed so raw IPs never land in redis
func (r *Redis) key(slug, visitor string) string {
	sum := sha1.Sum([]byte(visitor))
	return r.prefix + ":" + slug + ":" + hex.EncodeToString(sum[:8])
}

// Always counts every hit.
type Always struct{}

func (Always) First(context.Context, string, string) (bool, error) { return true, nil }
