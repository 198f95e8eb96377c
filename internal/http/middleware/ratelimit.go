// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a lightweight, in-memory, token-bucket rate limiter
// with per-identity buckets and opportunistic garbage collection.
//
// Features:
//   - Per-key token buckets using golang.org/x/time/rate
//   - Pluggable identity function (admin subject or client IP)
//   - Named scopes, so a strict bucket for submissions can sit behind the
//     global one; rejections are counted per scope in Prometheus
//   - Best-effort cleanup of idle buckets to bound memory
//   - Bypass for idempotent replays (when paired with IdempotencyValidator)
//
// The limiter is process-local. It is edge-level abuse control, not an
// authorization mechanism.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByIP keys on the client IP. The X-Session-ID header is not used: a
// client can rotate it freely.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// KeyByUserOrIP prefers the authenticated admin subject (Gin context key
// "userID") and falls back to the client IP. It only sees a subject when
// mounted after RequireBearer.
//
// Keys are prefixed so the namespaces cannot collide ("user:abc" vs
// "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	ip := KeyByIP()
	return func(c *gin.Context) string {
		if s := c.GetString("userID"); s != "" {
			return "user:" + s
		}
		return ip(c)
	}
}

// bucket holds one identity's limiter and when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter. It is safe for
// concurrent use.
type RateLimiter struct {
	scope   string
	rps     rate.Limit
	burst   int
	keyFn   keyFunc
	mu      sync.Mutex
	buckets map[string]*bucket

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter for scope with the given tokens per
// second and burst size. Burst values <= 0 are coerced to 1.
func NewRateLimiter(scope string, rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		scope:   scope,
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		ttl:     10 * time.Minute,
	}
}

// getLimiter returns (and touches) the limiter for key, creating it if
// absent. Every ~5000 lookups idle buckets are evicted; eviction runs before
// the requested bucket is touched so a stale one can go too.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.cleanupN = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay of a completed submission.
func IsRateBypass(c *gin.Context) bool { return c.GetBool(ctxKeyRateBypass) }

// maxRetryAfter caps the advertised wait, and is used when the bucket never
// refills (rps 0).
const maxRetryAfter = 60

// Handler returns a Gin middleware that enforces the limits. Replays skip
// limiting. Rejections answer 429 with Retry-After set to the whole seconds
// until the next token, and the standard error envelope:
//
//	{ "request_id": "<uuid>", "code": "too_many_requests", "message": "rate limit exceeded" }
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := time.Now()
		res := rl.getLimiter(rl.keyFn(c)).ReserveN(now, 1)
		delay := res.DelayFrom(now)
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		rateLimited.WithLabelValues(rl.scope).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res.OK(), delay)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

func retryAfterSeconds(ok bool, delay time.Duration) int {
	if !ok || delay == rate.InfDuration {
		return maxRetryAfter
	}
	secs := int(math.Ceil(delay.Seconds()))
	switch {
	case secs < 1:
		return 1
	case secs > maxRetryAfter:
		return maxRetryAfter
	}
	return secs
}
