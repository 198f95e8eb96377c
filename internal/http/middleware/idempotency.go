package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Headers understood by the submission endpoint. The site sends a fresh
// Idempotency-Key per form render and an X-Session-ID per browser tab.
const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotency-Replayed"
	HeaderSessionID           = "X-Session-ID"
)

const (
	maxSessionIDLen     = 128
	defaultMaxKeyLength = 200
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// gin context keys
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// ClientID scopes anonymous state (idempotency keys, assist throttling,
// view counting). It is "session:<id>" for a sane X-Session-ID and
// "ip:<addr>" otherwise.
func ClientID(c *gin.Context) string {
	s := strings.TrimSpace(c.GetHeader(HeaderSessionID))
	if s == "" || len(s) > maxSessionIDLen {
		return "ip:" + c.ClientIP()
	}
	return "session:" + s
}

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	k := c.GetString(ctxKeyIdemKey)
	return k, k != ""
}

// IsReplay reports whether a completed submission already exists for this
// client and key. The handler answers with the stored listing.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }

// IdempotencyOptions bounds which keys are accepted. Zero values select a
// 200 byte limit and the URL-safe alphabet plus ':'.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a live record exists for (clientID, key).
type IdempotencyLookup func(ctx context.Context, clientID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator checks the Idempotency-Key header on submissions.
// Requests without the header pass through untouched. A malformed key is
// rejected with 400. A key that lookup recognises marks the request as a
// replay and exempts it from rate limiting; lookup failures are logged and
// the request proceeds as new.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultMaxKeyLength
	}
	if opts.Pattern == nil {
		opts.Pattern = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > opts.MaxLen || !opts.Pattern.MatchString(key) {
			idempotencyResults.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)
		idempotencyResults.WithLabelValues(checkReplay(c, lookup, key)).Inc()
		c.Next()
	}
}

func checkReplay(c *gin.Context, lookup IdempotencyLookup, key string) string {
	if lookup == nil {
		return "fresh"
	}
	exists, err := lookup(c.Request.Context(), ClientID(c), key, time.Now().UTC())
	if err != nil {
		LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed; treating as fresh")
		return "lookup_error"
	}
	if !exists {
		return "fresh"
	}
	c.Set(ctxKeyIdemReplay, true)
	c.Set(ctxKeyRateBypass, true)
	return "replay"
}
