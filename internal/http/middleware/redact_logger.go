// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, a structured HTTP logger that
// scrubs obvious PII from request metadata before emitting logs.
//
//   - Never logs request or response bodies (submissions carry an email)
//   - Redacts emails, phone numbers, UUIDs, and private invite tokens
//     (t.me/+<token>, chat.whatsapp.com/<code>) that reach the query string
//     through /links/check
//   - Masks sensitive headers (Authorization, Cookie, Set-Cookie,
//     X-Session-ID, plus custom)
//
// Usage:
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Api-Key"},
//	    SkipPaths:   []string{"/health", "/metrics"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders names extra headers whose values are replaced with
// "[REDACTED]" (case-insensitive). SkipPaths are request paths that are not
// logged at all, for probes and scrapes.
type RedactOptions struct {
	MaskHeaders []string
	SkipPaths   []string
}

var (
	uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	// Invite tokens, raw or percent-encoded ("%2B" for "+", "%2F" for "/").
	inviteRE = regexp.MustCompile(`(?i)(t\.me(?:/|%2F)(?:\+|%2B)|chat\.whatsapp\.com(?:/|%2F))[A-Za-z0-9_\-]+`)
	emailRE  = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only phone pattern so UUID hex segments cannot match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redact applies the scrubbers. Order matters: ids, invites, emails, then
// phones (the loosest pattern).
func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = inviteRE.ReplaceAllString(s, "${1}[REDACTED:invite]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// RedactingLogger returns a Gin middleware that logs each request with
// sensitive values scrubbed, at info, warn for 4xx, or error for 5xx and
// handler errors. The line is written through LoggerFrom, so it carries the
// request and trace ids when RequestLogger runs first.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-session-id":  {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		switch {
		case status >= 500 || len(c.Errors) > 0:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}
		ev := LoggerFrom(c).WithLevel(level)

		if !hasRequestLogger(c) {
			ev = ev.Str("request_id", fallbackRequestID(c)).
				Str("method", c.Request.Method).
				Str("route", path)
		}
		if uid, ok := c.Get("userID"); ok {
			ev = ev.Str("user_id", asString(uid))
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.
			Str("query", truncate(safeQuery, maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}

// fallbackRequestID finds the correlation id when RequestID did not run
// before this middleware.
func fallbackRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		return asString(v)
	}
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	return c.GetHeader(requestIDHeader)
}
