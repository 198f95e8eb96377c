// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// SecurityHeaders hardens JSON responses. Exposing headers to browsers is the
// CORS middleware's job and is not repeated here.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// apiCSP locks down JSON responses; nothing they return should render.
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// swaggerPrefix serves HTML and scripts, so it keeps the browser default.
	swaggerPrefix  = "/swagger/"
	defaultHSTSAge = 180 * 24 * time.Hour
)

// SecurityOptions configures SecurityHeaders.
//
// HSTS is only sent on HTTPS requests, directly or behind a proxy that sets
// X-Forwarded-Proto. NoStorePrefixes lists path prefixes whose responses must
// never be cached: admin responses carry owner emails and captcha answers are
// single use.
type SecurityOptions struct {
	EnableHSTS      bool
	HSTSMaxAge      time.Duration // <= 0 means 180 days
	NoStorePrefixes []string
}

// SecurityHeaders returns the hardening middleware. Every response gets
// nosniff, DENY framing, no-referrer and an empty Permissions-Policy; JSON
// routes also get a deny-all Content-Security-Policy.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	age := opt.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSAge
	}
	hsts := "max-age=" + strconv.Itoa(int(age.Seconds())) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		path := c.Request.URL.Path

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		if !strings.HasPrefix(path, swaggerPrefix) {
			h.Set("Content-Security-Policy", apiCSP)
		}

		if hasAnyPrefix(path, opt.NoStorePrefixes) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		c.Next()
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request arrived over TLS, directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
