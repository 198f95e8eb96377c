package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// lines decodes the JSON log lines written to buf.
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad log line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		seen = asString(v)
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "Z-REQ-123", true},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.incoming != "" {
				req.Header.Set(requestIDHeader, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tc.keep != (got == tc.incoming) {
				t.Fatalf("incoming %q, echoed %q", tc.incoming, got)
			}
		})
	}
}

func TestRequestLogger_ScopedFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/listings/:network/:slug", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("detail")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/listings/telegram/golang-es", nil)
	req.Header.Set(requestIDHeader, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := lines(t, buf)
	if len(got) != 1 {
		t.Fatalf("want one line, got %d: %s", len(got), buf.String())
	}
	l := got[0]
	if l["message"] != "detail" || l["request_id"] != "rid-1" || l["method"] != "GET" {
		t.Fatalf("unexpected line: %v", l)
	}
	if l["route"] != "/listings/:network/:slug" {
		t.Fatalf("route = %v", l["route"])
	}
	if _, ok := l["trace_id"]; ok {
		t.Fatalf("no span was started, trace_id should be absent: %v", l)
	}
}

func TestRequestLogger_TraceIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(trace.ContextWithSpanContext(c.Request.Context(), sc))
		c.Next()
	})
	r.Use(RequestID(), RequestLogger())
	r.GET("/categories", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("categories")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/categories", nil))

	l := lines(t, buf)[0]
	if l["trace_id"] != tid.String() || l["span_id"] != sid.String() {
		t.Fatalf("trace fields missing: %v", l)
	}
}

func TestRequestLogger_UnmatchedRouteUsesPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.NoRoute(func(c *gin.Context) {
		LoggerFrom(c).Warn().Msg("no route")
		c.Status(http.StatusNotFound)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if l := lines(t, buf)[0]; l["route"] != "/nope" {
		t.Fatalf("route = %v", l["route"])
	}
}

func TestAccessLineCarriesScopedFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(), RedactingLogger(RedactOptions{}), Recovery())
	r.PUT("/admin/listings/:id/featured", func(c *gin.Context) {
		c.Set("userID", "ops@example.com")
		_ = c.Error(errSentinel{})
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPut, "/admin/listings/42/featured", nil)
	req.Header.Set(requestIDHeader, "rid-admin")
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := lines(t, buf)
	if len(got) != 1 {
		t.Fatalf("want one access line, got %s", buf.String())
	}
	l := got[0]
	if l["message"] != "http_request" || l["level"] != "error" {
		t.Fatalf("unexpected access line: %v", l)
	}
	if l["request_id"] != "rid-admin" || l["route"] != "/admin/listings/:id/featured" {
		t.Fatalf("scoped fields missing: %v", l)
	}
	if l["user_id"] != "ops@example.com" || l["errors"] == nil {
		t.Fatalf("late fields missing: %v", l)
	}
	// request_id comes from the scoped logger only once
	if strings.Count(buf.String(), `"request_id"`) != 1 {
		t.Fatalf("duplicate request_id: %s", buf.String())
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("json envelope", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), RequestLogger(), Recovery())
		r.POST("/listings", func(c *gin.Context) { panic("kaboom") })

		req := httptest.NewRequest(http.MethodPost, "/listings", nil)
		req.Header.Set(requestIDHeader, "rid-panic")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json body: %v", err)
		}
		if body["code"] != "internal_error" || body["request_id"] != "rid-panic" {
			t.Fatalf("unexpected body: %v", body)
		}
		l := lines(t, buf)[0]
		if l["message"] != "panic recovered" || l["panic"] != "kaboom" || l["route"] != "/listings" {
			t.Fatalf("panic not logged through request logger: %v", l)
		}
	})

	t.Run("after write", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), Recovery())
		r.GET("/stream", func(c *gin.Context) {
			c.String(http.StatusOK, "partial-body")
			panic("late kaboom")
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

		if strings.Contains(w.Body.String(), "internal_error") {
			t.Fatalf("JSON envelope written after body: %q", w.Body.String())
		}
		if !strings.Contains(buf.String(), "panic recovered") {
			t.Fatalf("expected panic log, got:\n%s", buf.String())
		}
	})
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	LoggerFrom(c).Info().Msg("bare")

	out := buf.String()
	if !strings.Contains(out, `"message":"bare"`) || strings.Contains(out, `"request_id"`) {
		t.Fatalf("fallback logger output: %s", out)
	}

	c.Set(loggerKey, "not a logger")
	if LoggerFrom(c) == nil {
		t.Fatal("LoggerFrom returned nil for a foreign value")
	}
}

func TestAsStringAndTruncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" {
		t.Fatalf("asString failed")
	}
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
