package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/http/middleware"
	"github.com/tbourn/joingroups-backend/internal/translate"
)

func newAssistRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(d)
	r := gin.New()
	r.GET("/captcha", h.GetCaptcha)
	r.POST("/translate/suggest", h.SuggestTranslation)
	return r
}

func TestGetCaptcha_IssueThenRateLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := captcha.NewManager(rdb, captcha.Options{RateLimitPerMin: 1})
	r := newAssistRouter(Deps{Captcha: m})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/captcha", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("challenge must not be cached")
	}
	var resp CaptchaResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.CaptchaID == "" || !strings.HasPrefix(resp.Image, "data:image/") {
		t.Fatalf("unexpected challenge: id=%q image=%.30q", resp.CaptchaID, resp.Image)
	}
	if !srv.Exists("captcha:" + resp.CaptchaID) {
		t.Fatalf("answer not stored")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/captcha", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" || decodeError(t, w).Code != ErrCodeRateLimited {
		t.Fatalf("unexpected 429: %v %s", w.Header(), w.Body.String())
	}
}

func TestGetCaptcha_Unavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	broken := captcha.NewManager(rdb, captcha.Options{})
	srv.Close()

	cases := []struct {
		name string
		gen  captcha.Generator
	}{
		{"not wired", nil},
		{"disabled by config", captcha.Disabled{}},
		{"store down", broken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newAssistRouter(Deps{Captcha: tc.gen})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/captcha", nil))
			if w.Code != http.StatusServiceUnavailable || decodeError(t, w).Code != ErrCodeCaptchaFailed {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestSuggestTranslation(t *testing.T) {
	var gotSrc, gotDst string
	tr := translate.Func(func(_ context.Context, text, source, target string) string {
		gotSrc, gotDst = source, target
		return "EN: " + text
	})
	r := newAssistRouter(Deps{Suggest: translate.NewDebouncer(tr, 5*time.Millisecond)})

	desc := "Comunidad de programadores que comparten ofertas"
	w := postJSON(t, r, "/translate/suggest", map[string]string{
		"base_lang":      "es",
		"description_es": desc,
	}, map[string]string{middleware.HeaderSessionID: "form-7"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	var s translate.Suggestion
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !s.Fired || s.Field != "description_en" || s.Text != "EN: "+desc {
		t.Fatalf("unexpected suggestion: %+v", s)
	}
	if gotSrc != "es" || gotDst != "en" {
		t.Fatalf("direction = %s->%s", gotSrc, gotDst)
	}

	// Filled target: nothing to suggest, still 200.
	w = postJSON(t, r, "/translate/suggest", map[string]string{
		"base_lang":      "es",
		"description_es": desc,
		"description_en": "already here",
	}, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	if w.Code != http.StatusOK || s.Fired || s.Reason != translate.ReasonTargetFilled {
		t.Fatalf("filled target: %d %+v", w.Code, s)
	}

	if w := postJSON(t, r, "/translate/suggest", "{", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: %d", w.Code)
	}
}

func TestSuggestTranslation_NotConfigured(t *testing.T) {
	r := newAssistRouter(Deps{})
	w := postJSON(t, r, "/translate/suggest", map[string]string{"base_lang": "es"}, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
