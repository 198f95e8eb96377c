// Package translate talks to the external translation proxy.
//
// The proxy accepts POST {text, source, target} and answers {translated}.
// Every failure mode (transport error, non-2xx status, undecodable body,
// timeout, cancellation) is soft: Translate returns "" and logs the cause.
// Callers treat "" as "no translation available".
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single translation call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of the proxy answer is read.
const maxResponseBytes = 64 << 10

// Translator is satisfied by Client and by test stubs.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) string
}

// Func adapts a plain function to Translator.
type Func func(ctx context.Context, text, source, target string) string

// Translate calls f.
func (f Func) Translate(ctx context.Context, text, source, target string) string {
	return f(ctx, text, source, target)
}

// Client is an HTTP Translator.
type Client struct {
	endpoint   string
	httpClient *http.Client
	upperCodes bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client (its Timeout is kept
// as given).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLowerCaseCodes sends "es"/"en" instead of "ES"/"EN".
func WithLowerCaseCodes() Option {
	return func(c *Client) { c.upperCodes = false }
}

// NewClient builds a Client for endpoint. A non-positive timeout selects
// DefaultTimeout. An empty endpoint yields a client whose every call returns "".
func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
		upperCodes: true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.endpoint != "" }

type request struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type response struct {
	Translated string `json:"translated"`
}

func (c *Client) code(lang string) string {
	lang = strings.TrimSpace(lang)
	if c.upperCodes {
		return strings.ToUpper(lang)
	}
	return strings.ToLower(lang)
}

// Translate returns the translation of text, or "" on any failure.
func (c *Client) Translate(ctx context.Context, text, source, target string) string {
	if !c.Enabled() || strings.TrimSpace(text) == "" {
		return ""
	}

	ctx, span := otel.Tracer("translate/Client").Start(ctx, "Translate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("translate.source", source),
			attribute.String("translate.target", target),
			attribute.Int("translate.text_len", len(text)),
		),
	)
	defer span.End()

	out, err := c.do(ctx, text, source, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translate failed")
		ev := log.Warn()
		if errors.Is(err, context.Canceled) {
			ev = log.Debug()
		}
		ev.Err(err).
			Str("source", source).
			Str("target", target).
			Msg("translation failed")
		return ""
	}
	return out
}

func (c *Client) do(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(request{Text: text, Source: c.code(source), Target: c.code(target)})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", fmt.Errorf("translate proxy returned %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	return strings.TrimSpace(out.Translated), nil
}
