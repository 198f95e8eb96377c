// Package captcha is the human-verification gate in front of listing
// submission. Challenges are digit images rendered by base64Captcha; answers
// live in redis with a TTL and are consumed on the first verification attempt.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound    = errors.New("captcha not found or expired")
	ErrMismatch    = errors.New("captcha answer mismatch")
	ErrRateLimited = errors.New("captcha requests too frequent")
)

// Generator issues challenges.
type Generator interface {
	Generate(ctx context.Context, ip string) (id, b64 string, err error)
}

// Verifier checks an answer. A nil error means the caller passed.
type Verifier interface {
	Verify(ctx context.Context, id, answer string) error
}

// Options configures image shape, answer TTL and the per-IP issue limit.
type Options struct {
	Prefix          string
	TTL             time.Duration
	Width           int
	Height          int
	Length          int
	MaxSkew         float64
	DotCount        int
	RateLimitPerMin int // 0 disables the limit
	RateLimitWindow time.Duration
}

const (
	defaultPrefix  = "captcha"
	defaultTTL     = 5 * time.Minute
	defaultWidth   = 240
	defaultHeight  = 80
	defaultLength  = 5
	defaultMaxSkew = 0.7
	defaultDot     = 80
)

// Manager generates and verifies challenges backed by redis.
type Manager struct {
	store   *redis.Client
	driver  base64Captcha.Driver
	prefix  string
	ttl     time.Duration
	maxHits int64
	rlTTL   time.Duration
}

// NewManager panics on a nil client; a missing store is a wiring bug.
func NewManager(rdb *redis.Client, opts Options) *Manager {
	if rdb == nil {
		panic("captcha manager requires redis client")
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.Length <= 0 {
		opts.Length = defaultLength
	}
	if opts.MaxSkew <= 0 {
		opts.MaxSkew = defaultMaxSkew
	}
	if opts.DotCount <= 0 {
		opts.DotCount = defaultDot
	}
	if opts.RateLimitPerMin < 0 {
		opts.RateLimitPerMin = 0
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}

	return &Manager{
		store:   rdb,
		driver:  base64Captcha.NewDriverDigit(opts.Height, opts.Width, opts.Length, opts.MaxSkew, opts.DotCount),
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		maxHits: int64(opts.RateLimitPerMin),
		rlTTL:   opts.RateLimitWindow,
	}
}

// Generate returns a new challenge id and its image as a base64 data URI.
func (m *Manager) Generate(ctx context.Context, ip string) (string, string, error) {
	if err := m.checkRateLimit(ctx, ip); err != nil {
		return "", "", err
	}

	id, content, answer := m.driver.GenerateIdQuestionAnswer()
	item, err := m.driver.DrawCaptcha(content)
	if err != nil {
		return "", "", fmt.Errorf("draw captcha: %w", err)
	}

	if err := m.store.Set(ctx, m.key(id), strings.ToLower(answer), m.ttl).Err(); err != nil {
		return "", "", fmt.Errorf("store captcha: %w", err)
	}
	return id, item.EncodeB64string(), nil
}

// Verify consumes the stored answer for id, so every challenge can be tried
// exactly once.
func (m *Manager) Verify(ctx context.Context, id, answer string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}

	stored, err := m.store.GetDel(ctx, m.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("get captcha: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(answer), stored) {
		return ErrMismatch
	}
	return nil
}

func (m *Manager) key(id string) string {
	return m.prefix + ":" + id
}

func (m *Manager) checkRateLimit(ctx context.Context, ip string) error {
	if m.maxHits <= 0 || strings.TrimSpace(ip) == "" {
		return nil
	}

	key := m.prefix + ":rl:" + ip
	count, err := m.store.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("captcha rate limit incr: %w", err)
	}
	if count == 1 {
		if err := m.store.Expire(ctx, key, m.rlTTL).Err(); err != nil {
			return fmt.Errorf("captcha rate limit expire: %w", err)
		}
	}
	if count > m.maxHits {
		return ErrRateLimited
	}
	return nil
}

// Disabled is the gate used when verification is switched off by config.
// Every answer passes and no challenge can be issued.
type Disabled struct{}

var ErrDisabled = errors.New("captcha disabled")

func (Disabled) Generate(context.Context, string) (string, string, error) {
	return "", "", ErrDisabled
}

func (Disabled) Verify(context.Context, string, string) error { return nil }
