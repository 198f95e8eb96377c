// Package config loads the server settings from environment variables.
//
// Unset or empty variables take their defaults. A variable that is set but
// does not parse is an error, and Load reports every problem at once so a
// broken deployment shows the whole list on the first start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "joingroups-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT, optional resource attribute
}

// TranslateConfig points at the external translation endpoint.
type TranslateConfig struct {
	URL            string        // TRANSLATE_URL; empty disables translation
	Timeout        time.Duration // TRANSLATE_TIMEOUT
	Debounce       time.Duration // TRANSLATE_DEBOUNCE (interactive suggestions)
	LowerCaseCodes bool          // TRANSLATE_LOWERCASE_CODES ("es" instead of "ES")
}

// BackfillConfig drives the durable translation back-fill.
type BackfillConfig struct {
	QueuePath   string        // QUEUE_PATH; empty keeps the queue in memory
	Interval    time.Duration // BACKFILL_INTERVAL
	MaxAttempts int           // BACKFILL_MAX_ATTEMPTS
	MaxFailures int           // BACKFILL_MAX_FAILURES (consecutive)
	GCInterval  time.Duration // QUEUE_GC_INTERVAL
}

// RedisConfig locates the redis instance shared by captcha and view markers.
type RedisConfig struct {
	Addr     string // REDIS_ADDR; empty disables view dedup and requires CAPTCHA_ENABLED=false
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// CaptchaConfig configures human verification.
type CaptchaConfig struct {
	Enabled    bool          // CAPTCHA_ENABLED
	TTL        time.Duration // CAPTCHA_TTL
	RatePerMin int           // CAPTCHA_RATE_PER_MIN per client IP, 0 = unlimited
}

// TelegramConfig configures operator alerts.
type TelegramConfig struct {
	BotToken    string // TELEGRAM_BOT_TOKEN
	AlertChatID int64  // TELEGRAM_ALERT_CHAT_ID
}

// AdminConfig configures the operator login.
type AdminConfig struct {
	Email        string        // ADMIN_EMAIL; empty disables admin login
	PasswordHash string        // ADMIN_PASSWORD_HASH (bcrypt)
	JWTSecret    string        // JWT_SECRET
	JWTTTL       time.Duration // JWT_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s; must cover TRANSLATE_DEBOUNCE + TRANSLATE_TIMEOUT
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogFile        string // optional rotating file sink
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver string // sqlite|mysql
	DBDSN    string // file path for sqlite, DSN for mysql

	// Site
	SiteDomain   string        // public host, e.g. "joingroups.pro"
	PageSize     int           // listings per page
	ViewDedupTTL time.Duration // one counted view per visitor per window

	// Rate limiting
	RateRPS     float64 // tokens per second (>= 0)
	RateBurst   int     // bucket size (>= 1)
	SubmitRPS   float64 // stricter bucket for POST /listings
	SubmitBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	Translate TranslateConfig
	Backfill  BackfillConfig
	Redis     RedisConfig
	Captcha   CaptchaConfig
	Telegram  TelegramConfig
	Admin     AdminConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for main: it panics with the joined errors.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the process environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

// lookupFunc has the shape of os.LookupEnv.
type lookupFunc func(string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	e := &env{lookup: lookup}
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		LogFile:        e.str("LOG_FILE", ""),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBDriver: strings.ToLower(e.str("DB_DRIVER", "sqlite")),
		DBDSN:    e.str("DB_DSN", "joingroups.db"),

		SiteDomain:   strings.ToLower(e.str("SITE_DOMAIN", "joingroups.pro")),
		PageSize:     e.int("PAGE_SIZE", 12),
		ViewDedupTTL: e.dur("VIEW_DEDUP_TTL", 24*time.Hour),

		RateRPS:     e.float("RATE_RPS", 5),
		RateBurst:   e.int("RATE_BURST", 10),
		SubmitRPS:   e.float("RATE_SUBMIT_RPS", 0.2),
		SubmitBurst: e.int("RATE_SUBMIT_BURST", 3),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Translate: TranslateConfig{
			URL:            e.str("TRANSLATE_URL", ""),
			Timeout:        e.dur("TRANSLATE_TIMEOUT", 10*time.Second),
			Debounce:       e.dur("TRANSLATE_DEBOUNCE", time.Second),
			LowerCaseCodes: e.bool("TRANSLATE_LOWERCASE_CODES", false),
		},
		Backfill: BackfillConfig{
			QueuePath:   e.str("QUEUE_PATH", "data/queue"),
			Interval:    e.dur("BACKFILL_INTERVAL", 4*time.Second),
			MaxAttempts: e.int("BACKFILL_MAX_ATTEMPTS", 40),
			MaxFailures: e.int("BACKFILL_MAX_FAILURES", 10),
			GCInterval:  e.dur("QUEUE_GC_INTERVAL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(e.str("REDIS_ADDR", "localhost:6379")),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
		},
		Captcha: CaptchaConfig{
			Enabled:    e.bool("CAPTCHA_ENABLED", true),
			TTL:        e.dur("CAPTCHA_TTL", 5*time.Minute),
			RatePerMin: e.int("CAPTCHA_RATE_PER_MIN", 20),
		},
		Telegram: TelegramConfig{
			BotToken:    e.str("TELEGRAM_BOT_TOKEN", ""),
			AlertChatID: e.int64("TELEGRAM_ALERT_CHAT_ID", 0),
		},
		Admin: AdminConfig{
			Email:        strings.TrimSpace(e.str("ADMIN_EMAIL", "")),
			PasswordHash: e.str("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:    e.str("JWT_SECRET", ""),
			JWTTTL:       e.dur("JWT_TTL", 12*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "joingroups-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
			Environment: strings.TrimSpace(e.str("OTEL_DEPLOYMENT_ENVIRONMENT", "")),
		},
	}
	cfg.normalize()

	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.DBDriver == "sqlite3" {
		c.DBDriver = "sqlite"
	}
}

// validate returns one error per violated rule.
func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn, error, fatal or panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"READ_TIMEOUT, READ_HEADER_TIMEOUT, WRITE_TIMEOUT and IDLE_TIMEOUT must be positive")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(c.DBDriver == "sqlite" || c.DBDriver == "mysql", "DB_DRIVER must be sqlite or mysql")
	check(strings.TrimSpace(c.DBDSN) != "", "DB_DSN must not be empty")
	check(strings.TrimSpace(c.SiteDomain) != "", "SITE_DOMAIN must not be empty")
	check(c.PageSize >= 1, "PAGE_SIZE must be >= 1")
	check(c.ViewDedupTTL > 0, "VIEW_DEDUP_TTL must be > 0")
	check(c.RateRPS >= 0 && c.SubmitRPS >= 0, "RATE_RPS and RATE_SUBMIT_RPS must be >= 0")
	check(c.RateBurst >= 1 && c.SubmitBurst >= 1, "RATE_BURST and RATE_SUBMIT_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.Translate.Timeout > 0 && c.Translate.Debounce > 0, "TRANSLATE_TIMEOUT and TRANSLATE_DEBOUNCE must be > 0")
	check(c.Backfill.Interval > 0, "BACKFILL_INTERVAL must be > 0")
	check(c.Backfill.MaxAttempts >= 1 && c.Backfill.MaxFailures >= 1, "BACKFILL_MAX_ATTEMPTS and BACKFILL_MAX_FAILURES must be >= 1")
	check(!c.Captcha.Enabled || c.Redis.Addr != "", "CAPTCHA_ENABLED requires REDIS_ADDR")
	check(c.Captcha.TTL > 0, "CAPTCHA_TTL must be > 0")
	check(c.Admin.Email == "" || (c.Admin.PasswordHash != "" && c.Admin.JWTSecret != ""),
		"ADMIN_EMAIL requires ADMIN_PASSWORD_HASH and JWT_SECRET")
	check(c.Admin.JWTTTL > 0, "JWT_TTL must be > 0")
	check((c.Telegram.BotToken == "") == (c.Telegram.AlertChatID == 0),
		"TELEGRAM_BOT_TOKEN and TELEGRAM_ALERT_CHAT_ID must be set together")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed variables and remembers the ones that did not parse.
type env struct {
	lookup lookupFunc
	errs   []error
}

func (e *env) raw(k string) (string, bool) {
	v, ok := e.lookup(k)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *env) fail(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: want %s", k, v, want))
}

func (e *env) str(k, def string) string {
	if v, ok := e.raw(k); ok {
		return v
	}
	return def
}

func (e *env) int(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "an integer")
		return def
	}
	return i
}

// int64 exists for Telegram supergroup ids (-100xxxxxxxxxx), wider than int
// on 32-bit builds.
func (e *env) int64(k string, def int64) int64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		e.fail(k, v, "an integer")
		return def
	}
	return i
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.fail(k, v, "a number")
		return def
	}
	return f
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "a boolean")
	return def
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "a duration like 1500ms or 2h")
		return def
	}
	return d
}

// splitCSV splits on commas and drops blank entries.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns "/" or a path with a leading slash and no
// trailing one.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
