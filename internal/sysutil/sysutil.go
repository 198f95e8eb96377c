// Package sysutil holds process-level helpers: global log level and the
// zerolog sink (console, JSON, optional rotating file).
package sysutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetLogLevel sets the global zerolog level. Unknown names, blanks and
// "disabled" fall back to info; "warning" is accepted for warn.
func SetLogLevel(lvl string) {
	name := strings.ToLower(strings.TrimSpace(lvl))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" || level == zerolog.Disabled || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// LogOptions describes the global logger.
type LogOptions struct {
	Level   string
	Pretty  bool   // human console output instead of JSON on stdout
	File    string // optional rotating JSON file next to stdout
	Service string

	// Rotation; zero values take the defaults below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 20
	defaultMaxBackups = 5
	defaultMaxAgeDays = 15
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogger installs the global zerolog logger. The returned closer flushes
// and closes the file sink; it is a no-op without one.
func SetupLogger(opts LogOptions) (io.Closer, error) {
	return setupLogger(opts, os.Stdout)
}

func setupLogger(opts LogOptions, stdout io.Writer) (io.Closer, error) {
	SetLogLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = stdout
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.Kitchen}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if path := strings.TrimSpace(opts.File); path != "" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: positiveOr(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     positiveOr(opts.MaxAgeDays, defaultMaxAgeDays),
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, lj)
		closer = lj
	}

	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", FirstNonEmpty(opts.Service, "joingroups-backend")).
		Logger()
	return closer, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// FirstNonEmpty returns the first non-blank string from a variadic list.
// If all values are blank, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
