// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file opens the store (pure-Go SQLite or MySQL) and
// migrates the schema.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/joingroups-backend/internal/domain"
)

// Supported values for the DB_DRIVER setting.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// slowQuery is the threshold above which a statement is logged at warn.
const slowQuery = 200 * time.Millisecond

// sqlitePragmas are applied by the driver on every new connection, not just
// the first one the pool hands out.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

type pool struct {
	maxOpen, maxIdle int
}

var pools = map[string]pool{
	// one writer at a time anyway; more readers than that just queue on the lock
	DriverSQLite: {maxOpen: 10, maxIdle: 10},
	DriverMySQL:  {maxOpen: 25, maxIdle: 10},
}

// Open connects to the configured driver, sizes the pool, routes slow
// queries to the zerolog logger and installs the OpenTelemetry plugin so
// every query becomes a child span of the request.
func Open(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(driver)
	if driver == "" {
		driver = DriverSQLite
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(withPragmas(dsn))
	case DriverMySQL:
		// user:pass@tcp(host:3306)/joingroups?charset=utf8mb4&parseTime=True&loc=UTC
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	p := pools[driver]
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}
	return db, nil
}

// ensureDir fails early when the database file's directory is missing;
// SQLite would otherwise report "out of memory (14)" on some platforms.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("sqlite directory: %w", err)
		}
	}
	return nil
}

// withPragmas appends the _pragma DSN parameters understood by the pure-Go
// driver.
func withPragmas(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// zerologWriter feeds gorm's logger into the global zerolog logger.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(zerologWriter{}, gormlogger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// isUniqueViolation recognizes duplicate-key failures from either driver.
// The pure-Go SQLite driver reports them as plain text rather than
// gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unique constraint failed",
		"constraint failed: unique",
		"duplicate entry",
		"duplicate key",
	} {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}

// AutoMigrate creates the schema, seeds the category collection from the
// current catalog, and rewrites legacy category spellings on stored listings.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Listing{},
		&domain.CategoryTag{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}
	if err := SeedCategoryTags(db); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	if _, err := MigrateListingCategories(db); err != nil {
		return fmt.Errorf("migrate categories: %w", err)
	}
	return nil
}
