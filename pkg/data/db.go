// Package data persists generated datasets and the analysis audit log in
// SQLite (default, local file) or Postgres.
package data

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const (
	// DataFileName is the default SQLite file in the app home dir.
	DataFileName = "data.db"

	dialectSQLite   = "sqlite3"
	dialectPostgres = "postgres"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	migrationsDir = "sql"
	timeLayout    = "2006-01-02T15:04:05.000000000Z07:00"
)

var (
	//go:embed sql/*.sql
	migrations embed.FS

	// goose keeps its dialect and FS in package globals
	migrateMu sync.Mutex

	errDBNotInitialized = errors.New("database not initialized")
)

// Store is a migrated database handle.
type Store struct {
	db      *sql.DB
	dialect string
}

// IsPostgres reports whether dsn points at a Postgres server rather than a
// SQLite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn and applies pending migrations. A postgres:// DSN
// selects Postgres, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("store dsn not specified")
	}

	s := &Store{dialect: dialectSQLite}
	driver, source := driverSQLite, dsn
	if IsPostgres(dsn) {
		s.dialect = dialectPostgres
		driver = driverPostgres
	} else if !strings.Contains(dsn, "?") {
		source = dsn + "?" + sqlitePragmas
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if s.dialect == dialectSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(ctx, db, s.dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.db = db
	slog.Debug("store opened", "dialect", s.dialect)
	return s, nil
}

func runMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Version returns the applied migration version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var v int64
	q := "SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied = " + s.boolLiteral(true)
	if err := s.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func (s *Store) check() error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) boolLiteral(v bool) string {
	if s.dialect == dialectPostgres {
		return strconv.FormatBool(v)
	}
	if v {
		return "1"
	}
	return "0"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", v, err)
	}
	return t, nil
}
