// Package sqlstore persists climate facts, stations, cluster results and
// département prices in SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/immo-climat/internal/observability"
)

// Supported DB_DRIVER values. They match the database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	sinkName     = "sql"
	pingAttempts = 5
	pingDelay    = 200 * time.Millisecond
)

// Store writes pipeline tables with idempotent upserts.
type Store struct {
	db      *sql.DB
	driver  string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Open connects, waits for the database to answer and creates the schema.
func Open(ctx context.Context, driver, dsn string, metrics *observability.Metrics, logger *slog.Logger) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("open database: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(pingAttempts),
		retry.Delay(pingDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warn("database not reachable, retrying", "driver", driver, "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver, metrics: metrics, logger: logger}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			logger.Warn("could not enable WAL mode", "error", err)
		}
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready", "driver", driver)
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// execBatch runs one prepared statement per row inside a transaction.
func (s *Store) execBatch(ctx context.Context, table, query string, n int, args func(i int) []any) error {
	return s.inTx(ctx, table, func(tx *sql.Tx) error {
		return s.execRows(ctx, tx, table, query, n, args)
	}, map[string]int{table: n})
}

// inTx runs fn in one transaction and records loaded row counts per table
// after the commit.
func (s *Store) inTx(ctx context.Context, name string, fn func(tx *sql.Tx) error, rows map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("load %s: begin: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load %s: commit: %w", name, err)
	}
	for table, n := range rows {
		s.metrics.SinkRows.WithLabelValues(sinkName, table).Add(float64(n))
		s.logger.Info("sql table loaded", "table", table, "rows", n)
	}
	return nil
}

func (s *Store) execRows(ctx context.Context, tx *sql.Tx, table, query string, n int, args func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(query))
	if err != nil {
		return fmt.Errorf("load %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	for i := range n {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("load %s: row %d: %w", table, i, err)
		}
	}
	return nil
}
