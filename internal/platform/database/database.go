// Package database opens the SQL backends and hides their dialect
// differences from the stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"nfcattend/internal/platform/config"
)

// Dialect names a supported SQL flavour.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Querier is the subset of *sql.DB and *sql.Tx the stores need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// DB is a pool tagged with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// InitError reports a backend that could not be brought up at startup.
type InitError struct {
	Driver string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("database init (%s): %v", e.Driver, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Open connects to the configured SQL backend and verifies it with a ping.
// Every failure is returned as *InitError.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	var (
		dialect    Dialect
		driverName string
		dsn        = cfg.URL
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		dialect, driverName = DialectPostgres, "postgres"
	case config.DriverSQLite:
		dialect, driverName = DialectSQLite, "sqlite"
		dsn = sqliteDSN(cfg.URL)
	default:
		return nil, &InitError{Driver: cfg.Driver, Err: fmt.Errorf("unsupported SQL driver")}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &InitError{Driver: cfg.Driver, Err: err}
	}

	if dialect == DialectSQLite {
		// SQLite allows one writer; a single connection keeps transactions serial.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &InitError{Driver: cfg.Driver, Err: fmt.Errorf("ping: %w", err)}
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// sqliteDSN enables WAL, foreign keys and a busy timeout on every
// connection the pool opens.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Rebind rewrites $N placeholders into the dialect's positional form.
// Queries are written once in Postgres style.
func (d Dialect) Rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' || i+1 >= len(query) || query[i+1] < '0' || query[i+1] > '9' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		n, _ := strconv.Atoi(query[i+1 : j])
		b.WriteString("?" + strconv.Itoa(n))
		i = j - 1
	}
	return b.String()
}

// Ping reports whether the pool can reach the backend within a second.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
