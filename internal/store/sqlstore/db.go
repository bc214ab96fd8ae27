// Package sqlstore persists cache records in SQL tables, one table per
// record kind, each row holding the JSON-encoded record and its expiry.
// SQLite (modernc, pure Go) and Postgres (pgx) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Dialect captures the few statements that differ between engines.
type Dialect struct {
	Name        string
	Driver      string
	PayloadType string
	bind        func(n int) string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		PayloadType: "TEXT",
		bind:        func(int) string { return "?" },
	}
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		PayloadType: "JSONB",
		bind:        func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unknown dialect %q", name)
	}
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether name can be used as a table name.
func ValidIdentifier(name string) bool {
	return identRE.MatchString(name)
}

// DB is a shared connection plus the set of tables created through it.
type DB struct {
	db      *sql.DB
	dialect Dialect

	mu     sync.Mutex
	tables []string
}

var sqlOpen = sql.Open

// Open connects using dialect and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: %s dsn required", dialect.Name)
	}
	db, err := sqlOpen(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply %q: %w", pragma, err)
			}
		}
	}
	return &DB{db: db, dialect: dialect}, nil
}

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB { return d.db }

func (d *DB) Dialect() Dialect { return d.dialect }

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) register(table string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tables {
		if t == table {
			return
		}
	}
	d.tables = append(d.tables, table)
}

// PurgeExpired deletes every row whose expiry is before now and returns the
// number of rows removed across all tables.
func (d *DB) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	d.mu.Lock()
	tables := append([]string(nil), d.tables...)
	d.mu.Unlock()

	var total int64
	for _, t := range tables {
		q := fmt.Sprintf("DELETE FROM %s WHERE expires_at < %s", t, d.dialect.bind(1))
		res, err := d.db.ExecContext(ctx, q, now.Unix())
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", t, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// RunJanitor purges expired rows every interval until ctx is done.
func (d *DB) RunJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := d.PurgeExpired(ctx, now)
			if err != nil {
				logger.Warn("expired record purge failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired records", "rows", n)
			}
		}
	}
}
