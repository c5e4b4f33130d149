package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// TimeLayout is how timestamps are stored: fixed-width UTC text in both
// dialects, so lexical order is chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB is a *sql.DB that knows its dialect.
type DB struct {
	*sql.DB
	Driver string
}

// NormalizeDriver maps accepted driver aliases to Postgres or SQLite. An
// empty name means Postgres.
func NormalizeDriver(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "postgresql", Postgres:
		return Postgres, nil
	case "sqlite3", SQLite:
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", n)
	}
}

// Connect opens and pings the database. For SQLite the pool is pinned to one
// connection so ":memory:" databases are shared and writes serialize.
func Connect(driver, connString string) (*DB, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, connString)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == SQLite {
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma fk: %w", err)
		}
		if connString != ":memory:" {
			if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("pragma wal: %w", err)
			}
		}
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, Driver: driver}, nil
}

// Rebind rewrites '?' placeholders to '$1..$n' for Postgres. Queries are
// written once with '?'. Quoted literals are left alone.
func (d *DB) Rebind(query string) string {
	if d.Driver != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NullTime renders t for storage, or NULL for the zero time.
func NullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(t), Valid: true}
}

// ParseTime is the inverse of FormatTime. NULL or empty yields the zero time.
func ParseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s.String, err)
	}
	return t.UTC(), nil
}

// NullID stores 0 as NULL for optional foreign keys.
func NullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// InTx runs fn in a transaction and commits if fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
