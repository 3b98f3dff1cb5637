// Package store provides data persistence over SQLite and Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Flavor identifies the SQL dialect behind a DB handle.
type Flavor int

const (
	// FlavorSQLite is a file-backed SQLite database.
	FlavorSQLite Flavor = iota
	// FlavorPostgres is a Postgres database reached via a postgres:// URL.
	FlavorPostgres
)

// DB wraps a database handle together with its dialect. Queries are
// written with ? placeholders and rebound for Postgres.
type DB struct {
	db     *sql.DB
	flavor Flavor
}

// Opener opens database handles from storage descriptors. Tool
// operations receive an Opener so tests can substitute fakes.
type Opener interface {
	Open(dsn string) (*DB, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(dsn string) (*DB, error)

// Open calls f(dsn).
func (f OpenerFunc) Open(dsn string) (*DB, error) { return f(dsn) }

// IsPostgresDSN reports whether the descriptor is a Postgres URL rather
// than a SQLite file path.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the database named by the descriptor: a postgres://
// URL or a SQLite file path.
func Open(dsn string) (*DB, error) {
	if IsPostgresDSN(dsn) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &DB{db: db, flavor: FlavorPostgres}, nil
	}

	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency; foreign keys on so invalid
	// references surface as constraint errors on SQLite too.
	opts := "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn+opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{db: db, flavor: FlavorSQLite}, nil
}

// Flavor returns the SQL dialect of the underlying database.
func (d *DB) Flavor() Flavor { return d.flavor }

// Ping verifies database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Exec runs a statement and returns the number of affected rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := d.db.ExecContext(ctx, d.bind(query), args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// Query runs a query and returns all rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, d.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // scanRows surfaces iteration errors.

	return scanRows(rows)
}

// QueryOne runs a query expected to return at most one row. It returns
// nil without error when no row matches.
func (d *DB) QueryOne(ctx context.Context, query string, args ...any) (*Row, error) {
	all, err := d.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

// InsertID runs an INSERT and returns the generated id. Postgres needs
// a RETURNING clause, SQLite reports it through LastInsertId.
func (d *DB) InsertID(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	if d.flavor == FlavorPostgres {
		var id int64
		q := d.bind(query) + " RETURNING " + idColumn
		if err := d.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

func (d *DB) bind(query string) string {
	if d.flavor != FlavorPostgres {
		return query
	}
	return rebind(query)
}

// rebind rewrites ? placeholders as $1..$n, skipping quoted literals.
func rebind(query string) string {
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

// Row is a single result row keyed by column name.
type Row struct {
	columns []string
	values  map[string]any
}

// Columns returns the column names in query order.
func (r *Row) Columns() []string { return r.columns }

// Get returns the value of a column.
func (r *Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Int returns a column as int64. It handles the integer and float
// representations the drivers produce.
func (r *Row) Int(column string) (int64, bool) {
	switch v := r.values[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// String returns a column rendered as a string. Nil columns report false.
func (r *Row) String(column string) (string, bool) {
	v, ok := r.values[column]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// Map returns the row as a plain map for JSON payloads.
func (r *Row) Map() map[string]any { return r.values }

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		values := make(map[string]any, len(cols))
		for i, col := range cols {
			values[col] = normalizeValue(raw[i])
		}
		out = append(out, Row{columns: cols, values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}

// normalizeValue flattens driver-specific scan types so rows marshal
// cleanly to JSON.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}
