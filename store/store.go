package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultCacheSize is the number of reflected tables kept in memory.
const DefaultCacheSize = 128

// ErrNoTransaction is returned by Commit and Rollback on a store that is not
// bound to a transaction.
var ErrNoTransaction = errors.New("no active transaction")

// Querier is the part of *sql.DB and *sql.Tx that statements run through.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides database access for rowgate.
// A Store returned by Begin is bound to a transaction and shares the
// connection pool and metadata cache of its parent.
type Store struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect Dialect
	meta    *lru.Cache[string, *TableInfo]
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	cacheSize int
	logger    *slog.Logger
}

// WithLogger sets the logger used for statement tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCacheSize sets how many reflected tables are cached.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// Open connects to a database using the named driver.
// For sqlite3 the DSN is a file path and the SQLite pragmas are applied.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	o := options{cacheSize: DefaultCacheSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect.Driver == SQLite.Driver {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	meta, err := lru.New[string, *TableInfo](o.cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}

	return &Store{db: db, dialect: dialect, meta: meta, logger: o.logger}, nil
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	return Open(SQLite.Driver, path, opts...)
}

// Close closes the database connection.
// Closing a transaction-bound store is a no-op; use Commit or Rollback.
func (s *Store) Close() error {
	if s.db == nil || s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect of the store's driver.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Builder returns a squirrel statement builder using the store's placeholders.
func (s *Store) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(s.dialect.Placeholder)
}

// InTx reports whether the store is bound to a transaction.
func (s *Store) InTx() bool {
	return s.tx != nil
}

func (s *Store) querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Begin starts a transaction and returns a store bound to it.
func (s *Store) Begin(ctx context.Context) (*Store, error) {
	if s.tx != nil {
		return nil, fmt.Errorf("begin: transaction already active")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Store{db: s.db, tx: tx, dialect: s.dialect, meta: s.meta, logger: s.logger}, nil
}

// Commit commits the store's transaction.
func (s *Store) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("commit: %w", ErrNoTransaction)
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the store's transaction.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return fmt.Errorf("rollback: %w", ErrNoTransaction)
	}
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Select runs a built query and scans every row into a column→value map.
func (s *Store) Select(ctx context.Context, q squirrel.Sqlizer) ([]map[string]any, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.RawQuery(ctx, query, args...)
}

// RawQuery runs a literal SQL query and scans every row into a map.
func (s *Store) RawQuery(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	s.trace(query, args)

	var rows []map[string]any
	if err := sqlscan.Select(ctx, s.querier(), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	for _, row := range rows {
		normalize(row)
	}
	return rows, nil
}

// Exec runs a built statement.
func (s *Store) Exec(ctx context.Context, q squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return s.RawExec(ctx, query, args...)
}

// RawExec runs a literal SQL statement.
func (s *Store) RawExec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.trace(query, args)

	result, err := s.querier().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return result, nil
}

// Count runs a built query returning a single integer.
func (s *Store) Count(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	s.trace(query, args)

	var n int64
	if err := s.querier().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Insert inserts one row and returns its primary key value.
//
// When values already carry the primary key that value is returned. Otherwise
// the key is read back with RETURNING or LastInsertId depending on the dialect.
func (s *Store) Insert(ctx context.Context, table, primary string, values map[string]any) (any, error) {
	ib := s.Builder().Insert(table).SetMap(values)

	if pk, ok := values[primary]; ok && pk != nil {
		if _, err := s.Exec(ctx, ib); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		return pk, nil
	}

	if s.dialect.Returning && primary != "" {
		query, args, err := ib.Suffix("RETURNING " + primary).ToSql()
		if err != nil {
			return nil, fmt.Errorf("insert %s: build statement: %w", table, err)
		}
		s.trace(query, args)

		var pk any
		if err := s.querier().QueryRowContext(ctx, query, args...).Scan(&pk); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		return normalizeValue(pk), nil
	}

	result, err := s.Exec(ctx, ib)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: last insert id: %w", table, err)
	}
	return id, nil
}

// Apply executes a SQL script (typically DDL) and drops cached metadata.
func (s *Store) Apply(ctx context.Context, script string) error {
	if _, err := s.RawExec(ctx, script); err != nil {
		return fmt.Errorf("apply script: %w", err)
	}
	s.meta.Purge()
	return nil
}

func (s *Store) trace(query string, args []any) {
	s.logger.Debug("sql", "query", query, "args", args, "tx", s.tx != nil)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func normalize(row map[string]any) {
	for k, v := range row {
		row[k] = normalizeValue(v)
	}
}

// normalizeValue maps driver values onto the small set rowgate hands out:
// text as string and every integer width as int64.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	default:
		return v
	}
}
