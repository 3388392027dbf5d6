package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE author (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE tag (
	slug TEXT PRIMARY KEY,
	label TEXT
);
CREATE TABLE author_tag (
	author_id INTEGER NOT NULL,
	tag_slug TEXT NOT NULL,
	PRIMARY KEY (author_id, tag_slug)
);
CREATE TABLE audit (
	message TEXT
);
`

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Apply(context.Background(), testSchema))
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
	}{
		{"sqlite3", SQLite},
		{"sqlite", SQLite},
		{"pgx", Postgres},
		{"postgres", Postgres},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Driver, got.Driver)
			assert.Equal(t, tt.want.Returning, got.Returning)
		})
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	// NORMAL = 1
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestTable_ReflectsColumns(t *testing.T) {
	s := openTestStore(t)

	info, err := s.Table(context.Background(), "author")
	require.NoError(t, err)

	assert.Equal(t, "author", info.Name)
	assert.Equal(t, []string{"id"}, info.Primary)
	require.Len(t, info.Columns, 2)
	assert.Equal(t, "name", info.Columns[1].Name)
	assert.True(t, info.Columns[1].NotNull)
	assert.True(t, info.HasColumn("name"))
	assert.False(t, info.HasColumn("email"))
}

func TestTable_Missing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Table(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestPrimary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pk, err := s.Primary(ctx, "tag")
	require.NoError(t, err)
	assert.Equal(t, "slug", pk)

	pk, err = s.Primary(ctx, "audit")
	require.NoError(t, err)
	assert.Empty(t, pk)

	_, err = s.Primary(ctx, "author_tag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite primary key")
}

func TestTable_CachePurgedByApply(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	info, err := s.Table(ctx, "audit")
	require.NoError(t, err)
	assert.Len(t, info.Columns, 1)

	require.NoError(t, s.Apply(ctx, `ALTER TABLE audit ADD COLUMN level TEXT`))

	info, err = s.Table(ctx, "audit")
	require.NoError(t, err)
	assert.Len(t, info.Columns, 2)
}

func TestInsert_LastInsertID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "author", "id", map[string]any{"name": "Karel"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = s.Insert(ctx, "author", "id", map[string]any{"name": "Jaroslav"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestInsert_ExplicitPrimary(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Insert(context.Background(), "tag", "slug", map[string]any{"slug": "drama", "label": "Drama"})
	require.NoError(t, err)
	assert.Equal(t, "drama", id)
}

func TestSelect_NormalizesValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "author", "id", map[string]any{"name": "Karel"})
	require.NoError(t, err)

	rows, err := s.Select(ctx, s.Builder().Select("*").From("author").Where(squirrel.Eq{"id": 1}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Karel"}, rows[0])

	n, err := s.Count(ctx, s.Builder().Select("COUNT(*)").From("author"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTransaction_Commit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, tx.InTx())

	_, err = tx.Insert(ctx, "author", "id", map[string]any{"name": "Karel"})
	require.NoError(t, err)

	// nested transactions are not supported
	_, err = tx.Begin(ctx)
	require.Error(t, err)

	require.NoError(t, tx.Commit())

	rows, err := s.RawQuery(ctx, "SELECT name FROM author")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTransaction_Rollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Insert(ctx, "author", "id", map[string]any{"name": "Karel"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rows, err := s.RawQuery(ctx, "SELECT name FROM author")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCommit_WithoutTransaction(t *testing.T) {
	s := openTestStore(t)

	assert.ErrorIs(t, s.Commit(), ErrNoTransaction)
	assert.ErrorIs(t, s.Rollback(), ErrNoTransaction)
}
