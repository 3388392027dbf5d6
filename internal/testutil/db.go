// Package testutil provides shared fixtures for rowgate tests.
package testutil

import (
	"context"
	_ "embed"
	"path/filepath"
	"testing"

	"github.com/roach88/rowgate/store"
)

//go:embed fixture.sql
var fixtureSQL string

// FixtureDB creates a SQLite database file in a temp dir and loads the
// fixture schema: authors 1-3, books 1-4 (three by author 1, one by
// author 2), an empty note table keyed by text and a log table without a
// primary key. It returns the file path.
func FixtureDB(t testing.TB) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	s, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open fixture store: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("close fixture store: %v", err)
		}
	}()

	if err := s.Apply(context.Background(), fixtureSQL); err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return path
}

// OpenStore opens a store on a fresh FixtureDB. The store is closed when
// the test finishes.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.OpenSQLite(FixtureDB(t))
	if err != nil {
		t.Fatalf("open fixture store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close fixture store: %v", err)
		}
	})
	return s
}
