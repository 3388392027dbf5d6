package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rowgate/internal/testutil"
	"github.com/roach88/rowgate/store"
)

// fixture opens the shared test database and returns a manager for table.
func fixture(t *testing.T, table string, opts ...Option) (*Manager, *store.Store) {
	t.Helper()

	st := fixtureStore(t)
	return managerFor(t, st, table, nil, opts...), st
}

func fixtureStore(t *testing.T) *store.Store {
	t.Helper()
	return testutil.OpenStore(t)
}

func managerFor(t *testing.T, st *store.Store, table string, settings *Settings, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{WithClasses(NewRegistry())}, opts...)
	m, err := NewManager(context.Background(), st, settings, table, opts...)
	require.NoError(t, err)
	return m
}

func primaries(t *testing.T, rows []*Entity) []int64 {
	t.Helper()

	out := make([]int64, 0, len(rows))
	for _, e := range rows {
		pk, ok := e.Primary().(int64)
		require.True(t, ok, "primary %v is %T", e.Primary(), e.Primary())
		out = append(out, pk)
	}
	return out
}
