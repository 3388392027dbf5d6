//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgres_ReflectAndInsert(t *testing.T) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("rowgate"),
		postgres.WithUsername("rowgate"),
		postgres.WithPassword("rowgate"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open("pgx", dsn)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Apply(ctx, `CREATE TABLE author (id SERIAL PRIMARY KEY, name TEXT NOT NULL)`))

	pk, err := s.Primary(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, "id", pk)

	id, err := s.Insert(ctx, "author", pk, map[string]any{"name": "Karel"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	rows, err := s.RawQuery(ctx, "SELECT name FROM author WHERE id = $1", id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Karel", rows[0]["name"])
}
