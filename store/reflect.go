package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrTableNotFound is returned when reflection finds no columns for a table.
var ErrTableNotFound = errors.New("table not found")

// Column describes one reflected table column.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	// PrimaryIndex is the 1-based position in the primary key, 0 if the
	// column is not part of it.
	PrimaryIndex int
}

// TableInfo is the reflected shape of a table.
type TableInfo struct {
	Name    string
	Columns []Column
	// Primary lists primary key columns in key order.
	Primary []string
}

// HasColumn reports whether the table has a column with the given name.
func (t *TableInfo) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Table returns reflected metadata for a table, using the cache when possible.
func (s *Store) Table(ctx context.Context, name string) (*TableInfo, error) {
	if info, ok := s.meta.Get(name); ok {
		return info, nil
	}

	var (
		cols []Column
		err  error
	)
	switch s.dialect.Driver {
	case Postgres.Driver:
		cols, err = s.postgresColumns(ctx, name)
	default:
		cols, err = s.sqliteColumns(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reflect %s: %w", name, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("reflect %s: %w", name, ErrTableNotFound)
	}

	info := &TableInfo{Name: name, Columns: cols}
	keyed := make([]Column, 0, 1)
	for _, c := range cols {
		if c.PrimaryIndex > 0 {
			keyed = append(keyed, c)
		}
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].PrimaryIndex < keyed[j].PrimaryIndex })
	for _, c := range keyed {
		info.Primary = append(info.Primary, c.Name)
	}

	s.meta.Add(name, info)
	return info, nil
}

// Primary returns the single primary key column of a table.
// Tables without a primary key yield "". Composite keys are rejected.
func (s *Store) Primary(ctx context.Context, table string) (string, error) {
	info, err := s.Table(ctx, table)
	if err != nil {
		return "", err
	}
	switch len(info.Primary) {
	case 0:
		return "", nil
	case 1:
		return info.Primary[0], nil
	default:
		return "", fmt.Errorf("table %s: composite primary key %v is not supported", table, info.Primary)
	}
}

// Forget drops cached metadata for a table.
func (s *Store) Forget(table string) {
	s.meta.Remove(table)
}

func (s *Store) sqliteColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.querier().QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c       Column
			notNull int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &c.PrimaryIndex); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		c.NotNull = notNull != 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter table info: %w", err)
	}
	return cols, nil
}

func (s *Store) postgresColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.querier().QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable = 'NO', COALESCE(k.ordinal_position, 0)
		FROM information_schema.columns c
		LEFT JOIN information_schema.table_constraints tc
			ON tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND tc.constraint_type = 'PRIMARY KEY'
		LEFT JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name
			AND k.table_schema = c.table_schema
			AND k.table_name = c.table_name
			AND k.column_name = c.column_name
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("information schema: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.NotNull, &c.PrimaryIndex); err != nil {
			return nil, fmt.Errorf("scan information schema: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter information schema: %w", err)
	}
	return cols, nil
}
