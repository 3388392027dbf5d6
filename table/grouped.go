package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// GroupedSelection is the set of rows of a related table whose column
// references one entity of a referencing selection.
//
// All grouped selections created from entities of the same referencing
// selection share one load: the first fetch reads the related rows of every
// referencing entity with a single IN query and groups them in memory.
type GroupedSelection struct {
	ref      *rowSet
	table    string
	column   string
	active   any
	rowClass string

	q   query
	err error

	set *rowSet
}

func newGroupedSelection(ref *rowSet, table, column string, active any) *GroupedSelection {
	return &GroupedSelection{
		ref:    ref,
		table:  table,
		column: column,
		active: active,
	}
}

// Manager returns the manager of the referencing selection.
func (g *GroupedSelection) Manager() *Manager {
	return g.ref.manager
}

// Table returns the related table.
func (g *GroupedSelection) Table() string {
	return g.table
}

// Column returns the referencing column of the related table.
func (g *GroupedSelection) Column() string {
	return g.column
}

// SetRowClass names the class used for the related rows.
func (g *GroupedSelection) SetRowClass(name string) *GroupedSelection {
	g.rowClass = name
	g.set = nil
	return g
}

// RowClass returns the explicit row class of the grouped selection.
func (g *GroupedSelection) RowClass() string {
	return g.rowClass
}

func (g *GroupedSelection) rowSet() *rowSet {
	if g.set == nil {
		g.set = &rowSet{
			manager:  g.ref.manager,
			table:    g.table,
			rowClass: g.rowClass,
			byRef:    make(map[any][]*Entity),
		}
	}
	return g.set
}

// Where adds a condition applied to every group.
func (g *GroupedSelection) Where(cond any, args ...any) *GroupedSelection {
	c, err := condition(cond, args)
	if err != nil {
		g.err = errors.Join(g.err, err)
		return g
	}
	if c != nil {
		g.q.where = append(g.q.where, c)
	}
	g.set = nil
	return g
}

// Select sets the fetched columns. The referencing column is always fetched.
func (g *GroupedSelection) Select(columns ...string) *GroupedSelection {
	g.q.columns = append(g.q.columns, columns...)
	g.set = nil
	return g
}

// Order adds ORDER BY terms applied within each group.
func (g *GroupedSelection) Order(terms ...string) *GroupedSelection {
	g.q.order = append(g.q.order, terms...)
	g.set = nil
	return g
}

// Limit caps the number of rows per group.
func (g *GroupedSelection) Limit(limit uint64) *GroupedSelection {
	g.q.limit, g.q.hasLimit = limit, true
	return g
}

// Offset skips the first rows of each group.
func (g *GroupedSelection) Offset(offset uint64) *GroupedSelection {
	g.q.offset, g.q.hasOffset = offset, true
	return g
}

func (g *GroupedSelection) signature() (string, error) {
	sig, err := g.q.signature()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s;class=%s;%s", g.table, g.column, g.rowClass, sig), nil
}

// load reads the related rows of every row in the referencing set.
func (g *GroupedSelection) load(ctx context.Context) (*rowSet, error) {
	if g.err != nil {
		return nil, g.err
	}
	sig, err := g.signature()
	if err != nil {
		return nil, err
	}
	if set, ok := g.ref.group(sig); ok {
		g.set = set
		return set, nil
	}

	if g.ref.primary == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidState,
			Message: "referencing table has no primary key",
			Table:   g.ref.table,
		}
	}

	m := g.ref.manager
	primary, err := m.store.Primary(ctx, g.table)
	if err != nil {
		return nil, err
	}

	g.set = nil
	set := g.rowSet()
	set.primary = primary

	keys := referencingKeys(g.ref)
	if len(keys) > 0 {
		cols := append([]string(nil), g.q.selectColumns()...)
		if len(g.q.columns) > 0 {
			cols = append(cols, g.column)
		}
		conds := append([]squirrel.Sqlizer{squirrel.Eq{g.column: keys}}, g.q.where...)

		// paging applies per group, in memory
		paging := g.q.clone()
		paging.hasLimit, paging.hasOffset = false, false

		sb := paging.applySelect(m.store.Builder().Select(cols...).From(g.table), conds, primary)
		rows, err := m.store.Select(ctx, sb)
		if err != nil {
			return nil, fmt.Errorf("select related %s: %w", g.table, err)
		}

		set.rows = make([]*Entity, 0, len(rows))
		for _, row := range rows {
			e, err := m.initEntity(row, set)
			if err != nil {
				return nil, err
			}
			set.rows = append(set.rows, e)
			key := groupKey(row[g.column])
			set.byRef[key] = append(set.byRef[key], e)
		}
	}

	g.ref.setGroup(sig, set)
	return set, nil
}

// FetchAll returns the related rows of the active entity.
func (g *GroupedSelection) FetchAll(ctx context.Context) ([]*Entity, error) {
	set, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	rows := set.byRef[groupKey(g.active)]

	if g.q.hasOffset {
		if g.q.offset >= uint64(len(rows)) {
			return nil, nil
		}
		rows = rows[g.q.offset:]
	}
	if g.q.hasLimit && g.q.limit < uint64(len(rows)) {
		rows = rows[:g.q.limit]
	}
	return rows, nil
}

// Count returns the number of related rows of the active entity.
func (g *GroupedSelection) Count(ctx context.Context) (int64, error) {
	rows, err := g.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// referencingKeys returns the distinct non-nil primary values of a set.
func referencingKeys(rs *rowSet) []any {
	seen := make(map[any]bool, len(rs.rows))
	keys := make([]any, 0, len(rs.rows))
	for _, e := range rs.rows {
		v := e.data[rs.primary]
		if v == nil {
			continue
		}
		k := groupKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, v)
	}
	return keys
}

// groupKey makes referencing values comparable across driver types.
func groupKey(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint32:
		return int64(val)
	case []byte:
		return string(val)
	default:
		return v
	}
}
