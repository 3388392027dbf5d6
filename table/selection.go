package table

import (
	"context"
	"errors"
	"fmt"
)

// rowSet is the result of one executed selection. Entities keep a pointer to
// the set they came from so relations can be loaded for the whole set at once.
type rowSet struct {
	manager  *Manager
	table    string
	primary  string
	rowClass string
	rows     []*Entity

	// groups caches grouped selections loaded from this set, by signature.
	groups map[string]*rowSet

	// byRef groups the rows of a grouped set by their referencing value.
	byRef map[any][]*Entity
}

func (rs *rowSet) group(sig string) (*rowSet, bool) {
	g, ok := rs.groups[sig]
	return g, ok
}

func (rs *rowSet) setGroup(sig string, g *rowSet) {
	if rs.groups == nil {
		rs.groups = make(map[string]*rowSet)
	}
	rs.groups[sig] = g
}

// RowSource is anything entities are materialized from.
// It is implemented by *Selection and *GroupedSelection.
type RowSource interface {
	Table() string
	RowClass() string
	rowSet() *rowSet
}

// Selection is a filterable, lazily fetched set of rows from one table.
//
// Refinements (Where, Order, Limit...) modify the selection in place and
// return it for chaining. Refining an already fetched selection discards the
// fetched rows.
type Selection struct {
	manager  *Manager
	table    string
	primary  string
	resolved bool
	rowClass string

	q   query
	err error

	set    *rowSet
	loaded bool
	cursor int
}

func newSelection(m *Manager, table, primary string, resolved bool) *Selection {
	return &Selection{
		manager:  m,
		table:    table,
		primary:  primary,
		resolved: resolved,
	}
}

// Manager returns the manager the selection belongs to.
func (s *Selection) Manager() *Manager {
	return s.manager
}

// Table returns the selected table.
func (s *Selection) Table() string {
	return s.table
}

// SetRowClass names the class used for rows of this selection.
func (s *Selection) SetRowClass(name string) *Selection {
	s.rowClass = name
	s.reset()
	return s
}

// RowClass returns the explicit row class of the selection, falling back to
// the manager's row class.
func (s *Selection) RowClass() string {
	if s.rowClass != "" {
		return s.rowClass
	}
	return s.manager.RowClass()
}

func (s *Selection) rowSet() *rowSet {
	if s.set == nil {
		s.set = &rowSet{
			manager:  s.manager,
			table:    s.table,
			primary:  s.primary,
			rowClass: s.RowClass(),
		}
	}
	s.set.primary = s.primary
	return s.set
}

func (s *Selection) reset() {
	s.set = nil
	s.loaded = false
	s.cursor = 0
}

// Where adds a condition. See condition for the accepted forms.
// Invalid conditions surface as an error when the selection is executed.
func (s *Selection) Where(cond any, args ...any) *Selection {
	c, err := condition(cond, args)
	if err != nil {
		s.err = errors.Join(s.err, err)
		return s
	}
	if c != nil {
		s.q.where = append(s.q.where, c)
	}
	s.reset()
	return s
}

// WherePrimary restricts the selection to the row with primary value v.
func (s *Selection) WherePrimary(v any) *Selection {
	s.q.primaries = append(s.q.primaries, v)
	s.reset()
	return s
}

// Select sets the fetched columns. The default is every column.
func (s *Selection) Select(columns ...string) *Selection {
	s.q.columns = append(s.q.columns, columns...)
	s.reset()
	return s
}

// Order adds ORDER BY terms, e.g. "year DESC".
func (s *Selection) Order(terms ...string) *Selection {
	s.q.order = append(s.q.order, terms...)
	s.reset()
	return s
}

// Limit caps the number of fetched rows.
func (s *Selection) Limit(limit uint64) *Selection {
	s.q.limit, s.q.hasLimit = limit, true
	s.reset()
	return s
}

// Offset skips the first rows.
func (s *Selection) Offset(offset uint64) *Selection {
	s.q.offset, s.q.hasOffset = offset, true
	s.reset()
	return s
}

// Selection returns a fresh selection of another table sharing the manager.
func (s *Selection) Selection(table string) *Selection {
	return s.manager.SpecificTable(table)
}

func (s *Selection) resolve(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	if s.resolved {
		return nil
	}
	pk, err := s.manager.store.Primary(ctx, s.table)
	if err != nil {
		return err
	}
	s.primary, s.resolved = pk, true
	return nil
}

// ToSQL renders the SELECT statement of the selection.
func (s *Selection) ToSQL(ctx context.Context) (string, []any, error) {
	if err := s.resolve(ctx); err != nil {
		return "", nil, err
	}
	conds, err := s.q.conditions(s.table, s.primary)
	if err != nil {
		return "", nil, err
	}
	sb := s.manager.store.Builder().Select(s.q.selectColumns()...).From(s.table)
	return s.q.applySelect(sb, conds, s.primary).ToSql()
}

func (s *Selection) execute(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	if err := s.resolve(ctx); err != nil {
		return err
	}
	conds, err := s.q.conditions(s.table, s.primary)
	if err != nil {
		return err
	}

	st := s.manager.store
	sb := s.q.applySelect(st.Builder().Select(s.q.selectColumns()...).From(s.table), conds, s.primary)
	rows, err := st.Select(ctx, sb)
	if err != nil {
		return fmt.Errorf("select %s: %w", s.table, err)
	}

	s.set = nil
	set := s.rowSet()
	set.rows = make([]*Entity, 0, len(rows))
	for _, row := range rows {
		e, err := s.manager.initEntity(row, set)
		if err != nil {
			return err
		}
		set.rows = append(set.rows, e)
	}
	s.loaded = true
	s.cursor = 0
	return nil
}

// FetchAll returns every row of the selection.
func (s *Selection) FetchAll(ctx context.Context) ([]*Entity, error) {
	if err := s.execute(ctx); err != nil {
		return nil, err
	}
	return s.set.rows, nil
}

// Fetch returns the next row of the selection. When the rows are exhausted it
// returns a NOT_FOUND error.
func (s *Selection) Fetch(ctx context.Context) (*Entity, error) {
	if err := s.execute(ctx); err != nil {
		return nil, err
	}
	if s.cursor >= len(s.set.rows) {
		return nil, &Error{Code: ErrCodeNotFound, Message: "no more rows", Table: s.table}
	}
	e := s.set.rows[s.cursor]
	s.cursor++
	return e, nil
}

// Get returns the row with primary value pk. Conditions of the selection do
// not apply; its row class does.
func (s *Selection) Get(ctx context.Context, pk any) (*Entity, error) {
	sel := newSelection(s.manager, s.table, s.primary, s.resolved)
	sel.rowClass = s.rowClass
	e, err := sel.WherePrimary(pk).Fetch(ctx)
	if IsNotFound(err) {
		return nil, rowNotFound(s.table, pk)
	}
	return e, err
}

// Count returns the number of rows matching the selection's conditions.
func (s *Selection) Count(ctx context.Context) (int64, error) {
	if err := s.resolve(ctx); err != nil {
		return 0, err
	}
	conds, err := s.q.conditions(s.table, s.primary)
	if err != nil {
		return 0, err
	}

	st := s.manager.store
	sb := st.Builder().Select("COUNT(*)").From(s.table)
	for _, c := range conds {
		sb = sb.Where(c)
	}
	n, err := st.Count(ctx, sb)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// Insert inserts a row and returns it as an entity built from values and the
// new primary key. The row is not read back. The entity forms a set of its
// own, so its relations load without touching the selection's rows.
func (s *Selection) Insert(ctx context.Context, values map[string]any) (*Entity, error) {
	if err := s.resolve(ctx); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "nothing to insert", Table: s.table}
	}

	pk, err := s.manager.store.Insert(ctx, s.table, s.primary, values)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(values)+1)
	for k, v := range values {
		data[k] = v
	}
	if s.primary != "" {
		data[s.primary] = pk
	}

	set := &rowSet{
		manager:  s.manager,
		table:    s.table,
		primary:  s.primary,
		rowClass: s.RowClass(),
	}
	e, err := s.manager.initEntity(data, set)
	if err != nil {
		return nil, err
	}
	set.rows = []*Entity{e}
	return e, nil
}

// Update sets values on every matching row and returns the affected count.
func (s *Selection) Update(ctx context.Context, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	if err := s.resolve(ctx); err != nil {
		return 0, err
	}
	conds, err := s.q.conditions(s.table, s.primary)
	if err != nil {
		return 0, err
	}

	st := s.manager.store
	ub := st.Builder().Update(s.table).SetMap(values)
	for _, c := range conds {
		ub = ub.Where(c)
	}
	res, err := st.Exec(ctx, ub)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", s.table, err)
	}
	s.reset()
	return n, nil
}

// Delete removes every matching row and returns the affected count.
func (s *Selection) Delete(ctx context.Context) (int64, error) {
	if err := s.resolve(ctx); err != nil {
		return 0, err
	}
	conds, err := s.q.conditions(s.table, s.primary)
	if err != nil {
		return 0, err
	}

	st := s.manager.store
	db := st.Builder().Delete(s.table)
	for _, c := range conds {
		db = db.Where(c)
	}
	res, err := st.Exec(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: rows affected: %w", s.table, err)
	}
	s.reset()
	return n, nil
}
