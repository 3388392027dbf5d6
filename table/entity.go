package table

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/Masterminds/squirrel"
)

// foreignKeyFormat names the column referencing another table's primary key.
const foreignKeyFormat = "%s_id"

// Entity is one materialized row.
//
// Values set on an entity live in an overlay that shadows the row; they are
// not written to the database. Use Update for that.
type Entity struct {
	data    map[string]any
	overlay map[string]any
	lang    string
	class   *Class
	set     *rowSet
	record  any
}

func newEntity(data map[string]any, class *Class, set *rowSet) *Entity {
	if data == nil {
		data = make(map[string]any)
	}
	return &Entity{data: data, class: class, set: set}
}

// Get returns the value of key.
//
// The key is first rewritten if it is a language variant. A getter registered
// on the entity's class for the key wins; then the overlay; then the row.
func (e *Entity) Get(key string) (any, error) {
	key, err := LangKey(key, e.lang)
	if err != nil {
		return nil, err
	}

	if getter, ok := e.class.Getters[GetterName(key)]; ok {
		return getter(e)
	}
	if v, ok := e.overlay[key]; ok {
		return v, nil
	}
	if v, ok := e.data[key]; ok {
		return v, nil
	}
	return nil, keyNotFound(e.Table(), key)
}

// Value is Get without the error; missing keys read as nil.
func (e *Entity) Value(key string) any {
	v, _ := e.Get(key)
	return v
}

// Set stores value in the overlay under key.
func (e *Entity) Set(key string, value any) error {
	key, err := LangKey(key, e.lang)
	if err != nil {
		return err
	}
	if e.overlay == nil {
		e.overlay = make(map[string]any)
	}
	e.overlay[key] = value
	return nil
}

// IsSet reports whether key holds a non-nil value. An overlay entry decides
// on its own, even when it is nil; otherwise the row is consulted.
// A language variant key without a language is never set.
func (e *Entity) IsSet(key string) bool {
	key, err := LangKey(key, e.lang)
	if err != nil {
		return false
	}
	if v, ok := e.overlay[key]; ok {
		return v != nil
	}
	return e.data[key] != nil
}

// Unset removes key from the overlay and from the row data.
func (e *Entity) Unset(key string) error {
	key, err := LangKey(key, e.lang)
	if err != nil {
		return err
	}
	delete(e.overlay, key)
	delete(e.data, key)
	return nil
}

// SetLang sets the language used to resolve variant keys.
func (e *Entity) SetLang(lang string) *Entity {
	e.lang = lang
	return e
}

// Lang returns the entity's language.
func (e *Entity) Lang() string {
	return e.lang
}

// Class returns the name of the entity's class.
func (e *Entity) Class() string {
	return e.class.Name
}

// Table returns the table the row was read from.
func (e *Entity) Table() string {
	if e.set == nil {
		return ""
	}
	return e.set.table
}

// Manager returns the manager that materialized the entity.
func (e *Entity) Manager() *Manager {
	if e.set == nil {
		return nil
	}
	return e.set.manager
}

// Primary returns the row's primary key value, nil if unknown.
func (e *Entity) Primary() any {
	if e.set == nil || e.set.primary == "" {
		return nil
	}
	return e.data[e.set.primary]
}

// ToMap returns the row merged with the overlay.
func (e *Entity) ToMap() map[string]any {
	out := make(map[string]any, len(e.data)+len(e.overlay))
	maps.Copy(out, e.data)
	maps.Copy(out, e.overlay)
	return out
}

// Record returns the class wrapper for the entity, or the entity itself when
// the class has no Wrap function.
func (e *Entity) Record() any {
	if e.record == nil {
		if e.class.Wrap != nil {
			e.record = e.class.Wrap(e)
		} else {
			e.record = e
		}
	}
	return e.record
}

// As returns the entity's class wrapper as T.
func As[T any](e *Entity) (T, bool) {
	v, ok := e.Record().(T)
	return v, ok
}

func (e *Entity) requirePrimary(op string) (any, error) {
	pk := e.Primary()
	if pk == nil {
		return nil, &Error{
			Code:    ErrCodeInvalidState,
			Message: fmt.Sprintf("%s needs a primary key value", op),
			Table:   e.Table(),
		}
	}
	return pk, nil
}

// Update writes values to the row and reloads it.
// It reports whether the database row changed.
func (e *Entity) Update(ctx context.Context, values map[string]any) (bool, error) {
	pk, err := e.requirePrimary("update")
	if err != nil {
		return false, err
	}
	if len(values) == 0 {
		return false, nil
	}

	st := e.set.manager.store
	res, err := st.Exec(ctx, st.Builder().Update(e.set.table).SetMap(values).Where(squirrel.Eq{e.set.primary: pk}))
	if err != nil {
		return false, fmt.Errorf("update %s: %w", e.set.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s: rows affected: %w", e.set.table, err)
	}

	// the primary key itself may have been updated
	if v, ok := values[e.set.primary]; ok {
		pk = v
	}
	rows, err := st.Select(ctx, st.Builder().Select("*").From(e.set.table).Where(squirrel.Eq{e.set.primary: pk}))
	if err != nil {
		return false, fmt.Errorf("reload %s: %w", e.set.table, err)
	}
	if len(rows) == 1 {
		e.data = rows[0]
	}
	return n > 0, nil
}

// Delete removes the row. It reports whether a row was deleted.
func (e *Entity) Delete(ctx context.Context) (bool, error) {
	pk, err := e.requirePrimary("delete")
	if err != nil {
		return false, err
	}

	st := e.set.manager.store
	res, err := st.Exec(ctx, st.Builder().Delete(e.set.table).Where(squirrel.Eq{e.set.primary: pk}))
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", e.set.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: rows affected: %w", e.set.table, err)
	}
	return n > 0, nil
}

// Ref returns the row of table referenced by column. An empty column defaults
// to "<table>_id".
func (e *Entity) Ref(ctx context.Context, table, column string) (*Entity, error) {
	if column == "" {
		column = fmt.Sprintf(foreignKeyFormat, table)
	}
	v, ok := e.data[column]
	if !ok {
		return nil, keyNotFound(e.Table(), column)
	}
	if v == nil {
		return nil, &Error{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("%s is null", column),
			Table:   e.Table(),
			Key:     column,
		}
	}
	return e.set.manager.SpecificTable(table).Get(ctx, v)
}

// Related returns the rows of table whose column references this entity.
// An empty column defaults to "<this table>_id".
func (e *Entity) Related(table, column string) *GroupedSelection {
	if column == "" {
		column = fmt.Sprintf(foreignKeyFormat, e.Table())
	}
	return newGroupedSelection(e.set, table, column, e.Primary())
}

// SubRelation collects one value from every related row. The selector has the
// form "relatedTable:key". refine, when given, narrows the related selection
// before it is fetched.
func (e *Entity) SubRelation(ctx context.Context, selector string, refine func(*GroupedSelection)) ([]any, error) {
	relatedTable, key, ok := strings.Cut(selector, ":")
	if !ok || relatedTable == "" || key == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("selector %q must look like \"table:key\"", selector),
			Key:     selector,
		}
	}

	related := e.Related(relatedTable, "")
	if refine != nil {
		refine(related)
	}

	rows, err := related.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := row.Get(key)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}
