package table

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/roach88/rowgate/store"
)

// Settings configures class resolution for managers.
type Settings struct {
	// Tables maps table names to class names.
	Tables map[string]string `json:"tables" yaml:"tables"`
}

// ClassFor returns the class configured for a table.
func (s *Settings) ClassFor(table string) (string, bool) {
	if s == nil {
		return "", false
	}
	name, ok := s.Tables[table]
	return name, ok && name != ""
}

// KeyGenerator produces primary key values for inserts that lack one.
type KeyGenerator func() any

// UUIDv7Keys generates time-sortable UUIDv7 strings.
func UUIDv7Keys() any {
	return uuid.Must(uuid.NewV7()).String()
}

// Manager is the facade of one table.
type Manager struct {
	store    *store.Store
	settings *Settings
	table    string
	primary  string
	rowClass string
	lang     string
	classes  *Registry
	keys     KeyGenerator
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClasses sets the class registry. The default is DefaultRegistry.
func WithClasses(r *Registry) Option {
	return func(m *Manager) {
		m.classes = r
	}
}

// WithKeyGenerator generates primary values for Create calls without one.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(m *Manager) {
		m.keys = gen
	}
}

// WithLogger sets the manager's logger. The default is the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRowClass sets the row class for every selection of the manager.
func WithRowClass(name string) Option {
	return func(m *Manager) {
		m.rowClass = name
	}
}

// NewManager creates the manager of a table and discovers its primary key.
// Tables without a single-column primary key are rejected.
func NewManager(ctx context.Context, st *store.Store, settings *Settings, table string, opts ...Option) (*Manager, error) {
	if table == "" {
		return nil, &Error{Code: ErrCodeInvalidState, Message: "manager has no table name"}
	}

	m := &Manager{
		store:    st,
		settings: settings,
		table:    table,
		classes:  DefaultRegistry(),
		logger:   st.Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	primary, err := st.Primary(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}
	if primary == "" {
		return nil, &Error{Code: ErrCodeInvalidState, Message: "table has no primary key", Table: table}
	}
	m.primary = primary

	return m, nil
}

// Store returns the manager's store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// TableName returns the managed table.
func (m *Manager) TableName() string {
	return m.table
}

// Primary returns the primary key column of the managed table.
func (m *Manager) Primary() string {
	return m.primary
}

// Settings returns the manager's settings.
func (m *Manager) Settings() *Settings {
	return m.settings
}

// SetLang sets the language injected into every materialized entity.
// The tag is validated and kept as given; "" clears it.
func (m *Manager) SetLang(tag string) error {
	if tag == "" {
		m.lang = ""
		return nil
	}
	if err := ValidateLang(tag); err != nil {
		return err
	}
	m.lang = tag
	return nil
}

// Lang returns the manager's language.
func (m *Manager) Lang() string {
	return m.lang
}

// SetRowClass sets the row class for every selection of the manager.
func (m *Manager) SetRowClass(name string) *Manager {
	m.rowClass = name
	return m
}

// RowClass returns the manager's row class.
func (m *Manager) RowClass() string {
	return m.rowClass
}

// InitEntity wraps row data in the entity class that applies to src.
func (m *Manager) InitEntity(data map[string]any, src RowSource) (*Entity, error) {
	return m.initEntity(data, src.rowSet())
}

// initEntity picks the class by priority: the set's row class, then the
// settings entry for the set's table, then DefaultClass.
func (m *Manager) initEntity(data map[string]any, set *rowSet) (*Entity, error) {
	name := set.rowClass
	if name == "" {
		name, _ = m.settings.ClassFor(set.table)
	}
	if name == "" {
		name = DefaultClass
	}

	class, err := m.classes.Lookup(name)
	if err != nil {
		return nil, err
	}

	e := newEntity(data, class, set)
	if m.lang != "" {
		e.SetLang(m.lang)
	}
	return e, nil
}

// Table returns a new selection of the managed table.
func (m *Manager) Table() *Selection {
	return newSelection(m, m.table, m.primary, true)
}

// SpecificTable returns a new selection of any table bound to this manager.
func (m *Manager) SpecificTable(table string) *Selection {
	if table == m.table {
		return m.Table()
	}
	return newSelection(m, table, "", false)
}

// GetAll returns the rows matching conds.
func (m *Manager) GetAll(conds map[string]any) *Selection {
	return m.Table().Where(conds)
}

// FindAll returns every row.
func (m *Manager) FindAll() *Selection {
	return m.Table()
}

// FindBy returns the rows whose columns equal the given values.
func (m *Manager) FindBy(by map[string]any) *Selection {
	return m.GetAll(by)
}

// FindOneBy returns the first row whose columns equal the given values.
func (m *Manager) FindOneBy(ctx context.Context, by map[string]any) (*Entity, error) {
	return m.FindBy(by).Limit(1).Fetch(ctx)
}

// Get returns the row with primary value pk.
func (m *Manager) Get(ctx context.Context, pk any) (*Entity, error) {
	return m.Table().Get(ctx, pk)
}

// Find is Get.
func (m *Manager) Find(ctx context.Context, pk any) (*Entity, error) {
	return m.Get(ctx, pk)
}

// Create inserts values and returns the stored row.
func (m *Manager) Create(ctx context.Context, values map[string]any) (*Entity, error) {
	values = maps.Clone(values)
	if values == nil {
		values = make(map[string]any)
	}
	if m.keys != nil {
		if v, ok := values[m.primary]; !ok || v == nil {
			values[m.primary] = m.keys()
		}
	}

	inserted, err := m.Table().Insert(ctx, values)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("row created", "table", m.table, "primary", inserted.Primary())

	return m.Get(ctx, inserted.Primary())
}

// Save is Create.
func (m *Manager) Save(ctx context.Context, values map[string]any) (*Entity, error) {
	return m.Create(ctx, values)
}

// Update writes values to the row identified by the primary value they
// contain and returns the updated row. The primary value itself is not
// written.
func (m *Manager) Update(ctx context.Context, values map[string]any) (*Entity, error) {
	pk, ok := values[m.primary]
	if !ok || pk == nil {
		return nil, &Error{
			Code:    ErrCodeInvalidArgument,
			Message: "missing primary value",
			Table:   m.table,
			Key:     m.primary,
		}
	}

	rest := maps.Clone(values)
	delete(rest, m.primary)

	n, err := m.Table().WherePrimary(pk).Update(ctx, rest)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("row updated", "table", m.table, "primary", pk, "affected", n)

	return m.Get(ctx, pk)
}

// Delete removes a row given either its entity or its primary value.
// It reports whether a row was deleted.
func (m *Manager) Delete(ctx context.Context, target any) (bool, error) {
	pk := target
	if e, ok := target.(*Entity); ok {
		if e == nil {
			return false, &Error{Code: ErrCodeInvalidArgument, Message: "nil entity", Table: m.table}
		}
		pk = e.data[m.primary]
	}
	if pk == nil {
		return false, &Error{Code: ErrCodeInvalidArgument, Message: "missing primary value", Table: m.table, Key: m.primary}
	}

	n, err := m.Table().WherePrimary(pk).Delete(ctx)
	if err != nil {
		return false, err
	}
	m.logger.Debug("row deleted", "table", m.table, "primary", pk, "affected", n)

	return n > 0, nil
}

// BeginTransaction starts a transaction and returns a manager bound to it.
// Call Commit or Rollback on the returned manager.
func (m *Manager) BeginTransaction(ctx context.Context) (*Manager, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	c := *m
	c.store = tx
	return &c, nil
}

// Commit commits the manager's transaction.
func (m *Manager) Commit() error {
	return m.store.Commit()
}

// Rollback aborts the manager's transaction.
func (m *Manager) Rollback() error {
	return m.store.Rollback()
}

// RawQuery runs literal SQL and returns the rows as maps.
func (m *Manager) RawQuery(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return m.store.RawQuery(ctx, query, args...)
}
