package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/rowgate/store"
	"github.com/roach88/rowgate/table"
)

// Harness executes scenario steps against one database.
type Harness struct {
	store    *store.Store
	settings *table.Settings
	lang     string
	classes  *table.Registry
	logger   *slog.Logger
	managers map[string]*table.Manager
	seq      int64
}

// Option configures a scenario run.
type Option func(*Harness)

// WithClasses sets the class registry used by managers.
func WithClasses(r *table.Registry) Option {
	return func(h *Harness) {
		h.classes = r
	}
}

// WithLogger sets the logger for the store and managers.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database for isolation.
//
// Execution flow:
// 1. Create a database in a temporary directory and apply the schema
// 2. Execute setup steps, failing on the first error
// 3. Execute flow steps, recording failed expectations
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		settings: &table.Settings{Tables: scenario.Tables},
		lang:     scenario.Lang,
		classes:  table.DefaultRegistry(),
		logger:   slog.New(slog.DiscardHandler),
		managers: make(map[string]*table.Manager),
	}
	for _, opt := range opts {
		opt(h)
	}

	dir, err := os.MkdirTemp("", "rowgate-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open("sqlite3", filepath.Join(dir, "scenario.db"), store.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()
	h.store = st

	for _, path := range scenario.Schema {
		script, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema: %w", err)
		}
		if err := st.Apply(ctx, string(script)); err != nil {
			return nil, fmt.Errorf("failed to apply schema %s: %w", path, err)
		}
	}

	result := NewResult()

	for i, step := range scenario.Setup {
		event := h.execute(ctx, step)
		result.AddTrace(event)
		if event.Error != "" {
			return nil, fmt.Errorf("setup step %d: %s %s failed with %s", i, step.Op, step.Table, event.Error)
		}
	}

	for i, step := range scenario.Flow {
		event := h.execute(ctx, step)
		result.AddTrace(event)
		for _, msg := range checkExpect(step, event) {
			result.AddError(fmt.Sprintf("flow[%d] %s %s: %s", i, step.Op, step.Table, msg))
		}
		h.logger.Debug("flow step completed", "step", i, "op", step.Op, "table", step.Table, "error", event.Error)
	}

	for _, msg := range EvaluateAssertions(ctx, st, result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) manager(ctx context.Context, name string) (*table.Manager, error) {
	if m, ok := h.managers[name]; ok {
		return m, nil
	}
	m, err := table.NewManager(ctx, h.store, h.settings, name,
		table.WithClasses(h.classes),
		table.WithLogger(h.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := m.SetLang(h.lang); err != nil {
		return nil, err
	}
	h.managers[name] = m
	return m, nil
}

// execute runs one step and records it as a trace event.
func (h *Harness) execute(ctx context.Context, step Step) TraceEvent {
	h.seq++
	event := TraceEvent{
		Seq:   h.seq,
		Op:    step.Op,
		Table: step.Table,
		Args:  stepArgs(step),
	}

	rows, count, err := h.run(ctx, step)
	if err != nil {
		event.Error = errorCode(err)
		h.logger.Debug("step failed", "op", step.Op, "table", step.Table, "error", err)
		return event
	}
	event.Rows = rows
	event.Count = count
	return event
}

func (h *Harness) run(ctx context.Context, step Step) ([]map[string]any, *int64, error) {
	m, err := h.manager(ctx, step.Table)
	if err != nil {
		return nil, nil, err
	}

	switch step.Op {
	case OpCreate, OpUpdate, OpGet:
		var e *table.Entity
		switch step.Op {
		case OpCreate:
			e, err = m.Create(ctx, step.Values)
		case OpUpdate:
			e, err = m.Update(ctx, step.Values)
		default:
			e, err = m.Get(ctx, step.ID)
		}
		if err != nil {
			return nil, nil, err
		}
		return []map[string]any{e.ToMap()}, nil, nil

	case OpDelete:
		deleted, err := m.Delete(ctx, step.ID)
		if err != nil {
			return nil, nil, err
		}
		var n int64
		if deleted {
			n = 1
		}
		return nil, &n, nil

	case OpFind, OpCount:
		sel := m.FindBy(step.Where)
		if step.Op == OpCount {
			n, err := sel.Count(ctx)
			if err != nil {
				return nil, nil, err
			}
			return nil, &n, nil
		}
		if len(step.Order) > 0 {
			sel.Order(step.Order...)
		}
		if step.Limit > 0 {
			sel.Limit(step.Limit)
		}
		entities, err := sel.FetchAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		rows := make([]map[string]any, 0, len(entities))
		for _, e := range entities {
			rows = append(rows, e.ToMap())
		}
		n := int64(len(rows))
		return rows, &n, nil

	default:
		return nil, nil, fmt.Errorf("unknown op %q", step.Op)
	}
}

// stepArgs returns the arguments of a step as recorded in the trace.
func stepArgs(step Step) map[string]any {
	args := make(map[string]any)
	switch step.Op {
	case OpCreate, OpUpdate:
		for k, v := range step.Values {
			args[k] = v
		}
	case OpGet, OpDelete:
		args["id"] = step.ID
	default:
		if len(step.Where) > 0 {
			args["where"] = step.Where
		}
		if len(step.Order) > 0 {
			args["order"] = step.Order
		}
		if step.Limit > 0 {
			args["limit"] = step.Limit
		}
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

func errorCode(err error) string {
	var te *table.Error
	if errors.As(err, &te) {
		return string(te.Code)
	}
	return "ERROR"
}

// checkExpect compares a step's trace event with its expect clause.
func checkExpect(step Step, event TraceEvent) []string {
	exp := step.Expect
	if exp == nil {
		if event.Error != "" {
			return []string{fmt.Sprintf("unexpected error %s", event.Error)}
		}
		return nil
	}

	if exp.Error != "" {
		if event.Error != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %q", exp.Error, event.Error)}
		}
		return nil
	}
	if event.Error != "" {
		return []string{fmt.Sprintf("unexpected error %s", event.Error)}
	}

	var msgs []string
	if exp.Count != nil {
		got := int64(len(event.Rows))
		if event.Count != nil {
			got = *event.Count
		}
		if got != *exp.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *exp.Count, got))
		}
	}
	if len(exp.Result) > 0 {
		if len(event.Rows) == 0 {
			msgs = append(msgs, "expected a result row, got none")
		} else if msg := matchRow(event.Rows[0], exp.Result); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}
