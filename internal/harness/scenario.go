package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Scenario defines a table operation test.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema lists SQL scripts applied to the fresh database, in order.
	// Paths are relative to the scenario file location.
	Schema []string `yaml:"schema"`

	// Lang is the language set on every manager.
	Lang string `yaml:"lang,omitempty"`

	// Tables maps table names to class names.
	Tables map[string]string `yaml:"tables,omitempty"`

	// Setup contains operations that establish initial rows.
	// Setup operations must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the operations under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final rows and trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one manager operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Table is the managed table.
	Table string `yaml:"table"`

	// Values are the column values of create and update.
	Values map[string]any `yaml:"values,omitempty"`

	// ID is the primary key value of get and delete.
	ID any `yaml:"id,omitempty"`

	// Where, Order and Limit refine find and count.
	Where map[string]any `yaml:"where,omitempty"`
	Order []string       `yaml:"order,omitempty"`
	Limit uint64         `yaml:"limit,omitempty"`

	// Expect checks the outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected table error code, e.g. "NOT_FOUND".
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of rows (find), the count (count) or
	// 1/0 for whether a row was deleted (delete).
	Count *int64 `yaml:"count,omitempty"`

	// Result is a subset match against the first returned row.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates final rows or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Table is the table to query (final_state, row_count) or the table
	// filter of trace_count.
	Table string `yaml:"table,omitempty"`

	// Where filters rows by column equality.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state, subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Op is the operation counted by trace_count.
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of rows or trace events.
	Count int64 `yaml:"count"`
}

// Operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpGet    = "get"
	OpFind   = "find"
	OpCount  = "count"
)

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
	AssertTraceCount = "trace_count"
)

// validIdentifier matches plain SQL identifiers (table/column names).
// Assertion queries interpolate identifiers, so anything else is rejected.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadScenario reads and parses a scenario YAML file.
// Schema paths are resolved relative to the file. Unknown fields and
// missing required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Schema {
		if !filepath.IsAbs(p) {
			scenario.Schema[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for _, p := range s.Schema {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	if step.Table == "" {
		return fmt.Errorf("table is required")
	}

	switch step.Op {
	case OpCreate:
	case OpUpdate:
		if len(step.Values) == 0 {
			return fmt.Errorf("values are required for update")
		}
	case OpGet, OpDelete:
		if step.ID == nil {
			return fmt.Errorf("id is required for %s", step.Op)
		}
	case OpFind, OpCount:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
