package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq   int64            `json:"seq"`
	Op    string           `json:"op"`
	Table string           `json:"table"`
	Args  map[string]any   `json:"args,omitempty"`
	Rows  []map[string]any `json:"rows,omitempty"`
	Count *int64           `json:"count,omitempty"`

	// Error is the table error code of a failed step, or ERROR for
	// failures without one.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the setup and flow steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
