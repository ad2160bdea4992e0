package harness

import "github.com/roach88/explog/internal/store"

// TraceEvent records the outcome of one script step.
type TraceEvent struct {
	Seq   int    `json:"seq"`
	Op    string `json:"op"`
	ID    int64  `json:"id,omitempty"`    // id returned by the operation, if any
	Name  string `json:"name,omitempty"`  // registered user name
	Error string `json:"error,omitempty"` // error code of an expected failure
}

// Result is the outcome of a script execution.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stage is the database stage after the last step.
	Stage string `json:"stage"`

	// Dump is the content of every table after the last step.
	Dump *store.Dump `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for script execution.
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

// succeeded returns the ops of the steps that did not fail, in order.
func (r *Result) succeeded() []string {
	ops := make([]string, 0, len(r.Trace))
	for _, e := range r.Trace {
		if e.Error == "" {
			ops = append(ops, e.Op)
		}
	}
	return ops
}
