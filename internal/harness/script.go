package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script defines a sequence of ledger operations with expected outcomes.
type Script struct {
	// Name uniquely identifies this script. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this script exercises.
	Description string `yaml:"description"`

	// Autocommit is the commit policy of the ledger. Default: none.
	Autocommit string `yaml:"autocommit,omitempty"`

	// Pseudonyms are handed out, in order, to users registered without a name.
	Pseudonyms []string `yaml:"pseudonyms,omitempty"`

	// Setup registers entities before the steps run.
	// Setup registrations are assumed to succeed.
	Setup []Registration `yaml:"setup,omitempty"`

	// Steps are the ledger operations, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final tables.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Registration registers one entity.
type Registration struct {
	// Register is the partition: stream, session, blob or user.
	Register    string `yaml:"register"`
	Name        string `yaml:"name"`
	Type        string `yaml:"type,omitempty"`
	Description string `yaml:"description,omitempty"`
	Payload     any    `yaml:"payload,omitempty"`
	Force       bool   `yaml:"force,omitempty"`
}

// Step is one ledger operation.
type Step struct {
	// Op is the operation name, see the package documentation.
	Op string `yaml:"op"`

	// Args are the operation arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// ExpectError is the error code the step must fail with, e.g.
	// NO_ACTIVE_SESSION or UNKNOWN_ENTITY.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the trace or the final tables.
type Assertion struct {
	// Type is one of trace_count, trace_order, final_state, row_count.
	Type string `yaml:"type"`

	// Op is the operation name (trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Table is a table or view name (final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where filters rows; all fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected column values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of operations or rows.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
)

// Operation names.
const (
	OpStartRun     = "start_run"
	OpEndRun       = "end_run"
	OpRegister     = "register"
	OpAddUser      = "add_user"
	OpRemoveUser   = "remove_user"
	OpClearUsers   = "clear_users"
	OpEnter        = "enter"
	OpLeave        = "leave"
	OpLog          = "log"
	OpAttachBlob   = "attach_blob"
	OpAttachArrays = "attach_arrays"
	OpSetStage     = "set_stage"
	OpCommit       = "commit"
	OpAdvance      = "advance"
)

var knownOps = map[string]bool{
	OpStartRun: true, OpEndRun: true, OpRegister: true,
	OpAddUser: true, OpRemoveUser: true, OpClearUsers: true,
	OpEnter: true, OpLeave: true, OpLog: true,
	OpAttachBlob: true, OpAttachArrays: true,
	OpSetStage: true, OpCommit: true, OpAdvance: true,
}

var knownKinds = map[string]bool{"stream": true, "session": true, "blob": true, "user": true}

// LoadScript reads and parses a script YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript parses script YAML.
func ParseScript(data []byte) (*Script, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScript(&script); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &script, nil
}

// validateScript checks that required fields are present and valid.
func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, r := range s.Setup {
		if !knownKinds[r.Register] {
			return fmt.Errorf("setup[%d]: register must be stream, session, blob or user, got %q", i, r.Register)
		}
		if r.Name == "" && r.Register != "user" {
			return fmt.Errorf("setup[%d]: name is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
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
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
