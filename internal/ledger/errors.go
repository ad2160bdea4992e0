package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/explog/internal/registry"
)

// StateErrorCode categorizes state machine violations.
type StateErrorCode string

const (
	// CodeNoActiveRun indicates an operation that needs an open run.
	CodeNoActiveRun StateErrorCode = "NO_ACTIVE_RUN"

	// CodeNoActiveSession indicates an operation that needs an open session.
	CodeNoActiveSession StateErrorCode = "NO_ACTIVE_SESSION"

	// CodeInvalidState indicates a transition the current state does not allow,
	// such as starting a second run or leaving the root.
	CodeInvalidState StateErrorCode = "INVALID_STATE"
)

// StateError reports an operation attempted in the wrong run/session state.
// It matches the sentinels below with errors.Is on Code.
type StateError struct {
	Code    StateErrorCode
	Op      string
	Message string
}

// Sentinels for errors.Is.
var (
	ErrNoActiveRun     = &StateError{Code: CodeNoActiveRun, Message: "no run started"}
	ErrNoActiveSession = &StateError{Code: CodeNoActiveSession, Message: "no session open"}
	ErrInvalidState    = &StateError{Code: CodeInvalidState, Message: "invalid state"}
)

// Entity errors surfaced by ledger operations, re-exported for callers that
// only import this package.
var (
	ErrDuplicateEntity  = registry.ErrDuplicateEntity
	ErrUnknownEntity    = registry.ErrUnknownEntity
	ErrUnknownStream    = registry.ErrUnknownStream
	ErrUnknownUser      = registry.ErrUnknownUser
	ErrUnknownPrototype = registry.ErrUnknownPrototype
	ErrUnknownBlobType  = registry.ErrUnknownBlobType
	ErrInvalidPayload   = registry.ErrInvalidPayload
)

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches sentinel StateErrors by code.
func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Code == e.Code
}

func stateError(code StateErrorCode, op, format string, args ...any) *StateError {
	return &StateError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code carried by a state or entity error anywhere in
// err's chain, or "ERROR" for other failures.
func ErrorCode(err error) string {
	var se *StateError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	var ee *registry.EntityError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return "ERROR"
}
