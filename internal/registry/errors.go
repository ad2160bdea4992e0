package registry

import (
	"errors"
	"fmt"

	"github.com/roach88/explog/internal/store"
)

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// CodeDuplicateEntity indicates a name is already registered in its partition.
	CodeDuplicateEntity ErrorCode = "DUPLICATE_ENTITY"

	// CodeUnknownEntity indicates a referenced name was never registered.
	CodeUnknownEntity ErrorCode = "UNKNOWN_ENTITY"

	// CodeReservedName indicates a stream name collides with a schema object.
	CodeReservedName ErrorCode = "RESERVED_NAME"

	// CodeInvalidName indicates an empty or malformed name.
	CodeInvalidName ErrorCode = "INVALID_NAME"

	// CodeInvalidPayload indicates data rejected by a stream schema, or a
	// schema that does not compile.
	CodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
)

// EntityError reports a problem with a named entity.
//
// Errors match sentinels with errors.Is on Code, and on MType and Name when
// the sentinel sets them, so ErrUnknownEntity matches every unknown-entity
// error while ErrUnknownStream matches only streams.
type EntityError struct {
	Code   ErrorCode
	MType  store.MetaType
	Name   string
	Detail string
}

// Sentinels for errors.Is.
var (
	ErrDuplicateEntity  = &EntityError{Code: CodeDuplicateEntity}
	ErrUnknownEntity    = &EntityError{Code: CodeUnknownEntity}
	ErrUnknownStream    = &EntityError{Code: CodeUnknownEntity, MType: store.MetaStream}
	ErrUnknownUser      = &EntityError{Code: CodeUnknownEntity, MType: store.MetaUser}
	ErrUnknownPrototype = &EntityError{Code: CodeUnknownEntity, MType: store.MetaSession}
	ErrUnknownBlobType  = &EntityError{Code: CodeUnknownEntity, MType: store.MetaBlob}
	ErrReservedName     = &EntityError{Code: CodeReservedName}
	ErrInvalidName      = &EntityError{Code: CodeInvalidName}
	ErrInvalidPayload   = &EntityError{Code: CodeInvalidPayload}
)

// Error implements the error interface.
func (e *EntityError) Error() string {
	kind := KindName(e.MType)
	var msg string
	switch e.Code {
	case CodeDuplicateEntity:
		msg = fmt.Sprintf("%s %q already exists", kind, e.Name)
	case CodeUnknownEntity:
		msg = fmt.Sprintf("%s %q is not registered", kind, e.Name)
	case CodeReservedName:
		msg = fmt.Sprintf("%s name %q is reserved", kind, e.Name)
	case CodeInvalidName:
		msg = fmt.Sprintf("invalid %s name %q", kind, e.Name)
	default:
		msg = fmt.Sprintf("%s %q", kind, e.Name)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is matches sentinel EntityErrors.
func (e *EntityError) Is(target error) bool {
	t, ok := target.(*EntityError)
	if !ok {
		return false
	}
	return t.Code == e.Code &&
		(t.MType == "" || t.MType == e.MType) &&
		(t.Name == "" || t.Name == e.Name)
}

// IsDuplicate returns true if err is a duplicate-entity error.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateEntity)
}

// IsUnknown returns true if err is an unknown-entity error of any partition.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}

// KindName is the human-readable name of a partition.
func KindName(t store.MetaType) string {
	switch t {
	case store.MetaSession:
		return "session prototype"
	case store.MetaUser:
		return "user"
	case store.MetaStream:
		return "stream"
	case store.MetaBlob:
		return "blob type"
	case store.MetaPath:
		return "path"
	default:
		return "entity"
	}
}
