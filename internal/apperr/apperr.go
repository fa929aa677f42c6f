package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so handlers can map it to a status
// without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindMaxNestingExceeded
	KindPartitionExhausted
	KindRelationResolutionFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	case KindMaxNestingExceeded:
		return "max_nesting_exceeded"
	case KindPartitionExhausted:
		return "partition_exhausted"
	case KindRelationResolutionFailed:
		return "relation_resolution_failed"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(resource string, id any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %v not found", resource, id)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func MaxNestingExceeded(level, max int) *Error {
	return &Error{
		Kind: KindMaxNestingExceeded,
		Msg:  fmt.Sprintf("subform level %d exceeds the maximum nesting depth %d", level, max),
	}
}

func PartitionExhausted(formID any) *Error {
	return &Error{
		Kind: KindPartitionExhausted,
		Msg:  fmt.Sprintf("no free partition available for form %v", formID),
	}
}

func RelationResolutionFailed(fieldID any, err error) *Error {
	return &Error{
		Kind: KindRelationResolutionFailed,
		Msg:  fmt.Sprintf("could not resolve lookup relation for field %v", fieldID),
		Err:  err,
	}
}

// IsKind reports whether err or anything it wraps is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
