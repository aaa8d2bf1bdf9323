// Package apperr defines the error kinds shared by the tree and evaluation
// cores. Each kind carries a stable machine-readable code; the HTTP layer maps
// kinds to status codes and never leaks raw internal errors.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound              Kind = "not_found"
	InvariantViolation    Kind = "invariant_violation"
	HasChildren           Kind = "has_children"
	InvalidSiblingSet     Kind = "invalid_sibling_set"
	DuplicateActiveRecord Kind = "duplicate_active_record"
	InvalidValue          Kind = "invalid_value"
	InvalidTransition     Kind = "invalid_transition"
	NotARoot              Kind = "not_a_root"
	NotLeaf               Kind = "not_leaf"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err carries no kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func Is(err error, k Kind) bool { return KindOf(err) == k }
