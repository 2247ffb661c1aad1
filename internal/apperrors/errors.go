package apperrors

import (
	"errors"
	"fmt"
)

// Kind represents the category of an application error.
type Kind string

const (
	// KindNotFound means the requested user does not resolve to a record.
	KindNotFound Kind = "not_found"
	// KindUnauthenticated means the caller token is missing or invalid.
	KindUnauthenticated Kind = "unauthenticated"
	// KindValidation means the request carried malformed input.
	KindValidation Kind = "validation"
	// KindConflict means the write would violate a uniqueness rule.
	KindConflict Kind = "conflict"
	// KindStoreFailure means the persistence layer rejected an operation.
	KindStoreFailure Kind = "store_failure"
	// KindPartialInconsistency means one half of a paired relation write was left applied.
	KindPartialInconsistency Kind = "partial_inconsistency"
)

// Error is the error type returned by the service layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new application error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Unauthenticated(message string, err error) *Error {
	return New(KindUnauthenticated, message, err)
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func Conflict(message string) *Error {
	return New(KindConflict, message, nil)
}

func StoreFailure(message string, err error) *Error {
	return New(KindStoreFailure, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindStoreFailure for any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStoreFailure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
