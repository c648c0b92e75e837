package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain error taxonomy. Callers classify failures
// with errors.Is against these; the typed Error below carries the
// human-readable message.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrDuplicate    = errors.New("duplicate")
	ErrConflict     = errors.New("conflict")
	ErrTransaction  = errors.New("transaction failed")
)

// Error is a domain error with a stable machine-readable kind and a
// human-readable message. It unwraps to one of the sentinel errors above.
type Error struct {
	kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the stable machine-readable kind for a domain error, or ""
// if err is not part of the taxonomy.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransaction):
		return "transaction_failed"
	default:
		return ""
	}
}

// IsDomain reports whether err belongs to the domain error taxonomy.
func IsDomain(err error) bool { return Kind(err) != "" }

func NotFoundf(format string, args ...any) error {
	return &Error{kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) error {
	return &Error{kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) error {
	return &Error{kind: ErrInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Duplicatef(format string, args ...any) error {
	return &Error{kind: ErrDuplicate, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func Transactionf(format string, args ...any) error {
	return &Error{kind: ErrTransaction, Message: fmt.Sprintf(format, args...)}
}
