package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrForbidden          = errors.New("forbidden")
	ErrNotPending         = errors.New("Only pending payments can be cancelled")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrUnauthenticated    = errors.New("missing authenticated user")
)

// ErrorKind classifies failures so callers can branch without string matching.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindProcessor      ErrorKind = "processor"
	KindPersistence    ErrorKind = "persistence"
	KindReconciliation ErrorKind = "reconciliation"
	KindNotFound       ErrorKind = "not_found"
	KindForbidden      ErrorKind = "forbidden"
)

// Error is the typed error returned by use cases.
// Status carries the processor-reported status for reconciliation mismatches.
type Error struct {
	Kind   ErrorKind
	Op     string
	Msg    string
	Status string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text safe to show a client: the error without the op.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func Validation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: err.Error(), Err: err}
}

func Processor(op string, err error) *Error {
	return &Error{Kind: KindProcessor, Op: op, Err: err}
}

func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

func NotFound(op string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: ErrNotFound}
}

func Forbidden(op string) *Error {
	return &Error{Kind: KindForbidden, Op: op, Err: ErrForbidden}
}

// Mismatch reports that the processor disagrees with the client's claim of success.
func Mismatch(op, status string) *Error {
	return &Error{
		Kind:   KindReconciliation,
		Op:     op,
		Msg:    fmt.Sprintf("payment not succeeded at processor (status=%s)", status),
		Status: status,
	}
}

// KindOf returns the kind of a typed error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// StoreError wraps a repository error, keeping ErrNotFound distinguishable.
func StoreError(op string, err error) *Error {
	if errors.Is(err, ErrNotFound) {
		return NotFound(op)
	}
	return Persistence(op, err)
}
