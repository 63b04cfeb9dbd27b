// Package errors classifies failures for the recalculation worker and
// carries the engineering error taxonomy (see kinds.go).
//
// Infrastructure failures are marked transient or permanent. Engineering
// failures are *CalcError values: they describe the input, so retrying
// never changes the outcome.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinels shared across packages
var (
	// ErrNotFound indicates an inspection, entry or run does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a request or package that cannot be processed
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreBusy indicates the audit store could not take the write lock in time
	ErrStoreBusy = errors.New("store busy")
)

// TransientError marks a failure worth retrying, such as a locked database
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return "transient error: " + causeText(e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// PermanentError marks a failure that fails the same way on every attempt
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	return "permanent error: " + causeText(e.Cause)
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

func causeText(err error) string {
	if err == nil {
		return "unspecified"
	}
	return err.Error()
}

// NewTransient marks err as transient. A nil err stays nil.
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf is NewTransient(fmt.Errorf(format, args...))
func NewTransientf(format string, args ...any) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// NewPermanent marks err as permanent. A nil err stays nil.
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf is NewPermanent(fmt.Errorf(format, args...))
func NewPermanentf(format string, args ...any) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// ErrorClass is the coarse retry classification used by the worker.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransient
	ClassPermanent
	// ClassInput is bad inspection data: permanent, and reported as the
	// inspector's problem rather than the system's
	ClassInput
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassInput:
		return "input"
	default:
		return "unknown"
	}
}

// ClassifyError maps an error onto a retry class. Checked in order:
//
//  1. a *CalcError anywhere in the chain is input
//  2. cancellation is permanent; the worker is shutting down
//  3. an explicit transient mark, then an explicit permanent mark
//  4. store contention and deadlines are transient
//  5. not found and invalid input are permanent
//
// Anything else is unknown, which the worker does not retry.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var calcErr *CalcError
	if errors.As(err, &calcErr) {
		return ClassInput
	}
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return ClassTransient
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return ClassPermanent
	}

	switch {
	case errors.Is(err, ErrStoreBusy), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput):
		return ClassPermanent
	}
	return ClassUnknown
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return ClassifyError(err) == ClassTransient
}

// IsPermanent reports whether err fails the same way on every attempt
func IsPermanent(err error) bool {
	switch ClassifyError(err) {
	case ClassPermanent, ClassInput:
		return true
	}
	return false
}

// Is, As, New and Join re-export the standard helpers so callers need a
// single import.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)
