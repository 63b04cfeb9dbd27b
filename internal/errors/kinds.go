package errors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of engineering or integrity problem.
type Kind string

const (
	KindDataMissing             Kind = "DataMissing"
	KindOutOfPhysicalRange      Kind = "OutOfPhysicalRange"
	KindMaterialNotFound        Kind = "MaterialNotFound"
	KindExtrapolationWarning    Kind = "ExtrapolationWarning"
	KindCrossFieldInconsistency Kind = "CrossFieldInconsistency"
	KindNegativeCorrosionRate   Kind = "NegativeCorrosionRate"
	KindChecksumMismatch        Kind = "ChecksumMismatch"
)

// Sentinels matched by CalcError.Is, one per Kind.
var (
	ErrDataMissing             = errors.New("data missing")
	ErrOutOfPhysicalRange      = errors.New("value out of physical range")
	ErrMaterialNotFound        = errors.New("material not found")
	ErrExtrapolation           = errors.New("value extrapolated beyond table")
	ErrCrossFieldInconsistency = errors.New("cross-field inconsistency")
	ErrNegativeCorrosionRate   = errors.New("negative corrosion rate")
	ErrChecksumMismatch        = errors.New("checksum mismatch")
)

var kindSentinels = map[Kind]error{
	KindDataMissing:             ErrDataMissing,
	KindOutOfPhysicalRange:      ErrOutOfPhysicalRange,
	KindMaterialNotFound:        ErrMaterialNotFound,
	KindExtrapolationWarning:    ErrExtrapolation,
	KindCrossFieldInconsistency: ErrCrossFieldInconsistency,
	KindNegativeCorrosionRate:   ErrNegativeCorrosionRate,
	KindChecksumMismatch:        ErrChecksumMismatch,
}

// Fatal reports whether an error of this kind blocks a calculation.
func (k Kind) Fatal() bool {
	return k != KindExtrapolationWarning && k != KindChecksumMismatch
}

// CalcError is a typed engineering error carrying the code clause it was
// raised against and, where one exists, a correction hint for the operator.
type CalcError struct {
	Kind          Kind
	Field         string
	Message       string
	CodeReference string
	Suggestion    string
	// Candidates holds ranked alternatives, e.g. material spec suggestions.
	Candidates []string
}

func (e *CalcError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.CodeReference != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.CodeReference)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Is matches the sentinel registered for the error's Kind.
func (e *CalcError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// NewCalcError builds a CalcError without a suggestion.
func NewCalcError(kind Kind, field, codeRef, format string, args ...any) *CalcError {
	return &CalcError{
		Kind:          kind,
		Field:         field,
		Message:       fmt.Sprintf(format, args...),
		CodeReference: codeRef,
	}
}

// WithSuggestion returns the error with a suggested correction attached.
func (e *CalcError) WithSuggestion(s string) *CalcError {
	e.Suggestion = s
	return e
}

// KindOf extracts the Kind of err, if it is or wraps a CalcError.
func KindOf(err error) (Kind, bool) {
	var calcErr *CalcError
	if errors.As(err, &calcErr) {
		return calcErr.Kind, true
	}
	return "", false
}
