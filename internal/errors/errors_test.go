package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMarkers(t *testing.T) {
	busy := fmt.Errorf("append entry: %w", ErrStoreBusy)

	tests := []struct {
		name    string
		err     error
		wantMsg string
		cause   error
	}{
		{"transient", NewTransient(busy), "transient error: append entry: store busy", ErrStoreBusy},
		{"transientf", NewTransientf("read stress table: %w", context.DeadlineExceeded), "transient error: read stress table: context deadline exceeded", context.DeadlineExceeded},
		{"permanent", NewPermanent(ErrNotFound), "permanent error: not found", ErrNotFound},
		{"permanentf", NewPermanentf("%w: inspectionId is required", ErrInvalidInput), "permanent error: invalid input: inspectionId is required", ErrInvalidInput},
		{"zero value", &PermanentError{}, "permanent error: unspecified", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if tt.cause != nil && !errors.Is(tt.err, tt.cause) {
				t.Errorf("expected %v to wrap %v", tt.err, tt.cause)
			}
		})
	}

	if NewTransient(nil) != nil || NewPermanent(nil) != nil {
		t.Error("marking a nil error must return nil")
	}
}

func TestClassifyError(t *testing.T) {
	calc := NewCalcError(KindNegativeCorrosionRate, "previousThickness", "API 510 7.1.1", "swap")

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassUnknown},
		{"unknown", errors.New("boom"), ClassUnknown},
		{"transient mark", NewTransientf("database is locked"), ClassTransient},
		{"permanent mark", NewPermanentf("bad config"), ClassPermanent},
		{"store busy", fmt.Errorf("append: %w", ErrStoreBusy), ClassTransient},
		{"deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), ClassTransient},
		{"cancelled", fmt.Errorf("assess: %w", context.Canceled), ClassPermanent},
		{"cancelled inside a transient mark", NewTransientf("query: %w", context.Canceled), ClassPermanent},
		{"not found", fmt.Errorf("report: %w", ErrNotFound), ClassPermanent},
		{"invalid input", fmt.Errorf("decode: %w", ErrInvalidInput), ClassPermanent},
		{"calc", calc, ClassInput},
		{"calc inside a transient mark", NewTransient(calc), ClassInput},
		{"transient mark over not found", NewTransient(ErrNotFound), ClassTransient},
		{"joined with a calc error", Join(errors.New("first"), calc), ClassInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransientAndIsPermanent(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantPermanent bool
	}{
		{"nil", nil, false, false},
		{"unknown", errors.New("boom"), false, false},
		{"transient", NewTransient(ErrStoreBusy), true, false},
		{"permanent", NewPermanentf("invalid config"), false, true},
		{"input", NewCalcError(KindDataMissing, "actualThickness", "", "required"), false, true},
		{"deadline", context.DeadlineExceeded, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}
			if got := IsPermanent(tt.err); got != tt.wantPermanent {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.wantPermanent)
			}
		})
	}
}

func TestErrorClassString(t *testing.T) {
	for class, want := range map[ErrorClass]string{
		ClassUnknown:   "unknown",
		ClassTransient: "transient",
		ClassPermanent: "permanent",
		ClassInput:     "input",
	} {
		if got := class.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", class, got, want)
		}
	}
}
