package errors

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestCalcError(t *testing.T) {
	tests := []struct {
		name     string
		err      *CalcError
		wantMsg  string
		sentinel error
	}{
		{
			name:     "missing field",
			err:      NewCalcError(KindDataMissing, "actualThickness", "", "required"),
			wantMsg:  "DataMissing: actualThickness: required",
			sentinel: ErrDataMissing,
		},
		{
			name:     "with code reference",
			err:      NewCalcError(KindOutOfPhysicalRange, "jointEfficiency", "UW-12", "%.2f outside [0.45, 1.00]", 1.2),
			wantMsg:  "OutOfPhysicalRange: jointEfficiency: 1.20 outside [0.45, 1.00] [UW-12]",
			sentinel: ErrOutOfPhysicalRange,
		},
		{
			name:     "no field",
			err:      NewCalcError(KindChecksumMismatch, "", "", "entry %s altered", "abc"),
			wantMsg:  "ChecksumMismatch: entry abc altered",
			sentinel: ErrChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			wrapped := fmt.Errorf("calculate: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.sentinel)
			}
			if errors.Is(wrapped, ErrNegativeCorrosionRate) && tt.sentinel != ErrNegativeCorrosionRate {
				t.Errorf("unexpected match against ErrNegativeCorrosionRate")
			}
			kind, ok := KindOf(wrapped)
			if !ok || kind != tt.err.Kind {
				t.Errorf("KindOf() = %v, %v, want %v", kind, ok, tt.err.Kind)
			}
		})
	}
}

func TestKindFatal(t *testing.T) {
	if KindExtrapolationWarning.Fatal() {
		t.Error("extrapolation should not block a calculation")
	}
	if KindChecksumMismatch.Fatal() {
		t.Error("checksum mismatch is a detection signal, not a blocking fault")
	}
	if !KindMaterialNotFound.Fatal() {
		t.Error("material not found must block the calculation")
	}
}

func TestCalcError_SuggestionAndCandidates(t *testing.T) {
	err := NewCalcError(KindMaterialNotFound, "materialSpec", "UG-23", "%q is not in the stress table", "SA-516-7O").
		WithSuggestion("did you mean SA-516 Grade 70?")
	err.Candidates = []string{"SA-516 Grade 70", "SA-516 Grade 60"}

	var got *CalcError
	if !errors.As(fmt.Errorf("component shell-1: %w", err), &got) {
		t.Fatal("expected CalcError through wrapping")
	}
	if got.Suggestion != "did you mean SA-516 Grade 70?" {
		t.Errorf("unexpected suggestion %q", got.Suggestion)
	}
	if !reflect.DeepEqual(got.Candidates, []string{"SA-516 Grade 70", "SA-516 Grade 60"}) {
		t.Errorf("unexpected candidates %v", got.Candidates)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("expected no kind for a plain error")
	}
}
