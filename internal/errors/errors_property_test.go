package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCalcErrorKindProperty checks that every kind matches exactly its own
// sentinel, through any depth of wrapping, and is never retried.
func TestCalcErrorKindProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("kind matches only its own sentinel", prop.ForAll(
		func(kind Kind, depth int, field string) bool {
			var err error = NewCalcError(kind, field, "", "generated")
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}

			for k, sentinel := range kindSentinels {
				if errors.Is(err, sentinel) != (k == kind) {
					return false
				}
			}
			return !IsTransient(err) && ClassifyError(err) == ClassInput
		},
		genKind(),
		gen.IntRange(0, 5),
		gen.AlphaString(),
	))

	properties.Property("nil errors stay unclassified", prop.ForAll(
		func() bool {
			return NewTransient(nil) == nil && NewPermanent(nil) == nil && ClassifyError(nil) == ClassUnknown
		},
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func genKind() gopter.Gen {
	return gen.OneConstOf(
		KindDataMissing,
		KindOutOfPhysicalRange,
		KindMaterialNotFound,
		KindExtrapolationWarning,
		KindCrossFieldInconsistency,
		KindNegativeCorrosionRate,
		KindChecksumMismatch,
	)
}
