package materials

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	table, err := DefaultTable()
	require.NoError(t, err)
	r, err := NewResolver(table)
	require.NoError(t, err)
	return r
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SA-516 Grade 70", "SA51670"},
		{"SA-516-70", "SA51670"},
		{"sa 516 gr. 70", "SA51670"},
		{"A516-70", "SA51670"},
		{"SA-240 TP316L", "SA240316L"},
		{"SA-240 Type 316L", "SA240316L"},
		{"SA-387 Grade 11 Class 2", "SA387112"},
		{"SA-106 Gr B", "SA106B"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestValidateMaterial(t *testing.T) {
	r := newTestResolver(t)

	t.Run("known spellings resolve to one name", func(t *testing.T) {
		for _, spec := range []string{"SA-516 Grade 70", "SA-516-70", "A516-70", "SA-516-70N"} {
			v, err := r.ValidateMaterial(spec)
			require.NoError(t, err, spec)
			assert.True(t, v.IsValid)
			assert.Equal(t, "SA-516 Grade 70", v.NormalizedSpec)
		}
	})

	t.Run("alias", func(t *testing.T) {
		v, err := r.ValidateMaterial("316L SS")
		require.NoError(t, err)
		assert.Equal(t, "SA-240 Grade 316L", v.NormalizedSpec)
	})

	t.Run("unknown grade suggests same product spec first", func(t *testing.T) {
		v, err := r.ValidateMaterial("SA-516 Grade 65")
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrMaterialNotFound)
		assert.False(t, v.IsValid)
		require.NotEmpty(t, v.Suggestions)
		assert.LessOrEqual(t, len(v.Suggestions), maxSuggestions)
		assert.Contains(t, v.Suggestions[:2], "SA-516 Grade 70")
		assert.Contains(t, v.Suggestions[:2], "SA-516 Grade 60")

		var calcErr *errors.CalcError
		require.ErrorAs(t, err, &calcErr)
		assert.Equal(t, v.Suggestions, calcErr.Candidates)
		assert.Equal(t, "UG-23", calcErr.CodeReference)
	})

	t.Run("garbage still returns ranked suggestions", func(t *testing.T) {
		v, err := r.ValidateMaterial("unobtainium")
		assert.ErrorIs(t, err, errors.ErrMaterialNotFound)
		assert.Len(t, v.Suggestions, maxSuggestions)
	})
}

func TestAllowableStress(t *testing.T) {
	r := newTestResolver(t)

	t.Run("exact breakpoint", func(t *testing.T) {
		l, err := r.AllowableStress("SA-516-70", 200)
		require.NoError(t, err)
		assert.Equal(t, 17100.0, l.Stress)
		assert.Equal(t, types.StressOK, l.Status)
		assert.Equal(t, "SA-516 Grade 70", l.NormalizedSpec)
		assert.Contains(t, l.TableReference, "v1.3.0")

		l, err = r.AllowableStress("SA-516-60", 200)
		require.NoError(t, err)
		assert.Equal(t, 15000.0, l.Stress)
	})

	t.Run("interpolated", func(t *testing.T) {
		l, err := r.AllowableStress("SA-516 Grade 70", 725)
		require.NoError(t, err)
		assert.Equal(t, types.StressInterpolated, l.Status)
		assert.InDelta(t, 15600+(13000-15600)*0.5, l.Stress, 1e-9)
	})

	t.Run("above range extrapolates with error status", func(t *testing.T) {
		l, err := r.AllowableStress("SA-516 Grade 70", 950)
		require.NoError(t, err)
		assert.True(t, l.Extrapolated())
		assert.Equal(t, types.StressExtrapolated, l.Status)
		assert.Contains(t, l.Message, "extrapolated")
		assert.InDelta(t, 5900-56*50, l.Stress, 1e-9)
	})

	t.Run("below range", func(t *testing.T) {
		l, err := r.AllowableStress("SA-240 316", -100)
		require.NoError(t, err)
		assert.True(t, l.Extrapolated())
		assert.Equal(t, 20000.0, l.Stress)
	})

	t.Run("extrapolation to non-positive stress fails", func(t *testing.T) {
		_, err := r.AllowableStress("SA-516 Grade 70", 1200)
		assert.ErrorIs(t, err, errors.ErrOutOfPhysicalRange)
	})

	t.Run("unknown material", func(t *testing.T) {
		_, err := r.AllowableStress("SA-999", 200)
		assert.ErrorIs(t, err, errors.ErrMaterialNotFound)
	})
}

// TestInterpolationProperty checks that any temperature strictly between two
// breakpoints reproduces the linear interpolation formula exactly.
func TestInterpolationProperty(t *testing.T) {
	r := newTestResolver(t)
	properties := gopter.NewProperties(nil)

	specs := make([]any, 0, len(r.Table().Materials))
	for _, m := range r.Table().Materials {
		if len(m.Stress) > 1 {
			specs = append(specs, m.DisplayName())
		}
	}

	properties.Property("interpolated lookups follow S1+(S2-S1)(T-T1)/(T2-T1)", prop.ForAll(
		func(spec string, seg int, frac float64) bool {
			m, _ := r.Lookup(spec)
			seg = seg % (len(m.Stress) - 1)
			lo, hi := m.Stress[seg], m.Stress[seg+1]
			temp := lo.Temperature + frac*(hi.Temperature-lo.Temperature)
			if temp <= lo.Temperature || temp >= hi.Temperature {
				return true
			}

			l, err := r.AllowableStress(spec, temp)
			if err != nil {
				return false
			}
			want := lo.Value + (hi.Value-lo.Value)*(temp-lo.Temperature)/(hi.Temperature-lo.Temperature)
			return l.Status == types.StressInterpolated && math.Abs(l.Stress-want) < 1e-9
		},
		gen.OneConstOf(specs...),
		gen.IntRange(0, 100),
		gen.Float64Range(0.001, 0.999),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestParseTable(t *testing.T) {
	doc := []byte(`
version: 2.0.0
edition: test
materials:
  - spec: SA-1
    stress:
      - {temperature: 100, value: 1000}
`)

	_, err := ParseTable(doc, DefaultConstraint)
	assert.Error(t, err, "2.0.0 must not satisfy the 1.x constraint")
	assert.True(t, errors.IsPermanent(err))

	table, err := ParseTable(doc, "^2.0")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", table.SemVer().String())

	_, err = ParseTable([]byte("version: 1.0.0\nedition: x\nmaterials:\n  - spec: SA-1\n    stress:\n      - {temperature: 100, value: 0}\n"), DefaultConstraint)
	assert.Error(t, err)

	_, err = LoadTable("/nonexistent/table.yaml", "")
	assert.Error(t, err)
}
