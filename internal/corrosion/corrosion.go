// Package corrosion derives corrosion rates, remaining life and inspection
// intervals from successive thickness readings per API 510.
package corrosion

import (
	"fmt"
	"math"

	"github.com/daimoniac/vesselfit/internal/calc"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

const (
	// MaxInspectionInterval is the API 510 ceiling for internal inspections, years.
	MaxInspectionInterval = 10.0

	BasisLongTerm  = "long_term"
	BasisShortTerm = "short_term"

	codeRefRate     = "API 510 7.1.1.1"
	codeRefLife     = "API 510 7.1.1"
	codeRefInterval = "API 510 6.4"
)

// Rate returns the metal loss rate in inches per year between two readings
// taken years apart. Growth is a data error, never a negative rate.
func Rate(tPrev, tAct, years float64) (float64, error) {
	if !(years > 0) {
		return 0, errors.NewCalcError(errors.KindOutOfPhysicalRange, "interval", codeRefRate,
			"interval must be positive, got %g years", years)
	}
	rate := (tPrev - tAct) / years
	if rate < 0 {
		return 0, errors.NewCalcError(errors.KindNegativeCorrosionRate, "actualThickness", codeRefRate,
			"actual %.4f in exceeds earlier %.4f in", tAct, tPrev).
			WithSuggestion("check whether the previous and actual readings were swapped")
	}
	return math.Max(0, rate), nil
}

// RemainingLife is the derived corrosion allowance consumed at rate. It is
// unbounded exactly when nothing is corroding, even below t_min, and zero
// once a corroding component reaches t_min.
func RemainingLife(derivedAllowance, rate float64) types.Years {
	if rate == 0 {
		return types.Unbounded
	}
	if derivedAllowance <= 0 {
		return 0
	}
	return types.Years(derivedAllowance / rate)
}

// NextInspectionInterval applies the half-life rule with the 10 year cap.
func NextInspectionInterval(life types.Years) float64 {
	return math.Min(float64(life)/2, MaxInspectionInterval)
}

// Analysis is the corrosion part of an assessment.
type Analysis struct {
	LongTermRate           float64
	ShortTermRate          float64
	GoverningRate          float64
	Basis                  string
	MPY                    float64
	RemainingLife          types.Years
	NextInspectionInterval float64
	NextInspectionDate     types.Date
	// ProjectedThickness is the expected reading at the next inspection.
	ProjectedThickness float64
	Formulas           []types.FormulaTrace
	CodeReferences     []string
}

// Analyzer applies the dual-rate model to a component.
type Analyzer struct {
	tolerance float64
}

// NewAnalyzer returns an Analyzer. Apparent growth up to tolerance inches is
// treated as measurement scatter and yields a zero rate.
func NewAnalyzer(tolerance float64) *Analyzer {
	return &Analyzer{tolerance: tolerance}
}

// Analyze computes long-term, short-term and governing rates for c, then the
// remaining life against derivedAllowance (actual − t_min).
func (a *Analyzer) Analyze(c calc.Component, derivedAllowance float64) (Analysis, error) {
	s := c.Spec()

	ltYears := s.InstallDate.YearsUntil(s.InspectionDate)
	lt, err := a.rate("nominalThickness", s.NominalThickness, s.ActualThickness, ltYears)
	if err != nil {
		return Analysis{}, err
	}
	stYears := s.PreviousInspectionDate.YearsUntil(s.InspectionDate)
	st, err := a.rate("previousThickness", s.PreviousThickness, s.ActualThickness, stYears)
	if err != nil {
		return Analysis{}, err
	}

	an := Analysis{
		LongTermRate:  lt,
		ShortTermRate: st,
		GoverningRate: lt,
		Basis:         BasisLongTerm,
	}
	if st > lt {
		an.GoverningRate = st
		an.Basis = BasisShortTerm
	}
	an.MPY = an.GoverningRate * 1000
	an.RemainingLife = RemainingLife(derivedAllowance, an.GoverningRate)
	an.NextInspectionInterval = NextInspectionInterval(an.RemainingLife)
	an.NextInspectionDate = s.InspectionDate.AddYears(an.NextInspectionInterval)
	an.ProjectedThickness = s.ActualThickness - an.GoverningRate*an.NextInspectionInterval

	an.Formulas = []types.FormulaTrace{
		{
			Name:       "longTermCorrosionRate",
			Expression: fmt.Sprintf("(t_nominal − t_actual)/years = (%.4f − %.4f)/%.2f", s.NominalThickness, s.ActualThickness, ltYears),
			Value:      lt,
			Unit:       "in/yr",
		},
		{
			Name:       "shortTermCorrosionRate",
			Expression: fmt.Sprintf("(t_previous − t_actual)/years = (%.4f − %.4f)/%.2f", s.PreviousThickness, s.ActualThickness, stYears),
			Value:      st,
			Unit:       "in/yr",
		},
		{
			Name:       "governingCorrosionRate",
			Expression: "max(LT, ST)",
			Value:      an.GoverningRate,
			Unit:       "in/yr",
		},
		{
			Name:       "remainingLife",
			Expression: fmt.Sprintf("(t_actual − t_min)/CR = %.4f/%.5f", derivedAllowance, an.GoverningRate),
			Value:      finite(an.RemainingLife),
			Unit:       "years",
		},
		{
			Name:       "nextInspectionInterval",
			Expression: "min(RL/2, 10)",
			Value:      an.NextInspectionInterval,
			Unit:       "years",
		},
	}
	an.CodeReferences = []string{codeRefRate, codeRefLife, codeRefInterval}
	return an, nil
}

func (a *Analyzer) rate(field string, earlier, actual, years float64) (float64, error) {
	if actual > earlier && actual-earlier <= a.tolerance {
		actual = earlier
	}
	r, err := Rate(earlier, actual, years)
	if err != nil {
		var calcErr *errors.CalcError
		if errors.As(err, &calcErr) && calcErr.Kind == errors.KindNegativeCorrosionRate {
			calcErr.Field = field
		}
		return 0, err
	}
	return r, nil
}

// finite maps an unbounded life to the largest float so traces stay JSON safe.
func finite(y types.Years) float64 {
	if y.IsUnbounded() {
		return math.MaxFloat64
	}
	return float64(y)
}
