package calc

import (
	"fmt"
	"math"

	"github.com/daimoniac/vesselfit/internal/types"
)

// PsiPerFootWater is the pressure of one foot of water column.
const PsiPerFootWater = 0.433

const codeRefStaticHead = "UG-22(b)"

// Result is the thickness and pressure part of an assessment.
type Result struct {
	MinimumThickness float64
	// MAWP is net of static head and never negative.
	MAWP               float64
	StaticHeadPressure float64
	TotalPressure      float64
	// NetThickness is the actual thickness less the design corrosion allowance.
	NetThickness float64
	// DerivedCorrosionAllowance is actual − t_min; an output only.
	DerivedCorrosionAllowance float64
	Formulas                  []types.FormulaTrace
	CodeReferences            []string
}

// Calculator applies the shape formulas to a component. It holds no state.
type Calculator struct{}

// NewCalculator returns a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// StaticHead returns the liquid column pressure in psi for a specific
// gravity and a height in feet.
func StaticHead(specificGravity, heightFt float64) float64 {
	return specificGravity * heightFt * PsiPerFootWater
}

// Calculate computes minimum thickness and MAWP for c.
func (calc *Calculator) Calculate(c Component) Result {
	s := c.spec
	static := StaticHead(s.SpecificGravity, s.LiquidHeight)
	total := s.DesignPressure + static

	res := Result{
		StaticHeadPressure: static,
		TotalPressure:      total,
		MinimumThickness:   s.Shape.MinimumThickness(total, s.AllowableStress, s.JointEfficiency),
		NetThickness:       s.ActualThickness - s.DesignCorrosionAllowance,
	}
	res.DerivedCorrosionAllowance = s.ActualThickness - res.MinimumThickness
	res.MAWP = calc.MAWPAt(c, s.ActualThickness)

	tminExpr, mawpExpr := s.Shape.Expressions()
	res.Formulas = []types.FormulaTrace{
		{
			Name:       "staticHeadPressure",
			Expression: fmt.Sprintf("SG·h·0.433 = %.3f·%.2f·0.433", s.SpecificGravity, s.LiquidHeight),
			Value:      static,
			Unit:       "psi",
		},
		{
			Name:       "totalDesignPressure",
			Expression: fmt.Sprintf("P + P_static = %.2f + %.2f", s.DesignPressure, static),
			Value:      total,
			Unit:       "psi",
		},
		{
			Name:       "minimumRequiredThickness",
			Expression: fmt.Sprintf("%s with P=%.2f, S=%.0f, E=%.2f%s", tminExpr, total, s.AllowableStress, s.JointEfficiency, dimensions(s.Shape)),
			Value:      res.MinimumThickness,
			Unit:       "in",
		},
		{
			Name:       "mawp",
			Expression: fmt.Sprintf("%s − P_static with t=%.4f (actual %.4f − CA %.4f)", mawpExpr, res.NetThickness, s.ActualThickness, s.DesignCorrosionAllowance),
			Value:      res.MAWP,
			Unit:       "psi",
		},
		{
			Name:       "derivedCorrosionAllowance",
			Expression: fmt.Sprintf("t_actual − t_min = %.4f − %.4f", s.ActualThickness, res.MinimumThickness),
			Value:      res.DerivedCorrosionAllowance,
			Unit:       "in",
		},
	}

	res.CodeReferences = append(res.CodeReferences, s.Shape.CodeReferences()...)
	if static > 0 {
		res.CodeReferences = append(res.CodeReferences, codeRefStaticHead)
	}
	return res
}

// MAWPAt returns the reported MAWP of c if its actual thickness were
// thickness: the shape formula on the net thickness less static head,
// floored at zero.
func (calc *Calculator) MAWPAt(c Component, thickness float64) float64 {
	s := c.spec
	net := thickness - s.DesignCorrosionAllowance
	if net <= 0 {
		return 0
	}
	raw := s.Shape.MAWP(net, s.AllowableStress, s.JointEfficiency)
	mawp := raw - StaticHead(s.SpecificGravity, s.LiquidHeight)
	if mawp < 0 || math.IsNaN(mawp) {
		return 0
	}
	return mawp
}

func dimensions(shape Shape) string {
	switch sh := shape.(type) {
	case Cylinder:
		return fmt.Sprintf(", R=%.3f", sh.Radius)
	case Hemispherical:
		return fmt.Sprintf(", R=%.3f", sh.Radius)
	case Ellipsoidal:
		return fmt.Sprintf(", D=%.3f, K=%.4f", sh.Diameter, sh.K())
	case Torispherical:
		return fmt.Sprintf(", L=%.3f, r=%.3f, M=%.4f", sh.CrownRadius, sh.KnuckleRadius, sh.M())
	case Flat:
		return fmt.Sprintf(", d=%.3f, C=%.2f", sh.Diameter, sh.C)
	}
	return ""
}
