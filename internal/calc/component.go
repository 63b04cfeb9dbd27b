package calc

import (
	"math"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

// ComponentSpec holds every value a calculation needs, already resolved:
// the shape is selected, the allowable stress looked up and the previous
// reading defaulted.
type ComponentSpec struct {
	InspectionID string
	ComponentID  string
	Name         string
	Type         types.ComponentType
	Shape        Shape

	DesignPressure    float64
	DesignTemperature float64

	Material        string
	AllowableStress float64
	StressStatus    types.StressStatus
	StressReference string
	JointEfficiency float64

	NominalThickness         float64
	ActualThickness          float64
	PreviousThickness        float64
	DesignCorrosionAllowance float64

	SpecificGravity float64
	LiquidHeight    float64

	InstallDate            types.Date
	PreviousInspectionDate types.Date
	InspectionDate         types.Date
}

// Component is a validated, immutable calculation input. The only way to
// obtain one is NewComponent, so a Component is always fully populated.
type Component struct {
	spec ComponentSpec
}

// NewComponent checks the physical invariants of spec and freezes it.
func NewComponent(spec ComponentSpec) (Component, error) {
	if spec.Shape == nil {
		return Component{}, errors.NewCalcError(errors.KindDataMissing, "geometry", "UG-16", "no shape selected")
	}
	if spec.JointEfficiency < 0.45 || spec.JointEfficiency > 1.0 {
		return Component{}, errors.NewCalcError(errors.KindOutOfPhysicalRange, "jointEfficiency", "UW-12",
			"%.2f outside [0.45, 1.00]", spec.JointEfficiency)
	}
	positive := []struct {
		field string
		value float64
	}{
		{"designPressure", spec.DesignPressure},
		{"allowableStress", spec.AllowableStress},
		{"nominalThickness", spec.NominalThickness},
		{"actualThickness", spec.ActualThickness},
		{"previousThickness", spec.PreviousThickness},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return Component{}, errors.NewCalcError(errors.KindOutOfPhysicalRange, p.field, "UG-16",
				"must be positive, got %g", p.value)
		}
	}
	if spec.DesignCorrosionAllowance < 0 || spec.SpecificGravity < 0 || spec.LiquidHeight < 0 {
		return Component{}, errors.NewCalcError(errors.KindOutOfPhysicalRange, "liquidService", "UG-25",
			"corrosion allowance and liquid service values must not be negative")
	}
	for _, d := range spec.Shape.dimensions() {
		if !(d.value > 0) || math.IsInf(d.value, 0) {
			return Component{}, errors.NewCalcError(errors.KindOutOfPhysicalRange, d.field, spec.Shape.CodeReferences()[0],
				"must be positive, got %g", d.value)
		}
	}

	total := spec.DesignPressure + StaticHead(spec.SpecificGravity, spec.LiquidHeight)
	if limit := spec.Shape.PressureLimit(spec.AllowableStress, spec.JointEfficiency); total >= limit {
		return Component{}, errors.NewCalcError(errors.KindOutOfPhysicalRange, "designPressure", spec.Shape.CodeReferences()[0],
			"total pressure %.1f psi is at or above %.1f psi, where the minimum thickness formula has no solution for S = %.0f psi and E = %.2f",
			total, limit, spec.AllowableStress, spec.JointEfficiency).
			WithSuggestion("check the design pressure against the joint efficiency")
	}
	if tmin := spec.Shape.MinimumThickness(total, spec.AllowableStress, spec.JointEfficiency); !(tmin > 0) || math.IsInf(tmin, 0) {
		return Component{}, errors.NewCalcError(errors.KindOutOfPhysicalRange, "minimumThickness", spec.Shape.CodeReferences()[0],
			"minimum thickness evaluates to %g", tmin)
	}

	if spec.InstallDate.IsZero() || spec.PreviousInspectionDate.IsZero() || spec.InspectionDate.IsZero() {
		return Component{}, errors.NewCalcError(errors.KindDataMissing, "dates", "API 510 7.1.1",
			"install, previous and current inspection dates are required")
	}
	if !spec.InstallDate.Before(spec.InspectionDate.Time) {
		return Component{}, errors.NewCalcError(errors.KindCrossFieldInconsistency, "installDate", "API 510 7.1.1",
			"install date %s is not before inspection date %s", spec.InstallDate, spec.InspectionDate)
	}
	return Component{spec: spec}, nil
}

// Spec returns a copy of the component's values.
func (c Component) Spec() ComponentSpec {
	return c.spec
}

// ID returns the component identifier.
func (c Component) ID() string {
	return c.spec.ComponentID
}
