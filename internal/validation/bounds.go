package validation

import (
	"fmt"
	"math"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

// Field names used for bounds lookups and in results.
const (
	FieldDesignPressure    = "designPressure"
	FieldDesignTemperature = "designTemperature"
	FieldInsideDiameter    = "insideDiameter"
	FieldJointEfficiency   = "jointEfficiency"
	FieldThickness         = "thickness"
	FieldCorrosionAllow    = "designCorrosionAllowance"
	FieldCorrosionRate     = "corrosionRate"
	FieldSpecificGravity   = "specificGravity"
	FieldLiquidHeight      = "liquidHeight"
	FieldAllowableStress   = "allowableStress"
)

// FieldBounds is the physically possible range [Min, Max] of a value and the
// narrower range [TypicalMin, TypicalMax] seen in practice. Values outside
// the physical range fail; values outside the typical range warn.
type FieldBounds struct {
	Min           float64 `yaml:"min" json:"min"`
	TypicalMin    float64 `yaml:"typicalMin" json:"typicalMin"`
	TypicalMax    float64 `yaml:"typicalMax" json:"typicalMax"`
	Max           float64 `yaml:"max" json:"max"`
	Unit          string  `yaml:"unit" json:"unit"`
	CodeReference string  `yaml:"codeReference" json:"codeReference"`
	Suggestion    string  `yaml:"suggestion" json:"suggestion"`
}

// Bounds maps a field name to its range.
type Bounds map[string]FieldBounds

// DefaultBounds returns the built-in ranges.
func DefaultBounds() Bounds {
	return Bounds{
		FieldDesignPressure: {
			Min: 0.1, TypicalMin: 15, TypicalMax: 3000, Max: 20000,
			Unit: "psi", CodeReference: "U-1(c)(2)(h)",
			Suggestion: "verify units (psi, not bar or kPa)",
		},
		FieldDesignTemperature: {
			Min: -320, TypicalMin: -20, TypicalMax: 900, Max: 1500,
			Unit: "°F", CodeReference: "UG-20",
			Suggestion: "verify units (°F, not °C)",
		},
		FieldInsideDiameter: {
			Min: 1, TypicalMin: 6, TypicalMax: 240, Max: 600,
			Unit: "in", CodeReference: "UG-27",
			Suggestion: "verify units (inches, not mm) and that the inside diameter was entered",
		},
		FieldJointEfficiency: {
			Min: 0.45, TypicalMin: 0.6, TypicalMax: 1.0, Max: 1.0,
			CodeReference: "UW-12",
			Suggestion:    "use the Table UW-12 value for the joint type and radiography extent",
		},
		FieldThickness: {
			Min: 0.01, TypicalMin: 0.0625, TypicalMax: 4, Max: 12,
			Unit: "in", CodeReference: "UG-16(b)",
			Suggestion: "verify units (inches, not mm)",
		},
		FieldCorrosionAllow: {
			Min: 0, TypicalMin: 0, TypicalMax: 0.25, Max: 1,
			Unit: "in", CodeReference: "UG-25",
			Suggestion: "verify the design corrosion allowance on the data report",
		},
		FieldCorrosionRate: {
			Min: 0, TypicalMin: 0, TypicalMax: 0.02, Max: 0.25,
			Unit: "in/yr", CodeReference: "API 510 7.1.1.1",
			Suggestion: "verify that readings were taken at the same CML",
		},
		FieldSpecificGravity: {
			Min: 0.3, TypicalMin: 0.5, TypicalMax: 2.0, Max: 3.0,
			CodeReference: "UG-22(b)",
			Suggestion:    "verify the specific gravity of the contents",
		},
		FieldLiquidHeight: {
			Min: 0, TypicalMin: 0, TypicalMax: 100, Max: 300,
			Unit: "ft", CodeReference: "UG-22(b)",
			Suggestion: "verify units (feet, not inches)",
		},
		FieldAllowableStress: {
			Min: 5000, TypicalMin: 10000, TypicalMax: 30000, Max: 60000,
			Unit: "psi", CodeReference: "UG-23",
			Suggestion: "use the Section II Part D value at design temperature",
		},
	}
}

// Merge returns a copy of b with overrides applied per field.
func (b Bounds) Merge(overrides Bounds) Bounds {
	out := make(Bounds, len(b)+len(overrides))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Check classifies value against the bounds of kind, reporting it under field.
func (b Bounds) Check(kind, field string, value float64) types.ValidationResult {
	fb, ok := b[kind]
	if !ok {
		return types.ValidationResult{
			Field:   field,
			Check:   "range",
			IsValid: true,
			Status:  types.ValidationPending,
			Message: fmt.Sprintf("no bounds configured for %s", kind),
		}
	}

	res := types.ValidationResult{
		Field:         field,
		Check:         "range",
		CodeReference: fb.CodeReference,
	}
	switch {
	case value < fb.Min || value > fb.Max || math.IsNaN(value):
		res.Status = types.ValidationFailed
		res.Kind = string(errors.KindOutOfPhysicalRange)
		res.Message = fmt.Sprintf("%g %s is outside the physical range %g to %g", value, fb.Unit, fb.Min, fb.Max)
		res.SuggestedCorrection = fb.Suggestion
	case value < fb.TypicalMin || value > fb.TypicalMax:
		res.Status = types.ValidationWarning
		res.IsValid = true
		res.Kind = string(errors.KindOutOfPhysicalRange)
		res.Message = fmt.Sprintf("%g %s is outside the typical range %g to %g", value, fb.Unit, fb.TypicalMin, fb.TypicalMax)
		res.SuggestedCorrection = fb.Suggestion
	default:
		res.Status = types.ValidationPassed
		res.IsValid = true
		res.Message = fmt.Sprintf("%g %s is within the typical range", value, fb.Unit)
	}
	return res
}
