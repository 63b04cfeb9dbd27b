package calc

import (
	"fmt"
	"math"

	"github.com/daimoniac/vesselfit/internal/types"
)

// Default proportions used when the drawing does not give them.
const (
	DefaultEllipsoidalRatio = 2.0  // D/2h of a standard 2:1 head
	DefaultKnuckleFraction  = 0.06 // r = 0.06·D for a standard F&D head
	DefaultFlatFactor       = 0.33 // UG-34 C factor
)

// Shape is the closed set of pressure-boundary geometries. Each variant
// carries its own dimensions and formula pair; the set is sealed so every
// switch over it can be exhaustive.
type Shape interface {
	// HeadType is empty for a cylindrical shell.
	HeadType() types.HeadType
	// MinimumThickness is t_min for total pressure p, stress s and efficiency e.
	MinimumThickness(p, s, e float64) float64
	// MAWP is the pressure thickness t can hold before static head deduction.
	MAWP(t, s, e float64) float64
	// PressureLimit is the total pressure at which the t_min denominator
	// reaches zero. The formula has no solution at or above it.
	PressureLimit(s, e float64) float64
	CodeReferences() []string
	// Expressions returns the t_min and MAWP formulas in symbolic form.
	Expressions() (tmin, mawp string)

	dimensions() []dimension
	sealed()
}

type dimension struct {
	field string
	value float64
}

// headLimit is where 2·S·E − 0.2·P vanishes.
func headLimit(s, e float64) float64 { return 2 * s * e / 0.2 }


// Cylinder is a cylindrical shell under internal pressure (UG-27).
type Cylinder struct {
	Radius float64
}

func (Cylinder) HeadType() types.HeadType { return "" }

func (c Cylinder) MinimumThickness(p, s, e float64) float64 {
	return p * c.Radius / (s*e - 0.6*p)
}

// MAWP is the lower of the circumferential and longitudinal stress limits.
func (c Cylinder) MAWP(t, s, e float64) float64 {
	return math.Min(c.HoopMAWP(t, s, e), c.LongitudinalMAWP(t, s, e))
}

// HoopMAWP is the circumferential stress limit, UG-27(c)(1).
func (c Cylinder) HoopMAWP(t, s, e float64) float64 {
	return s * e * t / (c.Radius + 0.6*t)
}

// LongitudinalMAWP is the longitudinal stress limit, UG-27(c)(2).
func (c Cylinder) LongitudinalMAWP(t, s, e float64) float64 {
	d := c.Radius - 0.4*t
	if d <= 0 {
		return math.Inf(1)
	}
	return 2 * s * e * t / d
}

func (Cylinder) PressureLimit(s, e float64) float64 { return s * e / 0.6 }

func (c Cylinder) dimensions() []dimension {
	return []dimension{{"insideDiameter", 2 * c.Radius}}
}

func (Cylinder) CodeReferences() []string { return []string{"UG-27(c)(1)", "UG-27(c)(2)"} }

func (Cylinder) Expressions() (string, string) {
	return "P·R/(S·E − 0.6·P)", "min(S·E·t/(R + 0.6·t), 2·S·E·t/(R − 0.4·t))"
}

func (Cylinder) sealed() {}

// Hemispherical is a hemispherical head (UG-32(f)).
type Hemispherical struct {
	Radius float64
}

func (Hemispherical) HeadType() types.HeadType { return types.HeadHemispherical }

func (h Hemispherical) MinimumThickness(p, s, e float64) float64 {
	return p * h.Radius / (2*s*e - 0.2*p)
}

func (h Hemispherical) MAWP(t, s, e float64) float64 {
	return 2 * s * e * t / (h.Radius + 0.2*t)
}

func (Hemispherical) PressureLimit(s, e float64) float64 { return headLimit(s, e) }

func (h Hemispherical) dimensions() []dimension {
	return []dimension{{"insideDiameter", 2 * h.Radius}}
}

func (Hemispherical) CodeReferences() []string { return []string{"UG-32(f)"} }

func (Hemispherical) Expressions() (string, string) {
	return "P·R/(2·S·E − 0.2·P)", "2·S·E·t/(R + 0.2·t)"
}

func (Hemispherical) sealed() {}

// Ellipsoidal is an ellipsoidal head. With the default 2:1 proportion K is 1
// and the formulas reduce to UG-32(d).
type Ellipsoidal struct {
	Diameter float64
	// Ratio is D/2h, the major to minor axis ratio.
	Ratio float64
}

func (Ellipsoidal) HeadType() types.HeadType { return types.HeadEllipsoidal }

// K is the Appendix 1-4(c) shape factor (2 + (D/2h)²)/6.
func (h Ellipsoidal) K() float64 {
	return (2 + h.Ratio*h.Ratio) / 6
}

func (h Ellipsoidal) MinimumThickness(p, s, e float64) float64 {
	return p * h.Diameter * h.K() / (2*s*e - 0.2*p)
}

func (h Ellipsoidal) MAWP(t, s, e float64) float64 {
	return 2 * s * e * t / (h.Diameter*h.K() + 0.2*t)
}

func (Ellipsoidal) PressureLimit(s, e float64) float64 { return headLimit(s, e) }

func (h Ellipsoidal) dimensions() []dimension {
	return []dimension{{"insideDiameter", h.Diameter}, {"aspectRatio", h.Ratio}}
}

func (h Ellipsoidal) CodeReferences() []string {
	if h.Ratio == DefaultEllipsoidalRatio {
		return []string{"UG-32(d)"}
	}
	return []string{"UG-32(d)", "Appendix 1-4(c)"}
}

func (Ellipsoidal) Expressions() (string, string) {
	return "P·D·K/(2·S·E − 0.2·P)", "2·S·E·t/(D·K + 0.2·t)"
}

func (Ellipsoidal) sealed() {}

// Torispherical is a flanged and dished head with crown radius L and
// knuckle radius r.
type Torispherical struct {
	CrownRadius   float64
	KnuckleRadius float64
}

func (Torispherical) HeadType() types.HeadType { return types.HeadTorispherical }

// M is the Appendix 1-4(d) stress intensification factor 0.25·(3 + √(L/r)).
func (h Torispherical) M() float64 {
	return 0.25 * (3 + math.Sqrt(h.CrownRadius/h.KnuckleRadius))
}

func (h Torispherical) MinimumThickness(p, s, e float64) float64 {
	return p * h.CrownRadius * h.M() / (2*s*e - 0.2*p)
}

func (h Torispherical) MAWP(t, s, e float64) float64 {
	return 2 * s * e * t / (h.CrownRadius*h.M() + 0.2*t)
}

func (Torispherical) PressureLimit(s, e float64) float64 { return headLimit(s, e) }

func (h Torispherical) dimensions() []dimension {
	return []dimension{{"crownRadius", h.CrownRadius}, {"knuckleRadius", h.KnuckleRadius}}
}

func (Torispherical) CodeReferences() []string { return []string{"UG-32(e)", "Appendix 1-4(d)"} }

func (Torispherical) Expressions() (string, string) {
	return "P·L·M/(2·S·E − 0.2·P), M = 0.25·(3 + √(L/r))", "2·S·E·t/(L·M + 0.2·t)"
}

func (Torispherical) sealed() {}

// Flat is an unstayed flat head or cover (UG-34).
type Flat struct {
	Diameter float64
	// C is the attachment factor from UG-34 Fig. UG-34.
	C float64
}

func (Flat) HeadType() types.HeadType { return types.HeadFlat }

func (h Flat) MinimumThickness(p, s, e float64) float64 {
	return h.Diameter * math.Sqrt(h.C*p/(s*e))
}

func (h Flat) MAWP(t, s, e float64) float64 {
	return s * e * t * t / (h.C * h.Diameter * h.Diameter)
}

// PressureLimit is unbounded; the flat head formula has no denominator in P.
func (Flat) PressureLimit(s, e float64) float64 { return math.Inf(1) }

func (h Flat) dimensions() []dimension {
	return []dimension{{"insideDiameter", h.Diameter}, {"attachmentFactor", h.C}}
}

func (Flat) CodeReferences() []string { return []string{"UG-34(c)(2)"} }

func (Flat) Expressions() (string, string) {
	return "d·√(C·P/(S·E))", "S·E·t²/(C·d²)"
}

func (Flat) sealed() {}

// ShapeFor selects the shape variant for an input, filling unspecified head
// proportions with their standard defaults. The names of defaulted fields
// are returned so callers can flag them.
func ShapeFor(in types.ComponentInput) (Shape, []string, error) {
	d := in.InsideDiameter
	if in.ComponentType == types.ComponentShell {
		return Cylinder{Radius: d / 2}, nil, nil
	}

	var defaulted []string
	switch in.HeadType {
	case types.HeadHemispherical:
		return Hemispherical{Radius: d / 2}, nil, nil

	case types.HeadEllipsoidal:
		ratio := in.AspectRatio
		if ratio == 0 {
			ratio = DefaultEllipsoidalRatio
			defaulted = append(defaulted, "aspectRatio")
		}
		return Ellipsoidal{Diameter: d, Ratio: ratio}, defaulted, nil

	case types.HeadTorispherical:
		crown, knuckle := in.CrownRadius, in.KnuckleRadius
		if crown == 0 {
			crown = d
			defaulted = append(defaulted, "crownRadius")
		}
		if knuckle == 0 {
			knuckle = DefaultKnuckleFraction * d
			defaulted = append(defaulted, "knuckleRadius")
		}
		return Torispherical{CrownRadius: crown, KnuckleRadius: knuckle}, defaulted, nil

	case types.HeadFlat:
		c := in.AttachmentFactor
		if c == 0 {
			c = DefaultFlatFactor
			defaulted = append(defaulted, "attachmentFactor")
		}
		return Flat{Diameter: d, C: c}, defaulted, nil
	}
	return nil, nil, fmt.Errorf("unsupported head type %q", in.HeadType)
}
