package types

// ComponentType distinguishes cylindrical shells from formed or flat heads.
type ComponentType string

const (
	ComponentShell ComponentType = "shell"
	ComponentHead  ComponentType = "head"
)

// HeadType selects the UG-32/UG-34 formula family for a head component.
type HeadType string

const (
	HeadHemispherical HeadType = "hemispherical"
	HeadEllipsoidal   HeadType = "ellipsoidal"
	HeadTorispherical HeadType = "torispherical"
	HeadFlat          HeadType = "flat"
)

// Status is the fitness-for-service classification of a component.
type Status string

const (
	StatusAcceptable Status = "acceptable"
	StatusMonitoring Status = "monitoring"
	StatusCritical   Status = "critical"
)

// ValidationStatus is the outcome of a single check. The order of severity is
// failed > warning > pending > passed.
type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationPending ValidationStatus = "pending"
	ValidationWarning ValidationStatus = "warning"
	ValidationFailed  ValidationStatus = "failed"
)

// Severity ranks a status so the worst of a set can be picked.
func (s ValidationStatus) Severity() int {
	switch s {
	case ValidationFailed:
		return 3
	case ValidationWarning:
		return 2
	case ValidationPending:
		return 1
	default:
		return 0
	}
}

// StressStatus describes how an allowable stress value was obtained.
type StressStatus string

const (
	StressOK           StressStatus = "ok"
	StressInterpolated StressStatus = "ok_interpolated"
	StressExtrapolated StressStatus = "error"
	// StressOverride marks a value supplied by the caller, e.g. from the U-1A form.
	StressOverride StressStatus = "override"
)

// ComponentInput is a component reading as supplied by the importing
// collaborator. Zero values mean "not supplied"; the validation engine turns
// it into a fully populated calc.Component or reports what is missing.
type ComponentInput struct {
	InspectionID  string        `json:"inspectionId" yaml:"inspectionId" validate:"required"`
	ComponentID   string        `json:"componentId" yaml:"componentId" validate:"required"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	ComponentType ComponentType `json:"componentType" yaml:"componentType" validate:"required,oneof=shell head"`

	// Geometry, inches
	HeadType       HeadType `json:"headType,omitempty" yaml:"headType,omitempty" validate:"required_if=ComponentType head,omitempty,oneof=hemispherical ellipsoidal torispherical flat"`
	InsideDiameter float64  `json:"insideDiameter" yaml:"insideDiameter" validate:"required"`
	CrownRadius    float64  `json:"crownRadius,omitempty" yaml:"crownRadius,omitempty"`
	KnuckleRadius  float64  `json:"knuckleRadius,omitempty" yaml:"knuckleRadius,omitempty"`
	// AspectRatio is D/2h for ellipsoidal heads; 2.0 when not supplied.
	AspectRatio float64 `json:"aspectRatio,omitempty" yaml:"aspectRatio,omitempty"`
	// AttachmentFactor is the UG-34 C factor for flat heads; 0.33 when not supplied.
	AttachmentFactor float64 `json:"attachmentFactor,omitempty" yaml:"attachmentFactor,omitempty"`

	// Design, psi and °F
	DesignPressure    float64  `json:"designPressure" yaml:"designPressure" validate:"required"`
	DesignTemperature *float64 `json:"designTemperature" yaml:"designTemperature" validate:"required"`
	MaterialSpec      string   `json:"materialSpec" yaml:"materialSpec" validate:"required"`
	// AllowableStress overrides the table lookup when set.
	AllowableStress float64 `json:"allowableStress,omitempty" yaml:"allowableStress,omitempty"`
	JointEfficiency float64 `json:"jointEfficiency" yaml:"jointEfficiency" validate:"required"`

	// Thickness, inches
	NominalThickness         float64 `json:"nominalThickness" yaml:"nominalThickness" validate:"required"`
	ActualThickness          float64 `json:"actualThickness" yaml:"actualThickness" validate:"required"`
	PreviousThickness        float64 `json:"previousThickness,omitempty" yaml:"previousThickness,omitempty"`
	DesignCorrosionAllowance float64 `json:"designCorrosionAllowance,omitempty" yaml:"designCorrosionAllowance,omitempty"`

	// Liquid service
	SpecificGravity float64 `json:"specificGravity,omitempty" yaml:"specificGravity,omitempty"`
	LiquidHeight    float64 `json:"liquidHeight,omitempty" yaml:"liquidHeight,omitempty"`

	InstallDate            Date `json:"installDate" yaml:"installDate" validate:"required"`
	PreviousInspectionDate Date `json:"previousInspectionDate,omitempty" yaml:"previousInspectionDate,omitempty"`
	InspectionDate         Date `json:"inspectionDate" yaml:"inspectionDate" validate:"required"`
}

// HasPreviousReading reports whether an earlier inspection reading was supplied.
func (in ComponentInput) HasPreviousReading() bool {
	return in.PreviousThickness > 0 && !in.PreviousInspectionDate.IsZero()
}

// ValidationResult is the outcome of one input or result check.
type ValidationResult struct {
	Field               string           `json:"field"`
	Check               string           `json:"check"`
	IsValid             bool             `json:"isValid"`
	Status              ValidationStatus `json:"status"`
	Kind                string           `json:"kind,omitempty"`
	Message             string           `json:"message"`
	CodeReference       string           `json:"codeReference,omitempty"`
	SuggestedCorrection string           `json:"suggestedCorrection,omitempty"`
}

// ValidationSummary aggregates a set of checks into a single verdict.
type ValidationSummary struct {
	Results      []ValidationResult `json:"results"`
	Completeness float64            `json:"completeness"`
	PassRate     float64            `json:"passRate"`
	Score        float64            `json:"score"`
	Status       ValidationStatus   `json:"status"`
}

// Failed reports whether any check failed.
func (s ValidationSummary) Failed() bool {
	return s.Status == ValidationFailed
}
