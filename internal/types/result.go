package types

import "time"

// FormulaTrace records one evaluated formula for calculation traceability.
type FormulaTrace struct {
	Name       string  `json:"name"`
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
}

// CalculationResult is the outcome of assessing one component at one
// inspection. A recalculation produces a new value; results are never edited.
type CalculationResult struct {
	InspectionID  string        `json:"inspectionId"`
	ComponentID   string        `json:"componentId"`
	ComponentName string        `json:"componentName,omitempty"`
	ComponentType ComponentType `json:"componentType"`
	HeadType      HeadType      `json:"headType,omitempty"`

	MinimumRequiredThickness float64 `json:"minimumRequiredThickness"`
	MAWP                     float64 `json:"mawp"`
	StaticHeadPressure       float64 `json:"staticHeadPressure"`
	TotalDesignPressure      float64 `json:"totalDesignPressure"`
	// DerivedCorrosionAllowance is actual minus minimum thickness. It is an
	// output only and unrelated to the design corrosion allowance input.
	DerivedCorrosionAllowance float64 `json:"derivedCorrosionAllowance"`

	LongTermCorrosionRate  float64 `json:"longTermCorrosionRate"`
	ShortTermCorrosionRate float64 `json:"shortTermCorrosionRate"`
	GoverningCorrosionRate float64 `json:"governingCorrosionRate"`
	GoverningRateBasis     string  `json:"governingRateBasis"`
	CorrosionRateMPY       float64 `json:"corrosionRateMpy"`

	RemainingLife          Years   `json:"remainingLife"`
	RemainingLifeDisplay   string  `json:"remainingLifeDisplay"`
	NextInspectionInterval float64 `json:"nextInspectionInterval"`
	NextInspectionDate     Date    `json:"nextInspectionDate"`

	ProjectedThickness   float64 `json:"projectedThickness"`
	ProjectedMAWP        float64 `json:"projectedMawp"`
	RerateRequired       bool    `json:"rerateRequired"`
	RerateRecommendation string  `json:"rerateRecommendation,omitempty"`

	Status       Status `json:"status"`
	StatusReason string `json:"statusReason"`

	MaterialSpec         string       `json:"materialSpec"`
	AllowableStressUsed  float64      `json:"allowableStressUsed"`
	StressStatus         StressStatus `json:"stressStatus"`
	StressTableReference string       `json:"stressTableReference,omitempty"`

	CodeReferences []string       `json:"codeReferences"`
	Formulas       []FormulaTrace `json:"formulas"`
	CalculatedAt   time.Time      `json:"calculatedAt"`
}

// ComponentOutcome is the per-component entry of a vessel assessment: either
// a result or the reason the component could not be calculated.
type ComponentOutcome struct {
	ComponentID string             `json:"componentId"`
	Result      *CalculationResult `json:"result,omitempty"`
	Validation  ValidationSummary  `json:"validation"`
	Error       string             `json:"error,omitempty"`
	ErrorKind   string             `json:"errorKind,omitempty"`
}

// VesselAssessment combines the components of one inspection. The governing
// MAWP is the lowest MAWP of the components that could be calculated.
type VesselAssessment struct {
	InspectionID           string             `json:"inspectionId"`
	Components             []ComponentOutcome `json:"components"`
	GoverningMAWP          float64            `json:"governingMawp"`
	GoverningComponentID   string             `json:"governingComponentId,omitempty"`
	DesignPressure         float64            `json:"designPressure"`
	RerateRequired         bool               `json:"rerateRequired"`
	RerateRecommendation   string             `json:"rerateRecommendation,omitempty"`
	WorstStatus            Status             `json:"worstStatus,omitempty"`
	NextInspectionInterval float64            `json:"nextInspectionInterval"`
	NextInspectionDate     Date               `json:"nextInspectionDate"`
	Calculated             int                `json:"calculated"`
	Skipped                int                `json:"skipped"`
}

// StatusRank orders statuses so the worst component status can be picked.
func StatusRank(s Status) int {
	switch s {
	case StatusCritical:
		return 2
	case StatusMonitoring:
		return 1
	default:
		return 0
	}
}

// Inspection groups the component readings taken at one inspection of a
// vessel. It is the unit of vessel assessment and batch recalculation.
type Inspection struct {
	InspectionID string           `json:"inspectionId" yaml:"inspectionId"`
	Components   []ComponentInput `json:"components" yaml:"components"`
}
