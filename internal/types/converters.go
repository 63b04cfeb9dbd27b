package types

// CalculationTrace is the audit payload that makes a calculation reproducible:
// what went in, what came out, and which formulas and clauses connected them.
type CalculationTrace struct {
	Inputs         map[string]any `json:"inputs"`
	Outputs        map[string]any `json:"outputs"`
	Formulas       []FormulaTrace `json:"formulas"`
	CodeReferences []string       `json:"codeReferences"`
}

// TraceConverter turns calculation values into audit payloads.
type TraceConverter struct{}

// NewTraceConverter creates a new TraceConverter instance.
func NewTraceConverter() *TraceConverter {
	return &TraceConverter{}
}

// ToTrace converts an input and its result into a CalculationTrace.
func (c *TraceConverter) ToTrace(in ComponentInput, res CalculationResult) CalculationTrace {
	inputs := map[string]any{
		"componentType":            string(in.ComponentType),
		"insideDiameter":           in.InsideDiameter,
		"designPressure":           in.DesignPressure,
		"materialSpec":             in.MaterialSpec,
		"jointEfficiency":          in.JointEfficiency,
		"nominalThickness":         in.NominalThickness,
		"actualThickness":          in.ActualThickness,
		"previousThickness":        in.PreviousThickness,
		"designCorrosionAllowance": in.DesignCorrosionAllowance,
		"specificGravity":          in.SpecificGravity,
		"liquidHeight":             in.LiquidHeight,
		"installDate":              in.InstallDate.String(),
		"previousInspectionDate":   in.PreviousInspectionDate.String(),
		"inspectionDate":           in.InspectionDate.String(),
	}
	if in.DesignTemperature != nil {
		inputs["designTemperature"] = *in.DesignTemperature
	}
	if in.ComponentType == ComponentHead {
		inputs["headType"] = string(in.HeadType)
		inputs["crownRadius"] = in.CrownRadius
		inputs["knuckleRadius"] = in.KnuckleRadius
		inputs["aspectRatio"] = in.AspectRatio
		inputs["attachmentFactor"] = in.AttachmentFactor
	}
	if in.AllowableStress > 0 {
		inputs["allowableStressOverride"] = in.AllowableStress
	}

	outputs := map[string]any{
		"minimumRequiredThickness":  res.MinimumRequiredThickness,
		"mawp":                      res.MAWP,
		"staticHeadPressure":        res.StaticHeadPressure,
		"totalDesignPressure":       res.TotalDesignPressure,
		"derivedCorrosionAllowance": res.DerivedCorrosionAllowance,
		"longTermCorrosionRate":     res.LongTermCorrosionRate,
		"shortTermCorrosionRate":    res.ShortTermCorrosionRate,
		"governingCorrosionRate":    res.GoverningCorrosionRate,
		"remainingLife":             res.RemainingLife,
		"nextInspectionInterval":    res.NextInspectionInterval,
		"nextInspectionDate":        res.NextInspectionDate.String(),
		"status":                    string(res.Status),
		"statusReason":              res.StatusReason,
		"allowableStressUsed":       res.AllowableStressUsed,
		"stressStatus":              string(res.StressStatus),
		"materialSpec":              res.MaterialSpec,
		"rerateRequired":            res.RerateRequired,
	}

	refs := make([]string, len(res.CodeReferences))
	copy(refs, res.CodeReferences)
	formulas := make([]FormulaTrace, len(res.Formulas))
	copy(formulas, res.Formulas)

	return CalculationTrace{
		Inputs:         inputs,
		Outputs:        outputs,
		Formulas:       formulas,
		CodeReferences: refs,
	}
}

// ToFailureTrace records an input that could not be calculated.
func (c *TraceConverter) ToFailureTrace(in ComponentInput, summary ValidationSummary, cause string) CalculationTrace {
	trace := c.ToTrace(in, CalculationResult{})
	trace.Outputs = map[string]any{
		"validationStatus": string(summary.Status),
		"validationScore":  summary.Score,
		"error":            cause,
	}
	for _, r := range summary.Results {
		if r.Status == ValidationFailed && r.CodeReference != "" {
			trace.CodeReferences = append(trace.CodeReferences, r.CodeReference)
		}
	}
	return trace
}
