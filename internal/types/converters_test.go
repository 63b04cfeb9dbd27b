package types

import (
	"encoding/json"
	"testing"
)

func TestToTrace(t *testing.T) {
	temp := 200.0
	in := ComponentInput{
		InspectionID:      "insp-1",
		ComponentID:       "shell-1",
		ComponentType:     ComponentShell,
		InsideDiameter:    72,
		DesignPressure:    250,
		DesignTemperature: &temp,
		MaterialSpec:      "SA-516-70",
		JointEfficiency:   0.85,
		NominalThickness:  0.75,
		ActualThickness:   0.70,
		InstallDate:       NewDate(2005, 1, 1),
		InspectionDate:    NewDate(2025, 1, 1),
	}
	res := CalculationResult{
		MinimumRequiredThickness: 0.6257,
		MAWP:                     279.4,
		RemainingLife:            Unbounded,
		Status:                   StatusMonitoring,
		CodeReferences:           []string{"UG-27(c)(1)"},
		Formulas:                 []FormulaTrace{{Name: "tmin", Expression: "P*R/(S*E-0.6*P)", Value: 0.6257}},
	}

	trace := NewTraceConverter().ToTrace(in, res)

	if trace.Inputs["designTemperature"] != 200.0 {
		t.Errorf("Expected designTemperature 200, got %v", trace.Inputs["designTemperature"])
	}
	if _, ok := trace.Inputs["headType"]; ok {
		t.Error("Expected no head geometry for a shell")
	}
	if trace.Outputs["status"] != "monitoring" {
		t.Errorf("Expected status monitoring, got %v", trace.Outputs["status"])
	}
	if len(trace.CodeReferences) != 1 || trace.CodeReferences[0] != "UG-27(c)(1)" {
		t.Errorf("Unexpected code references %v", trace.CodeReferences)
	}

	// The trace must survive JSON even with an unbounded life.
	b, err := json.Marshal(trace)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	outputs := back["outputs"].(map[string]any)
	if outputs["remainingLife"] != "unbounded" {
		t.Errorf("Expected remainingLife unbounded, got %v", outputs["remainingLife"])
	}

	// Copies, not aliases
	res.CodeReferences[0] = "changed"
	if trace.CodeReferences[0] != "UG-27(c)(1)" {
		t.Error("Expected trace to own its code references")
	}
}

func TestToFailureTrace(t *testing.T) {
	in := ComponentInput{ComponentID: "head-1", ComponentType: ComponentHead, HeadType: HeadTorispherical}
	summary := ValidationSummary{
		Status: ValidationFailed,
		Results: []ValidationResult{
			{Field: "jointEfficiency", Status: ValidationFailed, CodeReference: "UW-12"},
			{Field: "designPressure", Status: ValidationWarning, CodeReference: "UG-21"},
		},
	}

	trace := NewTraceConverter().ToFailureTrace(in, summary, "validation failed")

	if trace.Outputs["validationStatus"] != "failed" {
		t.Errorf("Expected validationStatus failed, got %v", trace.Outputs["validationStatus"])
	}
	if len(trace.CodeReferences) != 1 || trace.CodeReferences[0] != "UW-12" {
		t.Errorf("Expected only failed references, got %v", trace.CodeReferences)
	}
	if trace.Inputs["headType"] != "torispherical" {
		t.Errorf("Expected head geometry in inputs, got %v", trace.Inputs["headType"])
	}
}
