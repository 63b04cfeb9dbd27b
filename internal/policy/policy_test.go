package policy

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/daimoniac/vesselfit/internal/types"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(slog.Default(), StatusPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestClassifier_DefaultRules(t *testing.T) {
	c := newDefaultClassifier(t)

	tests := []struct {
		name   string
		actual float64
		tmin   float64
		ca     float64
		want   types.Status
	}{
		{"below minimum", 0.60, 0.6257, 0.125, types.StatusCritical},
		{"exactly at minimum with no allowance", 0.6257, 0.6257, 0, types.StatusAcceptable},
		{"inside half allowance", 0.65, 0.6257, 0.125, types.StatusMonitoring},
		{"just above half allowance", 0.689, 0.6257, 0.125, types.StatusAcceptable},
		{"well above", 0.75, 0.6257, 0.125, types.StatusAcceptable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Classify(Input{
				ComponentID:   "c1",
				ComponentType: types.ComponentShell,
				Actual:        tt.actual,
				TMin:          tt.tmin,
				DesignCA:      tt.ca,
				RemainingLife: types.Unbounded,
				CodeReference: "UG-27(c)(1)",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, d.Status, d.Reason)
			}
			if d.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestClassifier_CriticalReasonCitesClause(t *testing.T) {
	c := newDefaultClassifier(t)
	d, err := c.Classify(Input{Actual: 0.5, TMin: 0.6, CodeReference: "UG-32(e)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.Reason, "UG-32(e)") {
		t.Errorf("expected reason to cite the clause, got %q", d.Reason)
	}
}

func TestClassifier_CustomRules(t *testing.T) {
	c, err := NewClassifier(nil, StatusPolicy{
		Acceptable: `actual >= tMin + designCA && remainingLife > 4.0`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Policy().Critical != DefaultCriticalExpression {
		t.Errorf("expected default critical rule, got %q", c.Policy().Critical)
	}

	d, err := c.Classify(Input{Actual: 0.70, TMin: 0.6257, DesignCA: 0.125, RemainingLife: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != types.StatusMonitoring {
		t.Errorf("expected monitoring under the stricter rule, got %s", d.Status)
	}
	if !strings.Contains(d.Reason, "rules:") {
		t.Errorf("expected custom rules in reason, got %q", d.Reason)
	}

	d, err = c.Classify(Input{Actual: 0.80, TMin: 0.6257, DesignCA: 0.125, RemainingLife: types.Unbounded})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != types.StatusAcceptable {
		t.Errorf("expected acceptable with unbounded life, got %s", d.Status)
	}
}

func TestClassifier_InvalidRules(t *testing.T) {
	tests := []struct {
		name   string
		policy StatusPolicy
	}{
		{"syntax error", StatusPolicy{Critical: "actual <"}},
		{"non boolean", StatusPolicy{Acceptable: "actual - tMin"}},
		{"unknown variable", StatusPolicy{Critical: "thickness < tMin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier(nil, tt.policy); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

// TestClassifier_StatusProperty checks the default rules against their
// definition for arbitrary thicknesses and allowances.
func TestClassifier_StatusProperty(t *testing.T) {
	c := newDefaultClassifier(t)
	properties := gopter.NewProperties(nil)

	properties.Property("status follows the thickness margin rules", prop.ForAll(
		func(actual, tmin, ca float64) bool {
			d, err := c.Classify(Input{Actual: actual, TMin: tmin, DesignCA: ca})
			if err != nil {
				return false
			}
			switch {
			case actual < tmin:
				return d.Status == types.StatusCritical
			case actual >= tmin+0.5*ca:
				return d.Status == types.StatusAcceptable
			default:
				return d.Status == types.StatusMonitoring
			}
		},
		gen.Float64Range(0.05, 2),
		gen.Float64Range(0.05, 2),
		gen.Float64Range(0, 0.5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
