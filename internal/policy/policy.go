package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/vesselfit/internal/types"
)

const (
	// DefaultCriticalExpression flags a component below minimum thickness.
	DefaultCriticalExpression = `actual < tMin`
	// DefaultAcceptableExpression requires half the design corrosion
	// allowance to remain above minimum thickness.
	DefaultAcceptableExpression = `actual >= tMin + 0.5 * designCA`
)

// StatusClassifier assigns a fitness-for-service status to a component.
type StatusClassifier interface {
	Classify(in Input) (*Decision, error)
}

// StatusPolicy holds the CEL expressions used to classify a component.
// Both must evaluate to a boolean. Critical is checked first; a component
// that is neither critical nor acceptable is under monitoring.
//
// Available variables (all double unless noted):
//   - actual: measured thickness, in
//   - tMin: minimum required thickness, in
//   - designCA: design corrosion allowance, in
//   - nominal: nominal thickness, in
//   - remainingLife: years, +Inf when not corroding
//   - mawp: maximum allowable working pressure, psi
//   - designPressure: psi
//   - componentType: string, "shell" or "head"
type StatusPolicy struct {
	Critical   string `yaml:"critical" json:"critical"`
	Acceptable string `yaml:"acceptable" json:"acceptable"`
}

// Input carries the values a status rule can refer to.
type Input struct {
	ComponentID    string
	ComponentType  types.ComponentType
	Actual         float64
	TMin           float64
	DesignCA       float64
	Nominal        float64
	RemainingLife  types.Years
	MAWP           float64
	DesignPressure float64
	// CodeReference is the thickness clause the component was sized under.
	CodeReference string
}

// Decision is the outcome of classification.
type Decision struct {
	Status types.Status
	Reason string
	// Margin is actual − tMin.
	Margin float64
}

// Classifier implements StatusClassifier using CEL expressions
type Classifier struct {
	logger     *slog.Logger
	policy     StatusPolicy
	critical   cel.Program
	acceptable cel.Program
	custom     bool
}

// NewClassifier compiles the status policy. Empty expressions fall back to
// the defaults.
func NewClassifier(logger *slog.Logger, policy StatusPolicy) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	custom := policy.Critical != "" || policy.Acceptable != ""
	if policy.Critical == "" {
		policy.Critical = DefaultCriticalExpression
	}
	if policy.Acceptable == "" {
		policy.Acceptable = DefaultAcceptableExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("actual", cel.DoubleType),
		cel.Variable("tMin", cel.DoubleType),
		cel.Variable("designCA", cel.DoubleType),
		cel.Variable("nominal", cel.DoubleType),
		cel.Variable("remainingLife", cel.DoubleType),
		cel.Variable("mawp", cel.DoubleType),
		cel.Variable("designPressure", cel.DoubleType),
		cel.Variable("componentType", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	critical, err := compile(env, policy.Critical)
	if err != nil {
		return nil, fmt.Errorf("critical rule: %w", err)
	}
	acceptable, err := compile(env, policy.Acceptable)
	if err != nil {
		return nil, fmt.Errorf("acceptable rule: %w", err)
	}

	return &Classifier{
		logger:     logger,
		policy:     policy,
		critical:   critical,
		acceptable: acceptable,
		custom:     custom,
	}, nil
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression %q must return a boolean, got %v", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

// Policy returns the expressions in effect.
func (c *Classifier) Policy() StatusPolicy {
	return c.policy
}

// Classify evaluates the status rules for in.
func (c *Classifier) Classify(in Input) (*Decision, error) {
	vars := map[string]any{
		"actual":         in.Actual,
		"tMin":           in.TMin,
		"designCA":       in.DesignCA,
		"nominal":        in.Nominal,
		"remainingLife":  float64(in.RemainingLife),
		"mawp":           in.MAWP,
		"designPressure": in.DesignPressure,
		"componentType":  string(in.ComponentType),
	}

	isCritical, err := eval(c.critical, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate critical rule: %w", err)
	}

	decision := &Decision{Margin: in.Actual - in.TMin}
	switch {
	case isCritical:
		decision.Status = types.StatusCritical
	default:
		isAcceptable, err := eval(c.acceptable, vars)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate acceptable rule: %w", err)
		}
		if isAcceptable {
			decision.Status = types.StatusAcceptable
		} else {
			decision.Status = types.StatusMonitoring
		}
	}
	decision.Reason = c.reason(in, decision)

	level := slog.LevelDebug
	if decision.Status == types.StatusCritical {
		level = slog.LevelWarn
	}
	c.logger.Log(context.Background(), level, "component classified",
		"component_id", in.ComponentID,
		"status", decision.Status,
		"actual", in.Actual,
		"t_min", in.TMin,
		"margin", decision.Margin)

	return decision, nil
}

func eval(program cel.Program, vars map[string]any) (bool, error) {
	out, _, err := program.Eval(vars)
	if err != nil {
		return false, err
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean: %v", out.Value())
	}
	return result, nil
}

func (c *Classifier) reason(in Input, d *Decision) string {
	half := 0.5 * in.DesignCA
	var reason string
	switch d.Status {
	case types.StatusCritical:
		reason = fmt.Sprintf("actual thickness %.4f in is %.4f in below the minimum required %.4f in (%s); repair, rerate or retire per API 510",
			in.Actual, -d.Margin, in.TMin, in.CodeReference)
	case types.StatusAcceptable:
		reason = fmt.Sprintf("margin of %.4f in above the minimum required %.4f in covers half the design corrosion allowance (%.4f in)",
			d.Margin, in.TMin, half)
	default:
		reason = fmt.Sprintf("margin of %.4f in above the minimum required %.4f in is less than half the design corrosion allowance (%.4f in); increase monitoring",
			d.Margin, in.TMin, half)
	}
	if c.custom {
		reason += fmt.Sprintf(" [rules: critical=%q acceptable=%q]", c.policy.Critical, c.policy.Acceptable)
	}
	return reason
}
