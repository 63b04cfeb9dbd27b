// Package assessment runs the fitness-for-service workflow: it validates a
// component reading, calculates thickness and pressure limits, analyzes
// corrosion, classifies the component and records the calculation in the
// audit trail.
package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/daimoniac/vesselfit/internal/audit"
	"github.com/daimoniac/vesselfit/internal/calc"
	"github.com/daimoniac/vesselfit/internal/corrosion"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/policy"
	"github.com/daimoniac/vesselfit/internal/types"
	"github.com/daimoniac/vesselfit/internal/validation"
)

// SystemUser is recorded as the actor when a calculation has no caller
// identity, e.g. a recalculation picked up from the drop directory.
const SystemUser = "system"

// Actor identifies who requested a calculation.
type Actor struct {
	UserID   string
	UserName string
}

func (a Actor) orSystem() Actor {
	if a.UserID == "" {
		return Actor{UserID: SystemUser, UserName: a.UserName}
	}
	return a
}

// ValidationError reports a component whose input failed validation. The
// summary lists every failed check.
type ValidationError struct {
	ComponentID string
	Summary     types.ValidationSummary
}

func (e *ValidationError) Error() string {
	failed := 0
	for _, r := range e.Summary.Results {
		if r.Status == types.ValidationFailed {
			failed++
		}
	}
	return fmt.Sprintf("component %s failed validation: %d failed checks, score %.1f", e.ComponentID, failed, e.Summary.Score)
}

// Is makes a ValidationError match errors.ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

// Option configures a Service.
type Option func(*Service)

// WithAudit records every calculation in the audit trail.
func WithAudit(a *audit.Service) Option {
	return func(s *Service) { s.audit = a }
}

// WithClock overrides the time source used for calculatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds the number of inspections assessed in parallel by
// AssessBatch.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Service orchestrates component and vessel assessments.
type Service struct {
	logger      *slog.Logger
	engine      *validation.Engine
	calculator  *calc.Calculator
	analyzer    *corrosion.Analyzer
	classifier  policy.StatusClassifier
	audit       *audit.Service
	converter   *types.TraceConverter
	now         func() time.Time
	concurrency int
}

// NewService creates an assessment service. The corrosion analyzer uses the
// engine's thickness tolerance, so validation and rate calculation agree on
// what counts as measurement scatter.
func NewService(logger *slog.Logger, engine *validation.Engine, classifier policy.StatusClassifier, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:      logger,
		engine:      engine,
		calculator:  calc.NewCalculator(),
		analyzer:    corrosion.NewAnalyzer(engine.Tolerance()),
		classifier:  classifier,
		converter:   types.NewTraceConverter(),
		now:         time.Now,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the validation engine.
func (s *Service) Engine() *validation.Engine {
	return s.engine
}

// CalculateComponent assesses one component reading.
//
// A reading that fails validation returns a *ValidationError carrying the
// summary. An unknown material returns the MaterialNotFound CalcError with
// suggestions. Both outcomes are still recorded in the audit trail. An audit
// failure is logged and counted but does not fail the calculation.
func (s *Service) CalculateComponent(ctx context.Context, in types.ComponentInput, actor Actor) (*types.CalculationResult, types.ValidationSummary, error) {
	start := time.Now()
	metrics := observability.GetMetrics()
	actor = actor.orSystem()

	logger := s.logger.With("inspection_id", in.InspectionID, "component_id", in.ComponentID)

	// Phase 1: Validation and component construction
	component, summary, err := s.engine.Prepare(in)
	metrics.ValidationSummaries.WithLabelValues(string(summary.Status)).Inc()
	if err != nil {
		s.recordRejection(ctx, logger, in, summary, err, actor)
		return nil, summary, err
	}
	if component == nil {
		verr := &ValidationError{ComponentID: in.ComponentID, Summary: summary}
		s.recordRejection(ctx, logger, in, summary, verr, actor)
		return nil, summary, verr
	}
	spec := component.Spec()
	metrics.StressLookups.WithLabelValues(string(spec.StressStatus)).Inc()

	// Phase 2: Thickness and pressure
	thickness := s.calculator.Calculate(*component)

	// Phase 3: Corrosion
	analysis, err := s.analyzer.Analyze(*component, thickness.DerivedCorrosionAllowance)
	if err != nil {
		s.recordRejection(ctx, logger, in, summary, err, actor)
		return nil, summary, fmt.Errorf("corrosion analysis: %w", err)
	}

	// Phase 4: Status
	codeRef := ""
	if refs := spec.Shape.CodeReferences(); len(refs) > 0 {
		codeRef = refs[0]
	}
	decision, err := s.classifier.Classify(policy.Input{
		ComponentID:    spec.ComponentID,
		ComponentType:  spec.Type,
		Actual:         spec.ActualThickness,
		TMin:           thickness.MinimumThickness,
		DesignCA:       spec.DesignCorrosionAllowance,
		Nominal:        spec.NominalThickness,
		RemainingLife:  analysis.RemainingLife,
		MAWP:           thickness.MAWP,
		DesignPressure: spec.DesignPressure,
		CodeReference:  codeRef,
	})
	if err != nil {
		cause := errors.NewPermanentf("status classification: %w", err)
		s.recordRejection(ctx, logger, in, summary, cause, actor)
		return nil, summary, cause
	}

	// Phase 5: Result assembly and post-calculation checks
	res := s.assemble(*component, thickness, analysis, decision)
	post := s.engine.ValidateResult(*res, spec.DesignPressure)
	summary = validation.Summarize(append(append([]types.ValidationResult{}, summary.Results...), post...), summary.Completeness)

	// Phase 6: Audit
	s.recordCalculation(ctx, logger, in, *res, summary, actor)

	metrics.CalculationsTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.CalculationDuration.Observe(time.Since(start).Seconds())

	level := slog.LevelInfo
	if res.Status == types.StatusCritical {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "component assessed",
		"status", res.Status,
		"t_min", res.MinimumRequiredThickness,
		"mawp", res.MAWP,
		"remaining_life", res.RemainingLifeDisplay,
		"validation_status", summary.Status,
		"duration", time.Since(start))

	return res, summary, nil
}

func (s *Service) assemble(c calc.Component, thickness calc.Result, analysis corrosion.Analysis, decision *policy.Decision) *types.CalculationResult {
	spec := c.Spec()

	res := &types.CalculationResult{
		InspectionID:  spec.InspectionID,
		ComponentID:   spec.ComponentID,
		ComponentName: spec.Name,
		ComponentType: spec.Type,
		HeadType:      spec.Shape.HeadType(),

		MinimumRequiredThickness:  thickness.MinimumThickness,
		MAWP:                      thickness.MAWP,
		StaticHeadPressure:        thickness.StaticHeadPressure,
		TotalDesignPressure:       thickness.TotalPressure,
		DerivedCorrosionAllowance: thickness.DerivedCorrosionAllowance,

		LongTermCorrosionRate:  analysis.LongTermRate,
		ShortTermCorrosionRate: analysis.ShortTermRate,
		GoverningCorrosionRate: analysis.GoverningRate,
		GoverningRateBasis:     analysis.Basis,
		CorrosionRateMPY:       analysis.MPY,

		RemainingLife:          analysis.RemainingLife,
		RemainingLifeDisplay:   analysis.RemainingLife.Display(),
		NextInspectionInterval: analysis.NextInspectionInterval,
		NextInspectionDate:     analysis.NextInspectionDate,

		ProjectedThickness: math.Max(0, analysis.ProjectedThickness),

		Status:       decision.Status,
		StatusReason: decision.Reason,

		MaterialSpec:         spec.Material,
		AllowableStressUsed:  spec.AllowableStress,
		StressStatus:         spec.StressStatus,
		StressTableReference: spec.StressReference,

		CalculatedAt: s.now().UTC(),
	}

	res.ProjectedMAWP = s.calculator.MAWPAt(c, res.ProjectedThickness)
	if res.MAWP < spec.DesignPressure {
		res.RerateRequired = true
		res.RerateRecommendation = fmt.Sprintf("de-rate to %.0f psi or repair; MAWP %.1f psi is below the design pressure %.1f psi",
			math.Floor(res.MAWP), res.MAWP, spec.DesignPressure)
	}

	res.Formulas = append(res.Formulas, thickness.Formulas...)
	res.Formulas = append(res.Formulas, analysis.Formulas...)
	res.Formulas = append(res.Formulas,
		types.FormulaTrace{
			Name:       "projectedThickness",
			Expression: fmt.Sprintf("t_actual − CR·interval = %.4f − %.5f·%.2f", spec.ActualThickness, analysis.GoverningRate, analysis.NextInspectionInterval),
			Value:      res.ProjectedThickness,
			Unit:       "in",
		},
		types.FormulaTrace{
			Name:       "projectedMawp",
			Expression: fmt.Sprintf("MAWP at t=%.4f", res.ProjectedThickness),
			Value:      res.ProjectedMAWP,
			Unit:       "psi",
		},
	)

	res.CodeReferences = dedupe(thickness.CodeReferences, analysis.CodeReferences, []string{spec.StressReference})
	return res
}

// recordCalculation appends the calculation trace to the audit trail.
func (s *Service) recordCalculation(ctx context.Context, logger *slog.Logger, in types.ComponentInput, res types.CalculationResult, summary types.ValidationSummary, actor Actor) {
	if s.audit == nil {
		return
	}
	trace := s.converter.ToTrace(in, res)
	s.appendAudit(ctx, logger, in, trace, map[string]any{
		"componentId":      in.ComponentID,
		"outcome":          "calculated",
		"validationStatus": string(summary.Status),
		"validationScore":  summary.Score,
	}, actor)
}

// recordRejection counts a component that could not be calculated and
// appends its failure trace.
func (s *Service) recordRejection(ctx context.Context, logger *slog.Logger, in types.ComponentInput, summary types.ValidationSummary, cause error, actor Actor) {
	kind := rejectionReason(cause)
	observability.GetMetrics().CalculationsFailed.WithLabelValues(kind).Inc()
	logger.Info("component not calculated", "reason", kind, "error", cause)

	if s.audit == nil {
		return
	}
	trace := s.converter.ToFailureTrace(in, summary, cause.Error())
	s.appendAudit(ctx, logger, in, trace, map[string]any{
		"componentId":      in.ComponentID,
		"outcome":          "rejected",
		"validationStatus": string(summary.Status),
		"validationScore":  summary.Score,
	}, actor)
}

// rejectionReason labels why a component was not calculated. Errors without
// an engineering kind or a failed screen come from the status rules.
func rejectionReason(cause error) string {
	if k, ok := errors.KindOf(cause); ok {
		return string(k)
	}
	var verr *ValidationError
	if errors.As(cause, &verr) {
		return "validation"
	}
	return "policy"
}

func (s *Service) appendAudit(ctx context.Context, logger *slog.Logger, in types.ComponentInput, trace types.CalculationTrace, meta map[string]any, actor Actor) {
	metrics := observability.GetMetrics()
	entityID := in.InspectionID
	if entityID == "" {
		entityID = in.ComponentID
	}
	if entityID == "" {
		logger.Warn("calculation not audited: no inspection or component id")
		metrics.AuditAppendFailures.Inc()
		return
	}

	if _, err := s.audit.LogCalculationAudit(ctx, audit.EntityInspection, entityID, actor.UserID, actor.UserName, trace, meta); err != nil {
		logger.Error("failed to record calculation in audit trail", "error", err)
		metrics.AuditAppendFailures.Inc()
		return
	}
	metrics.AuditEntriesAppended.WithLabelValues(audit.ActionCalculation).Inc()
}

func dedupe(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
