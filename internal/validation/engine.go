package validation

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/daimoniac/vesselfit/internal/calc"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/materials"
	"github.com/daimoniac/vesselfit/internal/types"
)

const (
	codeRefRate        = "API 510 7.1.1.1"
	codeRefLife        = "API 510 7.1.1"
	codeRefReplacement = "API 510 7.4"
	codeRefRerate      = "API 510 8.2"
	codeRefHeadRatio   = "UG-32(j)"
)

// Config tunes the engine. Zero values select defaults.
type Config struct {
	// Bounds override the built-in ranges per field.
	Bounds Bounds
	// Tolerance is the thickness scatter, in inches, accepted before an
	// ordering violation fails.
	Tolerance float64
	// ReplacementLossFraction is the fraction of nominal thickness lost
	// beyond which replacement should be considered.
	ReplacementLossFraction float64
	// MinRemainingLife in years below which a result is flagged.
	MinRemainingLife float64
}

// DefaultTolerance is the default thickness scatter, inches.
const DefaultTolerance = 0.005

// Engine screens component inputs and results.
type Engine struct {
	logger       *slog.Logger
	validate     *validator.Validate
	resolver     *materials.Resolver
	bounds       Bounds
	tolerance    float64
	lossFraction float64
	minLife      float64
}

// NewEngine creates a validation engine backed by resolver.
func NewEngine(logger *slog.Logger, resolver *materials.Resolver, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.ReplacementLossFraction == 0 {
		cfg.ReplacementLossFraction = 0.5
	}
	if cfg.MinRemainingLife == 0 {
		cfg.MinRemainingLife = 4
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// A zero Date is an absent date
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(types.Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.String()
	}, types.Date{})

	return &Engine{
		logger:       logger,
		validate:     v,
		resolver:     resolver,
		bounds:       DefaultBounds().Merge(cfg.Bounds),
		tolerance:    cfg.Tolerance,
		lossFraction: cfg.ReplacementLossFraction,
		minLife:      cfg.MinRemainingLife,
	}
}

// Tolerance returns the thickness scatter in effect.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// Bounds returns the ranges in effect.
func (e *Engine) Bounds() Bounds {
	return e.bounds
}

// ValidateInput runs every pre-calculation check on in.
func (e *Engine) ValidateInput(in types.ComponentInput) types.ValidationSummary {
	summary, _ := e.screen(in)
	return summary
}

// Prepare screens in and, if nothing failed, builds the immutable component
// the calculator works on. Check failures come back in the summary with a
// nil component. An unresolvable material, or values the design formulas
// cannot solve, come back as a CalcError.
func (e *Engine) Prepare(in types.ComponentInput) (*calc.Component, types.ValidationSummary, error) {
	summary, materialErr := e.screen(in)
	if materialErr != nil {
		return nil, summary, materialErr
	}
	if summary.Failed() {
		return nil, summary, nil
	}

	shape, _, err := calc.ShapeFor(in)
	if err != nil {
		return nil, summary, errors.NewCalcError(errors.KindOutOfPhysicalRange, "headType", "UG-32", "%v", err)
	}

	spec := calc.ComponentSpec{
		InspectionID:             in.InspectionID,
		ComponentID:              in.ComponentID,
		Name:                     in.Name,
		Type:                     in.ComponentType,
		Shape:                    shape,
		DesignPressure:           in.DesignPressure,
		DesignTemperature:        *in.DesignTemperature,
		JointEfficiency:          in.JointEfficiency,
		NominalThickness:         in.NominalThickness,
		ActualThickness:          in.ActualThickness,
		PreviousThickness:        in.PreviousThickness,
		DesignCorrosionAllowance: in.DesignCorrosionAllowance,
		SpecificGravity:          in.SpecificGravity,
		LiquidHeight:             in.LiquidHeight,
		InstallDate:              in.InstallDate,
		PreviousInspectionDate:   in.PreviousInspectionDate,
		InspectionDate:           in.InspectionDate,
	}

	// First inspection: the nominal thickness at installation is the baseline
	if !in.HasPreviousReading() {
		spec.PreviousThickness = in.NominalThickness
		spec.PreviousInspectionDate = in.InstallDate
	}

	if in.AllowableStress > 0 {
		spec.Material = in.MaterialSpec
		spec.AllowableStress = in.AllowableStress
		spec.StressStatus = types.StressOverride
		spec.StressReference = "supplied with input"
		if m, ok := e.resolver.Lookup(in.MaterialSpec); ok {
			spec.Material = m.DisplayName()
		}
	} else {
		lookup, err := e.resolver.AllowableStress(in.MaterialSpec, *in.DesignTemperature)
		if err != nil {
			return nil, summary, err
		}
		spec.Material = lookup.NormalizedSpec
		spec.AllowableStress = lookup.Stress
		spec.StressStatus = lookup.Status
		spec.StressReference = lookup.TableReference
	}

	component, err := calc.NewComponent(spec)
	if err != nil {
		return nil, summary, err
	}
	if w, ok := thinWallCheck(spec); ok {
		results := append(summary.Results[:len(summary.Results):len(summary.Results)], w)
		summary = Summarize(results, summary.Completeness)
	}
	return &component, summary, nil
}

// thinWallCheck flags a shell whose total pressure is beyond the UG-27
// range P ≤ 0.385·S·E.
func thinWallCheck(spec calc.ComponentSpec) (types.ValidationResult, bool) {
	if _, ok := spec.Shape.(calc.Cylinder); !ok {
		return types.ValidationResult{}, false
	}
	total := spec.DesignPressure + calc.StaticHead(spec.SpecificGravity, spec.LiquidHeight)
	limit := 0.385 * spec.AllowableStress * spec.JointEfficiency
	if total <= limit {
		return types.ValidationResult{}, false
	}
	return types.ValidationResult{
		Field:               "designPressure",
		Check:               "thinWall",
		IsValid:             true,
		Status:              types.ValidationWarning,
		CodeReference:       "UG-27(c)",
		Message:             fmt.Sprintf("total pressure %.1f psi exceeds 0.385·S·E = %.1f psi; the thin-wall formulas are outside their range", total, limit),
		SuggestedCorrection: "check the shell against the thick-wall formulas of Appendix 1-2",
	}, true
}

// ValidateResult runs the post-calculation checks.
func (e *Engine) ValidateResult(res types.CalculationResult, designPressure float64) []types.ValidationResult {
	var out []types.ValidationResult

	mawp := types.ValidationResult{Field: "mawp", Check: "rerate", CodeReference: codeRefRerate, IsValid: true}
	if res.MAWP < designPressure {
		mawp.Status = types.ValidationWarning
		mawp.Message = fmt.Sprintf("MAWP %.1f psi is below the design pressure %.1f psi", res.MAWP, designPressure)
		mawp.SuggestedCorrection = fmt.Sprintf("rerate to %.0f psi or repair", res.MAWP)
	} else {
		mawp.Status = types.ValidationPassed
		mawp.Message = fmt.Sprintf("MAWP %.1f psi meets the design pressure %.1f psi", res.MAWP, designPressure)
	}
	out = append(out, mawp)

	life := types.ValidationResult{Field: "remainingLife", Check: "remainingLife", CodeReference: codeRefLife, IsValid: true}
	if !res.RemainingLife.IsUnbounded() && float64(res.RemainingLife) < e.minLife {
		life.Status = types.ValidationWarning
		life.Message = fmt.Sprintf("remaining life %s is below %.0f years", res.RemainingLife.Display(), e.minLife)
		life.SuggestedCorrection = "plan repair or replacement before the next inspection"
	} else {
		life.Status = types.ValidationPassed
		life.Message = fmt.Sprintf("remaining life %s", res.RemainingLife.Display())
	}
	out = append(out, life)

	rate := e.bounds.Check(FieldCorrosionRate, "governingCorrosionRate", res.GoverningCorrosionRate)
	if rate.Status == types.ValidationFailed {
		// The rate is already computed; an implausible value is reported, not rejected
		rate.Status = types.ValidationWarning
		rate.IsValid = true
	}
	out = append(out, rate)

	return out
}

// Summarize aggregates results. completeness is the fraction of required
// fields supplied.
func Summarize(results []types.ValidationResult, completeness float64) types.ValidationSummary {
	var passed, decided int
	status := types.ValidationPassed
	if len(results) == 0 {
		status = types.ValidationPending
	}
	for _, r := range results {
		if r.Status.Severity() > status.Severity() {
			status = r.Status
		}
		switch r.Status {
		case types.ValidationPassed:
			passed++
			decided++
		case types.ValidationWarning, types.ValidationFailed:
			decided++
		}
	}

	passRate := 0.0
	if decided > 0 {
		passRate = float64(passed) / float64(decided)
	}
	if results == nil {
		results = []types.ValidationResult{}
	}
	return types.ValidationSummary{
		Results:      results,
		Completeness: completeness,
		PassRate:     passRate,
		Score:        100 * (0.4*completeness + 0.6*passRate),
		Status:       status,
	}
}

func (e *Engine) screen(in types.ComponentInput) (types.ValidationSummary, error) {
	results, missing := e.requiredChecks(in)
	has := func(field string) bool { return !missing[field] }

	results = append(results, e.rangeChecks(in, has)...)
	materialResults, materialErr := e.materialChecks(in, has)
	results = append(results, materialResults...)
	results = append(results, e.thicknessChecks(in, has)...)
	results = append(results, e.dateChecks(in, has)...)
	results = append(results, e.geometryChecks(in, has)...)

	required := requiredFieldCount(in)
	completeness := float64(required-countMissingRequired(missing)) / float64(required)
	summary := Summarize(results, completeness)

	e.logger.Debug("input screened",
		"inspection_id", in.InspectionID,
		"component_id", in.ComponentID,
		"status", summary.Status,
		"score", summary.Score)
	return summary, materialErr
}

var requiredFields = []string{
	"inspectionId", "componentId", "componentType", "insideDiameter", "designPressure",
	"designTemperature", "materialSpec", "jointEfficiency", "nominalThickness",
	"actualThickness", "installDate", "inspectionDate",
}

func requiredFieldCount(in types.ComponentInput) int {
	if in.ComponentType == types.ComponentHead {
		return len(requiredFields) + 1
	}
	return len(requiredFields)
}

func countMissingRequired(missing map[string]bool) int {
	n := 0
	for _, f := range requiredFields {
		if missing[f] {
			n++
		}
	}
	if missing["headType"] {
		n++
	}
	return n
}

func (e *Engine) requiredChecks(in types.ComponentInput) ([]types.ValidationResult, map[string]bool) {
	missing := make(map[string]bool)
	var results []types.ValidationResult

	err := e.validate.Struct(in)
	var fieldErrs validator.ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		results = append(results, types.ValidationResult{
			Field:   "input",
			Check:   "required",
			Status:  types.ValidationFailed,
			Kind:    string(errors.KindDataMissing),
			Message: err.Error(),
		})
		return results, missing
	}

	for _, fe := range fieldErrs {
		field := fe.Field()
		missing[field] = true
		res := types.ValidationResult{
			Field:  field,
			Check:  "required",
			Status: types.ValidationFailed,
		}
		switch fe.Tag() {
		case "required", "required_if":
			res.Kind = string(errors.KindDataMissing)
			res.Message = fmt.Sprintf("%s is required", field)
			res.SuggestedCorrection = fmt.Sprintf("enter %s from the inspection record or data report", field)
		default:
			res.Kind = string(errors.KindOutOfPhysicalRange)
			res.Message = fmt.Sprintf("%q is not a supported %s (%s)", fmt.Sprint(fe.Value()), field, fe.Param())
		}
		results = append(results, res)
	}
	return results, missing
}

func (e *Engine) rangeChecks(in types.ComponentInput, has func(string) bool) []types.ValidationResult {
	var results []types.ValidationResult
	check := func(kind, field string, value float64) {
		results = append(results, e.bounds.Check(kind, field, value))
	}

	if has("designPressure") {
		check(FieldDesignPressure, "designPressure", in.DesignPressure)
	}
	if has("designTemperature") {
		check(FieldDesignTemperature, "designTemperature", *in.DesignTemperature)
	}
	if has("insideDiameter") {
		check(FieldInsideDiameter, "insideDiameter", in.InsideDiameter)
	}
	if has("jointEfficiency") {
		check(FieldJointEfficiency, "jointEfficiency", in.JointEfficiency)
	}
	if has("nominalThickness") {
		check(FieldThickness, "nominalThickness", in.NominalThickness)
	}
	if has("actualThickness") {
		check(FieldThickness, "actualThickness", in.ActualThickness)
	}
	if in.PreviousThickness != 0 {
		check(FieldThickness, "previousThickness", in.PreviousThickness)
	}
	check(FieldCorrosionAllow, "designCorrosionAllowance", in.DesignCorrosionAllowance)
	if in.AllowableStress != 0 {
		check(FieldAllowableStress, "allowableStress", in.AllowableStress)
	}

	if in.LiquidHeight != 0 || in.SpecificGravity != 0 {
		check(FieldLiquidHeight, "liquidHeight", in.LiquidHeight)
		if in.LiquidHeight > 0 && in.SpecificGravity == 0 {
			results = append(results, types.ValidationResult{
				Field:               "specificGravity",
				Check:               "required",
				Status:              types.ValidationFailed,
				Kind:                string(errors.KindDataMissing),
				Message:             "specificGravity is required when a liquid height is given",
				CodeReference:       "UG-22(b)",
				SuggestedCorrection: "enter the specific gravity of the contents (1.0 for water)",
			})
		} else {
			check(FieldSpecificGravity, "specificGravity", in.SpecificGravity)
		}
	}
	return results
}

func (e *Engine) materialChecks(in types.ComponentInput, has func(string) bool) ([]types.ValidationResult, error) {
	if !has("materialSpec") {
		return nil, nil
	}

	res := types.ValidationResult{Field: "materialSpec", Check: "material", CodeReference: "UG-23"}
	mv, err := e.resolver.ValidateMaterial(in.MaterialSpec)
	if err != nil {
		res.Kind = string(errors.KindMaterialNotFound)
		res.Message = fmt.Sprintf("no allowable stress data for %q", in.MaterialSpec)
		if len(mv.Suggestions) > 0 {
			res.SuggestedCorrection = "did you mean " + strings.Join(mv.Suggestions, ", ") + "?"
		}
		if in.AllowableStress > 0 {
			// The supplied stress carries the calculation; the name is only recorded
			res.Status = types.ValidationWarning
			res.IsValid = true
			return []types.ValidationResult{res}, nil
		}
		res.Status = types.ValidationFailed
		return []types.ValidationResult{res}, err
	}

	res.IsValid = true
	res.Status = types.ValidationPassed
	res.Message = fmt.Sprintf("resolved as %s", mv.NormalizedSpec)
	results := []types.ValidationResult{res}

	if in.AllowableStress > 0 || !has("designTemperature") {
		return results, nil
	}

	stress := types.ValidationResult{Field: "allowableStress", Check: "stressLookup", CodeReference: "UG-23", IsValid: true}
	lookup, err := e.resolver.AllowableStress(in.MaterialSpec, *in.DesignTemperature)
	switch {
	case err != nil:
		stress.Status = types.ValidationFailed
		stress.IsValid = false
		stress.Kind = string(errors.KindOutOfPhysicalRange)
		stress.Message = err.Error()
		stress.SuggestedCorrection = "supply allowableStress from the applicable code edition"
	case lookup.Extrapolated():
		stress.Status = types.ValidationWarning
		stress.Kind = string(errors.KindExtrapolationWarning)
		stress.Message = fmt.Sprintf("%.0f psi: %s", lookup.Stress, lookup.Message)
		stress.SuggestedCorrection = "confirm the design temperature or supply allowableStress"
	default:
		stress.Status = types.ValidationPassed
		stress.Message = fmt.Sprintf("%.0f psi (%s)", lookup.Stress, lookup.Status)
	}
	return append(results, stress), nil
}

func (e *Engine) thicknessChecks(in types.ComponentInput, has func(string) bool) []types.ValidationResult {
	if !has("nominalThickness") || !has("actualThickness") {
		return nil
	}
	var results []types.ValidationResult
	tol := e.tolerance

	order := func(field, upperName string, value, upper float64, kind errors.Kind, codeRef, suggestion string) {
		res := types.ValidationResult{Field: field, Check: "thicknessOrder", CodeReference: codeRef}
		diff := value - upper
		switch {
		case diff > tol:
			res.Status = types.ValidationFailed
			res.Kind = string(kind)
			res.Message = fmt.Sprintf("%s %.4f in exceeds %s %.4f in by more than %.4f in", field, value, upperName, upper, tol)
			res.SuggestedCorrection = suggestion
		case diff > 0:
			res.Status = types.ValidationWarning
			res.IsValid = true
			res.Kind = string(kind)
			res.Message = fmt.Sprintf("%s %.4f in exceeds %s %.4f in within measurement tolerance; treated as no loss", field, value, upperName, upper)
		default:
			res.Status = types.ValidationPassed
			res.IsValid = true
			res.Message = fmt.Sprintf("%s %.4f in does not exceed %s %.4f in", field, value, upperName, upper)
		}
		results = append(results, res)
	}

	order("actualThickness", "nominalThickness", in.ActualThickness, in.NominalThickness,
		errors.KindCrossFieldInconsistency, "UG-16(c)", "check for mill overage or a unit mix-up")

	if in.HasPreviousReading() {
		order("previousThickness", "nominalThickness", in.PreviousThickness, in.NominalThickness,
			errors.KindCrossFieldInconsistency, "UG-16(c)", "check for mill overage or a unit mix-up")
		order("actualThickness", "previousThickness", in.ActualThickness, in.PreviousThickness,
			errors.KindNegativeCorrosionRate, codeRefRate, "check whether the previous and actual readings were swapped")
	} else {
		res := types.ValidationResult{
			Field:         "previousThickness",
			Check:         "shortTermRate",
			IsValid:       true,
			Status:        types.ValidationPending,
			CodeReference: codeRefRate,
			Message:       "no previous reading; the short-term rate uses the nominal thickness at installation",
		}
		if in.PreviousThickness != 0 || !in.PreviousInspectionDate.IsZero() {
			res.Status = types.ValidationWarning
			res.Message = "previous reading is incomplete (thickness and date are both needed); it was ignored"
			res.SuggestedCorrection = "enter both previousThickness and previousInspectionDate"
		}
		results = append(results, res)
	}

	loss := (in.NominalThickness - in.ActualThickness) / in.NominalThickness
	lossRes := types.ValidationResult{Field: "actualThickness", Check: "thicknessLoss", CodeReference: codeRefReplacement, IsValid: true}
	if loss > e.lossFraction {
		lossRes.Status = types.ValidationWarning
		lossRes.Message = fmt.Sprintf("%.0f%% of nominal thickness lost", loss*100)
		lossRes.SuggestedCorrection = "consider replacement of the component"
	} else {
		lossRes.Status = types.ValidationPassed
		lossRes.Message = fmt.Sprintf("%.1f%% of nominal thickness lost", max(loss, 0)*100)
	}
	results = append(results, lossRes)

	if in.ActualThickness-in.DesignCorrosionAllowance <= 0 {
		results = append(results, types.ValidationResult{
			Field:         "designCorrosionAllowance",
			Check:         "netThickness",
			IsValid:       true,
			Status:        types.ValidationWarning,
			CodeReference: "UG-25",
			Message:       "actual thickness does not exceed the design corrosion allowance; MAWP will be zero",
		})
	}
	return results
}

func (e *Engine) dateChecks(in types.ComponentInput, has func(string) bool) []types.ValidationResult {
	if !has("installDate") || !has("inspectionDate") {
		return nil
	}
	var results []types.ValidationResult
	fail := func(field, msg string) {
		results = append(results, types.ValidationResult{
			Field:               field,
			Check:               "dateOrder",
			Status:              types.ValidationFailed,
			Kind:                string(errors.KindCrossFieldInconsistency),
			Message:             msg,
			CodeReference:       codeRefLife,
			SuggestedCorrection: "check the install and inspection dates",
		})
	}

	if !in.InstallDate.Before(in.InspectionDate.Time) {
		fail("installDate", fmt.Sprintf("install date %s is not before inspection date %s", in.InstallDate, in.InspectionDate))
		return results
	}
	if !in.PreviousInspectionDate.IsZero() {
		if in.PreviousInspectionDate.Before(in.InstallDate.Time) {
			fail("previousInspectionDate", fmt.Sprintf("previous inspection %s precedes installation %s", in.PreviousInspectionDate, in.InstallDate))
			return results
		}
		if !in.PreviousInspectionDate.Before(in.InspectionDate.Time) {
			fail("previousInspectionDate", fmt.Sprintf("previous inspection %s is not before inspection %s", in.PreviousInspectionDate, in.InspectionDate))
			return results
		}
	}
	results = append(results, types.ValidationResult{
		Field:   "inspectionDate",
		Check:   "dateOrder",
		IsValid: true,
		Status:  types.ValidationPassed,
		Message: "dates are in order",
	})

	if has("nominalThickness") && has("actualThickness") {
		results = append(results, e.rateCheck(in))
	}
	return results
}

// rateCheck screens the governing rate the analyzer will compute.
func (e *Engine) rateCheck(in types.ComponentInput) types.ValidationResult {
	rate := max(0, (in.NominalThickness-in.ActualThickness)/in.InstallDate.YearsUntil(in.InspectionDate))
	if in.HasPreviousReading() {
		st := (in.PreviousThickness - in.ActualThickness) / in.PreviousInspectionDate.YearsUntil(in.InspectionDate)
		rate = max(rate, st)
	}
	return e.bounds.Check(FieldCorrosionRate, "corrosionRate", rate)
}

func (e *Engine) geometryChecks(in types.ComponentInput, has func(string) bool) []types.ValidationResult {
	if in.ComponentType != types.ComponentHead || !has("headType") || !has("insideDiameter") {
		return nil
	}
	var results []types.ValidationResult
	warn := func(field, codeRef, msg, suggestion string) {
		results = append(results, types.ValidationResult{
			Field:               field,
			Check:               "geometry",
			IsValid:             true,
			Status:              types.ValidationWarning,
			Message:             msg,
			CodeReference:       codeRef,
			SuggestedCorrection: suggestion,
		})
	}

	fail := func(field, codeRef string, value float64) {
		results = append(results, types.ValidationResult{
			Field:               field,
			Check:               "geometry",
			Status:              types.ValidationFailed,
			Kind:                string(errors.KindOutOfPhysicalRange),
			Message:             fmt.Sprintf("%s must be positive, got %g", field, value),
			CodeReference:       codeRef,
			SuggestedCorrection: "leave the field empty to use the standard proportion",
		})
	}
	// Zero selects the standard proportion; anything else must be positive.
	supplied := []struct {
		field, codeRef string
		value          float64
	}{
		{"crownRadius", "UG-32(e)", in.CrownRadius},
		{"knuckleRadius", "UG-32(e)", in.KnuckleRadius},
		{"aspectRatio", "Appendix 1-4(c)", in.AspectRatio},
		{"attachmentFactor", "UG-34", in.AttachmentFactor},
	}
	for _, d := range supplied {
		if d.value < 0 || math.IsNaN(d.value) || math.IsInf(d.value, 0) {
			fail(d.field, d.codeRef, d.value)
		}
	}
	if len(results) > 0 {
		return results
	}

	switch in.HeadType {
	case types.HeadTorispherical:
		if in.CrownRadius == 0 {
			warn("crownRadius", "UG-32(e)", "crown radius not given; L = D assumed",
				"enter the crown radius from the nameplate or drawing")
		}
		if in.KnuckleRadius == 0 {
			warn("knuckleRadius", "UG-32(e)", "knuckle radius not given; r = 0.06·D assumed",
				"enter the knuckle radius from the nameplate or drawing")
		}
		if in.CrownRadius > 0 && in.KnuckleRadius > 0 && in.KnuckleRadius < calc.DefaultKnuckleFraction*in.CrownRadius {
			warn("knuckleRadius", codeRefHeadRatio, fmt.Sprintf("knuckle radius %.3f in is less than 6%% of the crown radius %.3f in", in.KnuckleRadius, in.CrownRadius), "")
		}
		if in.CrownRadius > in.InsideDiameter+2*in.NominalThickness {
			warn("crownRadius", codeRefHeadRatio, fmt.Sprintf("crown radius %.3f in exceeds the outside diameter", in.CrownRadius), "")
		}
	case types.HeadEllipsoidal:
		if in.AspectRatio != 0 && (in.AspectRatio < 1 || in.AspectRatio > 3) {
			warn("aspectRatio", "Appendix 1-4(c)", fmt.Sprintf("D/2h of %.2f is outside 1.0 to 3.0", in.AspectRatio), "verify the head depth")
		}
	case types.HeadFlat:
		if in.AttachmentFactor == 0 {
			warn("attachmentFactor", "UG-34", "attachment factor not given; C = 0.33 assumed",
				"enter the C factor for the attachment sketch in Fig. UG-34")
		}
	}
	return results
}
