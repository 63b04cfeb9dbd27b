package assessment

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/types"
)

// AssessVessel calculates every component of an inspection in order and
// combines the results. Components that fail validation or material
// resolution are reported with their reason and skipped; the governing MAWP
// is the lowest MAWP among the rest. Only infrastructure failures, such as
// a cancelled context, abort the assessment.
func (s *Service) AssessVessel(ctx context.Context, insp types.Inspection, actor Actor) (*types.VesselAssessment, error) {
	if insp.InspectionID == "" {
		return nil, errors.NewPermanentf("%w: inspection id is required", errors.ErrInvalidInput)
	}
	if len(insp.Components) == 0 {
		return nil, errors.NewPermanentf("%w: inspection %s has no components", errors.ErrInvalidInput, insp.InspectionID)
	}

	start := time.Now()
	out := &types.VesselAssessment{
		InspectionID: insp.InspectionID,
		Components:   make([]types.ComponentOutcome, 0, len(insp.Components)),
	}

	var earliest types.Date
	for _, in := range insp.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := types.ComponentOutcome{ComponentID: in.ComponentID}
		if in.InspectionID == "" {
			in.InspectionID = insp.InspectionID
		}
		if in.InspectionID != insp.InspectionID {
			err := errors.NewCalcError(errors.KindCrossFieldInconsistency, "inspectionId", "",
				"component belongs to inspection %s, not %s", in.InspectionID, insp.InspectionID)
			outcome.Error = err.Error()
			outcome.ErrorKind = string(err.Kind)
			out.Components = append(out.Components, outcome)
			out.Skipped++
			continue
		}

		res, summary, err := s.CalculateComponent(ctx, in, actor)
		outcome.Validation = summary
		if err != nil {
			if !skippable(err) {
				return nil, fmt.Errorf("component %s: %w", in.ComponentID, err)
			}
			outcome.Error = err.Error()
			outcome.ErrorKind = kindLabel(err)
			out.Components = append(out.Components, outcome)
			out.Skipped++
			continue
		}

		outcome.Result = res
		out.Components = append(out.Components, outcome)
		out.Calculated++

		if out.Calculated == 1 || res.MAWP < out.GoverningMAWP {
			out.GoverningMAWP = res.MAWP
			out.GoverningComponentID = res.ComponentID
		}
		out.DesignPressure = math.Max(out.DesignPressure, in.DesignPressure)
		if types.StatusRank(res.Status) > types.StatusRank(out.WorstStatus) || out.WorstStatus == "" {
			out.WorstStatus = res.Status
		}
		if earliest.IsZero() || res.NextInspectionDate.Before(earliest.Time) {
			earliest = res.NextInspectionDate
			out.NextInspectionInterval = res.NextInspectionInterval
		}
	}
	out.NextInspectionDate = earliest

	if out.Calculated > 0 && out.GoverningMAWP < out.DesignPressure {
		out.RerateRequired = true
		out.RerateRecommendation = fmt.Sprintf("de-rate vessel to %.0f psi (governed by %s) or repair",
			math.Floor(out.GoverningMAWP), out.GoverningComponentID)
	}

	observability.GetMetrics().VesselAssessments.Inc()
	s.logger.Info("vessel assessed",
		"inspection_id", out.InspectionID,
		"calculated", out.Calculated,
		"skipped", out.Skipped,
		"governing_mawp", out.GoverningMAWP,
		"governing_component_id", out.GoverningComponentID,
		"worst_status", out.WorstStatus,
		"duration", time.Since(start))

	return out, nil
}

// AssessBatch assesses several inspections in parallel, bounded by the
// configured concurrency. Components within one inspection stay sequential
// so each inspection's audit history is written in order. Results are
// returned in input order; the first infrastructure failure cancels the rest.
func (s *Service) AssessBatch(ctx context.Context, inspections []types.Inspection, actor Actor) ([]*types.VesselAssessment, error) {
	results := make([]*types.VesselAssessment, len(inspections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, insp := range inspections {
		g.Go(func() error {
			res, err := s.AssessVessel(gctx, insp, actor)
			if err != nil {
				return fmt.Errorf("inspection %s: %w", insp.InspectionID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// skippable reports whether err describes the component rather than the system.
func skippable(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	_, ok := errors.KindOf(err)
	return ok
}

func kindLabel(err error) string {
	if k, ok := errors.KindOf(err); ok {
		return string(k)
	}
	return "ValidationFailed"
}
