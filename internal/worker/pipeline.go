package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// Pipeline orchestrates the recalculation workflow for one task
type Pipeline struct {
	worker *RecalculationWorker
	logger *slog.Logger
}

// NewPipeline creates a new pipeline instance
func NewPipeline(worker *RecalculationWorker, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		worker: worker,
		logger: logger,
	}
}

// Execute runs the recalculation workflow for a single inspection
func (p *Pipeline) Execute(ctx context.Context, task *queue.RecalculationTask) (*types.VesselAssessment, error) {
	startTime := time.Now()

	p.logger.Info("starting recalculation workflow",
		"task_id", task.ID,
		"inspection_id", task.InspectionID(),
		"attempt", task.Attempts)

	if err := p.validateDependencies(); err != nil {
		return nil, err
	}

	// Phase 1: mark the run as running
	p.worker.recordRun(ctx, buildRun(task, statestore.RunRunning))

	// Phase 2: assess every component, writing audit entries
	res, err := p.assessPhase(ctx, task)
	if err != nil {
		return nil, err
	}

	// Phase 3: flag what needs attention
	p.checkFindings(task, res)

	p.logCompletion(task, res, startTime)
	return res, nil
}

// validateDependencies ensures all required components are configured
func (p *Pipeline) validateDependencies() error {
	if p.worker.assessor == nil {
		return fmt.Errorf("assessor is not configured")
	}
	return nil
}

func (p *Pipeline) assessPhase(ctx context.Context, task *queue.RecalculationTask) (*types.VesselAssessment, error) {
	actor := assessment.Actor{UserID: task.RequestedBy, UserName: task.UserName}
	if actor.UserID == "" {
		actor.UserID = assessment.SystemUser
	}

	res, err := p.worker.assessor.AssessVessel(ctx, task.Inspection, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to assess inspection %s: %w", task.InspectionID(), err)
	}
	return res, nil
}

// checkFindings logs warnings for results an inspector should act on
func (p *Pipeline) checkFindings(task *queue.RecalculationTask, res *types.VesselAssessment) {
	if res.Skipped > 0 {
		for _, c := range res.Components {
			if c.Error == "" {
				continue
			}
			p.logger.Warn("component skipped during recalculation",
				"inspection_id", task.InspectionID(),
				"component_id", c.ComponentID,
				"error_kind", c.ErrorKind,
				"error", c.Error)
		}
	}

	if res.WorstStatus == types.StatusCritical {
		p.logger.Error("ALERT: inspection has a component below minimum thickness",
			"inspection_id", task.InspectionID(),
			"governing_component_id", res.GoverningComponentID,
			"governing_mawp", res.GoverningMAWP)
	}

	if res.RerateRequired {
		p.logger.Warn("vessel requires re-rating",
			"inspection_id", task.InspectionID(),
			"governing_mawp", res.GoverningMAWP,
			"design_pressure", res.DesignPressure,
			"recommendation", res.RerateRecommendation)
	}
}

// logCompletion logs the final workflow completion
func (p *Pipeline) logCompletion(task *queue.RecalculationTask, res *types.VesselAssessment, startTime time.Time) {
	p.logger.Info("recalculation workflow completed",
		"task_id", task.ID,
		"inspection_id", task.InspectionID(),
		"total_duration", time.Since(startTime),
		"queue_wait", startTime.Sub(task.EnqueuedAt),
		"calculated", res.Calculated,
		"skipped", res.Skipped,
		"worst_status", res.WorstStatus,
		"next_inspection_date", res.NextInspectionDate)
}
