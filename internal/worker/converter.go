package worker

import (
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// buildRun constructs a run record for task. The task ID doubles as the run
// ID so every status update lands on the same row.
func buildRun(task *queue.RecalculationTask, status statestore.RunStatus) *statestore.RecalculationRun {
	if task == nil {
		return nil
	}
	return &statestore.RecalculationRun{
		ID:           task.ID,
		InspectionID: task.InspectionID(),
		Source:       task.Source,
		RequestedBy:  task.RequestedBy,
		Status:       status,
		CreatedAt:    task.EnqueuedAt,
	}
}

func completedRun(task *queue.RecalculationTask, res *types.VesselAssessment) *statestore.RecalculationRun {
	run := buildRun(task, statestore.RunCompleted)
	run.Components = res.Calculated
	run.Skipped = res.Skipped
	return run
}

func failedRun(task *queue.RecalculationTask, err error) *statestore.RecalculationRun {
	run := buildRun(task, statestore.RunFailed)
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	return run
}
