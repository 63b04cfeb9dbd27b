package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/audit"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/materials"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/policy"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
	"github.com/daimoniac/vesselfit/internal/validation"
	"github.com/daimoniac/vesselfit/internal/watcher"
	"github.com/daimoniac/vesselfit/internal/worker"
)

const dropPackage = `version: 1
inspectionId: insp-7
vessel: V-301
defaults:
  insideDiameter: 72
  designPressure: 250
  designTemperature: 500
  materialSpec: SA-516 Grade 70
  jointEfficiency: 0.85
  nominalThickness: 0.75
  designCorrosionAllowance: 0.125
  installDate: 2000-01-01
  previousInspectionDate: 2020-01-01
  inspectionDate: 2025-01-01
components:
  - componentId: shell-1
    componentType: shell
    actualThickness: 0.70
    previousThickness: 0.72
  - componentId: shell-2
    componentType: shell
    actualThickness: 0.68
    previousThickness: 0.71
  - componentId: nozzle-1
    componentType: shell
    materialSpec: Unobtainium 9000
    actualThickness: 0.50
`

// pipelineStack is the production wiring on a sqlite store.
type pipelineStack struct {
	store  *statestore.SQLiteStore
	audit  *audit.Service
	queue  *queue.InMemoryQueue
	worker *worker.RecalculationWorker
}

func newPipelineStack(t *testing.T) *pipelineStack {
	t.Helper()
	logger := observability.NewLogger("error")

	table, err := materials.DefaultTable()
	require.NoError(t, err)
	resolver, err := materials.NewResolver(table)
	require.NoError(t, err)
	classifier, err := policy.NewClassifier(logger, policy.StatusPolicy{})
	require.NoError(t, err)
	engine := validation.NewEngine(logger, resolver, validation.Config{})

	store, err := statestore.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	auditSvc := audit.NewService(logger, store, audit.WithHMACKey([]byte("pipeline-key")))
	svc := assessment.NewService(logger, engine, classifier, assessment.WithAudit(auditSvc))

	q := queue.NewInMemoryQueue(10)
	t.Cleanup(func() { q.Close() })

	w := worker.NewRecalculationWorker(q, svc, store, worker.Config{
		RetryAttempts: 2,
		RetryBackoff:  10 * time.Millisecond,
		Concurrency:   1,
	}, logger, worker.WithIntegrityCheck(auditSvc.CountUnverified))

	return &pipelineStack{store: store, audit: auditSvc, queue: q, worker: w}
}

// start runs the worker until the test ends
func (s *pipelineStack) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.worker.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *pipelineStack) waitForRun(t *testing.T, inspectionID string, status statestore.RunStatus) *statestore.RecalculationRun {
	t.Helper()
	var run *statestore.RecalculationRun
	require.Eventually(t, func() bool {
		runs, err := s.store.ListRuns(context.Background(), inspectionID, 1)
		if err != nil || len(runs) == 0 {
			return false
		}
		run = runs[0]
		return run.Status == status
	}, 5*time.Second, 20*time.Millisecond, "run for %s never reached %s", inspectionID, status)
	return run
}

func TestPipeline_DroppedPackageReachesAuditTrail(t *testing.T) {
	stack := newPipelineStack(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "insp-7.yml"), []byte(dropPackage), 0o644))

	w := watcher.NewWatcher(stack.worker, watcher.Config{Dir: dir}, nil)
	require.NoError(t, w.Discover(ctx))

	runs, err := stack.store.ListRuns(ctx, "insp-7", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, statestore.RunQueued, runs[0].Status)
	assert.Equal(t, queue.SourceWatcher, runs[0].Source)

	stack.start(t)
	run := stack.waitForRun(t, "insp-7", statestore.RunCompleted)
	assert.Equal(t, runs[0].ID, run.ID, "the run keeps its task id from queued to completed")
	assert.Equal(t, 2, run.Components)
	assert.Equal(t, 1, run.Skipped)

	// Two calculations and one rejection, chained and signed
	chain, err := stack.audit.VerifyChain(ctx, audit.EntityInspection, "insp-7")
	require.NoError(t, err)
	assert.True(t, chain.Valid)
	assert.Equal(t, 3, chain.Entries)

	entries, err := stack.audit.Query(ctx, statestore.AuditFilter{EntityID: "insp-7"})
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, watcher.RequestedBy, e.UserID)
		assert.True(t, stack.audit.VerifyChecksum(e))
	}

	unverified, err := stack.audit.CountUnverified(ctx)
	require.NoError(t, err)
	assert.Zero(t, unverified)

	processed, err := os.ReadDir(filepath.Join(dir, watcher.ProcessedDir))
	require.NoError(t, err)
	assert.Len(t, processed, 1)
}

func TestPipeline_InvalidInspectionFailsWithoutRetry(t *testing.T) {
	stack := newPipelineStack(t)
	ctx := context.Background()

	run, err := stack.worker.Submit(ctx, &queue.RecalculationTask{
		ID:          "task-empty",
		Inspection:  types.Inspection{InspectionID: "insp-empty"},
		Source:      queue.SourceCLI,
		RequestedBy: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, statestore.RunQueued, run.Status)

	stack.start(t)
	failed := stack.waitForRun(t, "insp-empty", statestore.RunFailed)
	assert.Contains(t, failed.ErrorMessage, "no components")

	// The inspection is released once its task fails
	assert.False(t, stack.queue.IsPending("insp-empty"))

	entries, err := stack.audit.Query(ctx, statestore.AuditFilter{EntityID: "insp-empty"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_DuplicateSubmissionIsRejected(t *testing.T) {
	stack := newPipelineStack(t)
	ctx := context.Background()

	task := func(id string) *queue.RecalculationTask {
		return &queue.RecalculationTask{
			ID:         id,
			Inspection: types.Inspection{InspectionID: "insp-dup", Components: []types.ComponentInput{{ComponentID: "c-1"}}},
			Source:     queue.SourceAPI,
		}
	}

	_, err := stack.worker.Submit(ctx, task("t-1"))
	require.NoError(t, err)

	_, err = stack.worker.Submit(ctx, task("t-2"))
	assert.True(t, errors.Is(err, queue.ErrAlreadyQueued))

	runs, err := stack.store.ListRuns(ctx, "insp-dup", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "a rejected duplicate records no run")
}
