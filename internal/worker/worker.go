package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// Worker defines the interface for processing recalculation tasks
type Worker interface {
	// Start begins processing tasks from the queue
	Start(ctx context.Context) error

	// ProcessTask recalculates every component of one inspection
	ProcessTask(ctx context.Context, task *queue.RecalculationTask) error
}

// Assessor assesses one inspection. *assessment.Service satisfies it.
type Assessor interface {
	AssessVessel(ctx context.Context, insp types.Inspection, actor assessment.Actor) (*types.VesselAssessment, error)
}

// Config contains configuration for the worker
type Config struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	Concurrency   int // Number of concurrent workers
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryBackoff:  10 * time.Second,
		Concurrency:   3,
	}
}

// Option configures a RecalculationWorker.
type Option func(*RecalculationWorker)

// WithIntegrityCheck enables the audit integrity metric on the audit collector.
func WithIntegrityCheck(fn observability.IntegrityCheckFunc) Option {
	return func(w *RecalculationWorker) { w.integrity = fn }
}

// RecalculationWorker implements the Worker interface
type RecalculationWorker struct {
	queue     queue.TaskQueue
	assessor  Assessor
	store     statestore.Store
	integrity observability.IntegrityCheckFunc
	config    Config
	logger    *slog.Logger
	wg        sync.WaitGroup
	pipeline  *Pipeline
}

// NewRecalculationWorker creates a new worker instance. store records run
// progress and may be nil.
func NewRecalculationWorker(
	queue queue.TaskQueue,
	assessor Assessor,
	store statestore.Store,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) *RecalculationWorker {
	if logger == nil {
		logger = slog.Default()
	}

	worker := &RecalculationWorker{
		queue:    queue,
		assessor: assessor,
		store:    store,
		config:   config,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(worker)
	}

	worker.pipeline = NewPipeline(worker, logger)

	return worker
}

// Submit enqueues task and records it as a queued run. A duplicate
// inspection returns queue.ErrAlreadyQueued and records nothing.
func (w *RecalculationWorker) Submit(ctx context.Context, task *queue.RecalculationTask) (*statestore.RecalculationRun, error) {
	if task != nil && task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	if err := w.queue.Enqueue(ctx, task); err != nil {
		return nil, err
	}

	run := buildRun(task, statestore.RunQueued)
	w.recordRun(ctx, run)
	return run, nil
}

// Start begins processing tasks from the queue
func (w *RecalculationWorker) Start(ctx context.Context) error {
	concurrency := w.config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	w.logger.Info("worker starting", "concurrency", concurrency)

	// Register audit metrics collector (once across all worker instances)
	if w.store != nil {
		observability.RegisterAuditCollector(w.store, w.integrity, w.logger)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			w.processLoop(workerCtx, workerID)
		}(i)
	}

	<-workerCtx.Done()

	w.logger.Info("worker shutting down, waiting for in-flight tasks to complete")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker shutdown complete")
		return nil
	case <-time.After(30 * time.Second):
		w.logger.Warn("worker shutdown timeout, some tasks may not have completed")
		return fmt.Errorf("shutdown timeout")
	}
}

// processLoop dequeues until ctx ends or the queue is closed
func (w *RecalculationWorker) processLoop(ctx context.Context, workerID int) {
	log := w.logger.With("worker_id", workerID)
	log.Debug("worker processing loop started")

	for ctx.Err() == nil {
		task, err := w.queue.Dequeue(ctx)
		switch {
		case err == nil:
			w.handle(ctx, log, task)
		case ctx.Err() != nil:
		case errors.IsPermanent(err):
			log.Info("queue closed, worker processing loop stopping", "error", err)
			return
		default:
			log.Error("failed to dequeue task", "error", err)
			// Avoid a tight loop on a persistent queue fault
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	log.Debug("worker processing loop stopping")
}

// handle runs one task and reports its outcome to the queue, which releases
// the inspection either way
func (w *RecalculationWorker) handle(ctx context.Context, log *slog.Logger, task *queue.RecalculationTask) {
	log = log.With("task_id", task.ID, "inspection_id", task.InspectionID())
	log.Info("recalculating inspection",
		"components", len(task.Inspection.Components),
		"source", task.Source)

	metrics := observability.GetMetrics()
	if err := w.ProcessTask(ctx, task); err != nil {
		log.Error("recalculation failed",
			"error_class", errors.ClassifyError(err).String(),
			"error", err)
		metrics.WorkerErrors.Inc()
		_ = w.queue.Fail(context.WithoutCancel(ctx), task.ID, err)
		return
	}
	metrics.WorkerTasksProcessed.Inc()
	_ = w.queue.Complete(context.WithoutCancel(ctx), task.ID)
}

// retryDelay returns how long to wait before the next attempt, and false
// when err must not be retried. Only transient errors are retried, with a
// linear backoff; input, permanent and unclassified errors fail at once.
func (w *RecalculationWorker) retryDelay(err error, attempt int) (time.Duration, bool) {
	if errors.ClassifyError(err) != errors.ClassTransient || attempt >= w.config.RetryAttempts {
		return 0, false
	}
	return w.config.RetryBackoff * time.Duration(attempt), true
}

// ProcessTask recalculates one inspection, retrying transient failures, and
// records the run outcome.
func (w *RecalculationWorker) ProcessTask(ctx context.Context, task *queue.RecalculationTask) error {
	if task == nil {
		return errors.NewPermanentf("task is nil")
	}

	attempts := max(w.config.RetryAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		task.Attempts = attempt
		res, err := w.pipeline.Execute(ctx, task)
		if err == nil {
			w.recordRun(ctx, completedRun(task, res))
			return nil
		}
		lastErr = err

		backoff, retry := w.retryDelay(err, attempt)
		if !retry {
			if errors.IsTransient(err) {
				err = errors.NewPermanentf("max retries exceeded: %w", err)
			}
			w.recordRun(context.WithoutCancel(ctx), failedRun(task, err))
			return err
		}
		w.logger.Warn("transient error, retrying",
			"task_id", task.ID,
			"inspection_id", task.InspectionID(),
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			w.recordRun(context.WithoutCancel(ctx), failedRun(task, ctx.Err()))
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	// Unreachable: the last attempt never retries
	return lastErr
}

// recordRun persists run progress. Failures are logged, never returned:
// the run table is bookkeeping and the audit log is the record.
func (w *RecalculationWorker) recordRun(ctx context.Context, run *statestore.RecalculationRun) {
	if w.store == nil || run == nil {
		return
	}
	if err := w.store.RecordRun(ctx, run); err != nil {
		w.logger.Error("failed to record recalculation run",
			"run_id", run.ID,
			"inspection_id", run.InspectionID,
			"status", run.Status,
			"error", err)
	}
}
