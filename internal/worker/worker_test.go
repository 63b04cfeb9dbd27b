package worker

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// mockQueue implements queue.TaskQueue for testing
type mockQueue struct {
	tasks      chan *queue.RecalculationTask
	dequeueErr error
	closed     bool

	mu        sync.Mutex
	completed []string
	failed    []string
}

func newMockQueue(bufferSize int) *mockQueue {
	return &mockQueue{
		tasks: make(chan *queue.RecalculationTask, bufferSize),
	}
}

func (m *mockQueue) Enqueue(ctx context.Context, task *queue.RecalculationTask) error {
	if m.closed {
		return stderrors.New("queue closed")
	}
	select {
	case m.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockQueue) Dequeue(ctx context.Context) (*queue.RecalculationTask, error) {
	if m.dequeueErr != nil {
		return nil, m.dequeueErr
	}
	select {
	case task, ok := <-m.tasks:
		if !ok {
			return nil, stderrors.New("queue closed")
		}
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockQueue) Complete(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, taskID)
	return nil
}

func (m *mockQueue) Fail(ctx context.Context, taskID string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, taskID)
	return nil
}

func (m *mockQueue) outcomes() (completed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completed), len(m.failed)
}

func (m *mockQueue) GetQueueDepth(ctx context.Context) (int, error) {
	return len(m.tasks), nil
}

func (m *mockQueue) Close() error {
	if m.closed {
		return stderrors.New("already closed")
	}
	m.closed = true
	close(m.tasks)
	return nil
}

// fakeAssessor returns errs in order, then succeeds.
type fakeAssessor struct {
	mu    sync.Mutex
	errs  []error
	calls int
	actor assessment.Actor
}

func (f *fakeAssessor) AssessVessel(ctx context.Context, insp types.Inspection, actor assessment.Actor) (*types.VesselAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.actor = actor
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &types.VesselAssessment{
		InspectionID: insp.InspectionID,
		Calculated:   len(insp.Components) - 1,
		Skipped:      1,
		Components: []types.ComponentOutcome{
			{ComponentID: "nozzle-1", Error: "material not found", ErrorKind: string(errors.KindMaterialNotFound)},
		},
		WorstStatus: types.StatusMonitoring,
	}, nil
}

func (f *fakeAssessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	return Config{RetryAttempts: 3, RetryBackoff: time.Millisecond, Concurrency: 2}
}

func testTask(id string) *queue.RecalculationTask {
	return &queue.RecalculationTask{
		ID: id,
		Inspection: types.Inspection{
			InspectionID: "insp-" + id,
			Components: []types.ComponentInput{
				{ComponentID: "shell-1", ComponentType: types.ComponentShell},
				{ComponentID: "nozzle-1", ComponentType: types.ComponentShell},
			},
		},
		Source:      queue.SourceAPI,
		RequestedBy: "u-1",
		UserName:    "Inspector One",
		EnqueuedAt:  time.Now(),
	}
}

func lastRun(t *testing.T, store *statestore.MemoryStore, inspectionID string) *statestore.RecalculationRun {
	t.Helper()
	runs, err := store.ListRuns(context.Background(), inspectionID, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run for %s, got %d", inspectionID, len(runs))
	}
	return runs[0]
}

func TestNewRecalculationWorker(t *testing.T) {
	mockQ := newMockQueue(10)
	config := DefaultConfig()

	worker := NewRecalculationWorker(mockQ, nil, nil, config, nil)

	if worker == nil {
		t.Fatal("expected worker to be created")
	}
	if worker.queue != mockQ {
		t.Error("expected queue to be set")
	}
	if worker.logger == nil {
		t.Error("expected logger to be set")
	}
	if worker.config.RetryAttempts != config.RetryAttempts {
		t.Errorf("expected retry attempts %d, got %d", config.RetryAttempts, worker.config.RetryAttempts)
	}
	if worker.pipeline == nil {
		t.Error("expected pipeline to be set")
	}
}

func TestWorkerStart_GracefulShutdown(t *testing.T) {
	worker := NewRecalculationWorker(newMockQueue(10), &fakeAssessor{}, nil, testConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("expected no error on graceful shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not shut down within timeout")
	}
}

func TestWorkerStart_ProcessesTask(t *testing.T) {
	mockQ := newMockQueue(10)
	store := statestore.NewMemoryStore()
	assessor := &fakeAssessor{}
	worker := NewRecalculationWorker(mockQ, assessor, store, testConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mockQ.Enqueue(ctx, testTask("1")); err != nil {
		t.Fatalf("failed to enqueue task: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if completed, _ := mockQ.outcomes(); completed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("task was not completed in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-errChan

	run := lastRun(t, store, "insp-1")
	if run.Status != statestore.RunCompleted {
		t.Errorf("expected completed run, got %s", run.Status)
	}
	if run.Components != 1 || run.Skipped != 1 {
		t.Errorf("expected 1 calculated and 1 skipped, got %d and %d", run.Components, run.Skipped)
	}
	if assessor.actor.UserID != "u-1" || assessor.actor.UserName != "Inspector One" {
		t.Errorf("expected requester to be passed as actor, got %+v", assessor.actor)
	}
}

func TestWorkerStart_ContextCancellation(t *testing.T) {
	worker := NewRecalculationWorker(newMockQueue(10), &fakeAssessor{}, nil, testConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not respond to context cancellation")
	}
}

func TestWorkerStart_DequeueError(t *testing.T) {
	mockQ := newMockQueue(10)
	mockQ.dequeueErr = stderrors.New("dequeue error")

	worker := NewRecalculationWorker(mockQ, &fakeAssessor{}, nil, testConfig(), slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	// Dequeue errors are logged and the loop keeps going until shutdown
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not shut down")
	}
}

func TestProcessTask_NilTask(t *testing.T) {
	worker := NewRecalculationWorker(newMockQueue(10), &fakeAssessor{}, nil, testConfig(), slog.Default())

	err := worker.ProcessTask(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for nil task")
	}
	if !strings.Contains(err.Error(), "task is nil") {
		t.Errorf("expected 'task is nil' error, got: %v", err)
	}
	if !errors.IsPermanent(err) {
		t.Error("expected a permanent error")
	}
}

func TestProcessTask_WithoutAssessor(t *testing.T) {
	worker := NewRecalculationWorker(newMockQueue(10), nil, nil, testConfig(), slog.Default())

	if err := worker.ProcessTask(context.Background(), testTask("1")); err == nil {
		t.Error("expected error when assessor is not configured")
	}
}

func TestProcessTask_RetriesTransientErrors(t *testing.T) {
	store := statestore.NewMemoryStore()
	assessor := &fakeAssessor{errs: []error{
		errors.NewTransient(errors.ErrStoreBusy),
		errors.NewTransient(errors.ErrStoreBusy),
	}}
	worker := NewRecalculationWorker(newMockQueue(10), assessor, store, testConfig(), slog.Default())

	task := testTask("1")
	if err := worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if assessor.callCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", assessor.callCount())
	}
	if task.Attempts != 3 {
		t.Errorf("expected task attempts 3, got %d", task.Attempts)
	}
	if run := lastRun(t, store, "insp-1"); run.Status != statestore.RunCompleted {
		t.Errorf("expected completed run, got %s", run.Status)
	}
}

func TestProcessTask_RetriesExhausted(t *testing.T) {
	store := statestore.NewMemoryStore()
	busy := errors.NewTransient(errors.ErrStoreBusy)
	assessor := &fakeAssessor{errs: []error{busy, busy, busy}}
	worker := NewRecalculationWorker(newMockQueue(10), assessor, store, testConfig(), slog.Default())

	err := worker.ProcessTask(context.Background(), testTask("1"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !stderrors.Is(err, errors.ErrStoreBusy) {
		t.Errorf("expected the last cause to be kept, got: %v", err)
	}
	if assessor.callCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", assessor.callCount())
	}

	run := lastRun(t, store, "insp-1")
	if run.Status != statestore.RunFailed {
		t.Errorf("expected failed run, got %s", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Error("expected error message on failed run")
	}
}

func TestProcessTask_DoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid inspection", errors.NewPermanentf("%w: inspection has no components", errors.ErrInvalidInput)},
		{"calculation input", errors.NewCalcError(errors.KindDataMissing, "actualThickness", "", "actual thickness is required")},
		{"unclassified", stderrors.New("something odd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := statestore.NewMemoryStore()
			assessor := &fakeAssessor{errs: []error{tt.err}}
			worker := NewRecalculationWorker(newMockQueue(10), assessor, store, testConfig(), slog.Default())

			if err := worker.ProcessTask(context.Background(), testTask("1")); err == nil {
				t.Fatal("expected error")
			}
			if assessor.callCount() != 1 {
				t.Errorf("expected a single attempt, got %d", assessor.callCount())
			}
			if run := lastRun(t, store, "insp-1"); run.Status != statestore.RunFailed {
				t.Errorf("expected failed run, got %s", run.Status)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	q := queue.NewInMemoryQueue(10)
	defer q.Close()
	store := statestore.NewMemoryStore()
	worker := NewRecalculationWorker(q, &fakeAssessor{}, store, testConfig(), slog.Default())

	task := testTask("1")
	task.EnqueuedAt = time.Time{}
	run, err := worker.Submit(context.Background(), task)
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	if run.Status != statestore.RunQueued {
		t.Errorf("expected queued run, got %s", run.Status)
	}
	if task.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be set")
	}

	// The same inspection cannot be submitted twice
	if _, err := worker.Submit(context.Background(), testTask("1")); !stderrors.Is(err, queue.ErrAlreadyQueued) {
		t.Errorf("expected ErrAlreadyQueued, got %v", err)
	}
	if got := lastRun(t, store, "insp-1"); got.ID != "1" {
		t.Errorf("expected run 1, got %s", got.ID)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RetryAttempts != 3 {
		t.Errorf("expected retry attempts 3, got %d", config.RetryAttempts)
	}
	if config.RetryBackoff != 10*time.Second {
		t.Errorf("expected retry backoff 10s, got %v", config.RetryBackoff)
	}
	if config.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", config.Concurrency)
	}
}
