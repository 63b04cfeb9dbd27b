package queue

import (
	"context"
	"sync"
	"time"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/types"
)

// ErrAlreadyQueued is returned by Enqueue when the inspection already has a
// queued or running task.
var ErrAlreadyQueued = errors.New("inspection already queued for recalculation")

// Task sources.
const (
	SourceAPI     = "api"
	SourceWatcher = "watcher"
	SourceCLI     = "cli"
)

// TaskQueue manages a queue of inspection recalculation tasks
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(ctx context.Context, task *RecalculationTask) error

	// Dequeue retrieves a task for processing (blocking)
	Dequeue(ctx context.Context) (*RecalculationTask, error)

	// Complete marks a task as successfully processed and releases its inspection
	Complete(ctx context.Context, taskID string) error

	// Fail marks a task as failed and releases its inspection
	Fail(ctx context.Context, taskID string, err error) error

	// GetQueueDepth returns current queue size
	GetQueueDepth(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// RecalculationTask asks for every component of an inspection to be
// recalculated.
type RecalculationTask struct {
	ID          string
	Inspection  types.Inspection
	Source      string
	RequestedBy string
	UserName    string
	// Origin is where the inspection came from, e.g. a file path.
	Origin     string
	EnqueuedAt time.Time
	Attempts   int
}

// InspectionID returns the inspection the task recalculates.
func (t *RecalculationTask) InspectionID() string {
	return t.Inspection.InspectionID
}

// InMemoryQueue implements TaskQueue using Go channels. An inspection stays
// reserved from Enqueue until its task completes or fails, so at most one
// task per inspection is queued or in flight.
type InMemoryQueue struct {
	tasks chan *RecalculationTask
	done  chan struct{}

	mu       sync.Mutex
	reserved map[string]bool   // inspection ID -> queued or in flight
	inFlight map[string]string // task ID -> inspection ID
	closed   bool

	statsMu sync.Mutex
	stats   QueueMetrics
}

// QueueMetrics tracks queue operation statistics
type QueueMetrics struct {
	Enqueued  int64
	Dequeued  int64
	Completed int64
	Failed    int64
	// Rejected counts submissions for an inspection that was already reserved
	Rejected int64
}

// NewInMemoryQueue creates a new in-memory task queue
func NewInMemoryQueue(bufferSize int) *InMemoryQueue {
	return &InMemoryQueue{
		tasks:    make(chan *RecalculationTask, bufferSize),
		done:     make(chan struct{}),
		reserved: make(map[string]bool),
		inFlight: make(map[string]string),
	}
}

var errQueueClosed = errors.NewPermanentf("queue is closed")

func validateTask(task *RecalculationTask) error {
	switch {
	case task == nil:
		return errors.NewPermanentf("%w: task cannot be nil", errors.ErrInvalidInput)
	case task.ID == "":
		return errors.NewPermanentf("%w: task id cannot be empty", errors.ErrInvalidInput)
	case task.InspectionID() == "":
		return errors.NewPermanentf("%w: task inspection id cannot be empty", errors.ErrInvalidInput)
	}
	return nil
}

// Enqueue reserves the task's inspection and adds the task to the queue.
// It returns ErrAlreadyQueued when the inspection is already reserved.
func (q *InMemoryQueue) Enqueue(ctx context.Context, task *RecalculationTask) error {
	if err := validateTask(task); err != nil {
		return err
	}
	inspectionID := task.InspectionID()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	if q.reserved[inspectionID] {
		q.mu.Unlock()
		q.record(func(m *QueueMetrics) { m.Rejected++ }, nil)
		return ErrAlreadyQueued
	}
	q.reserved[inspectionID] = true
	q.mu.Unlock()

	select {
	case q.tasks <- task:
		q.record(func(m *QueueMetrics) { m.Enqueued++ }, observability.GetMetrics().QueueEnqueued.Inc)
		return nil
	case <-q.done:
		q.unreserve(inspectionID)
		return errQueueClosed
	case <-ctx.Done():
		q.unreserve(inspectionID)
		return ctx.Err()
	}
}

func (q *InMemoryQueue) unreserve(inspectionID string) {
	q.mu.Lock()
	delete(q.reserved, inspectionID)
	q.mu.Unlock()
}

// Dequeue blocks until a task is available, the queue is closed or ctx ends.
// Tasks buffered before Close are still handed out.
func (q *InMemoryQueue) Dequeue(ctx context.Context) (*RecalculationTask, error) {
	var task *RecalculationTask
	select {
	case task = <-q.tasks:
	case <-q.done:
		select {
		case task = <-q.tasks:
		default:
			return nil, errQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	q.mu.Lock()
	q.inFlight[task.ID] = task.InspectionID()
	q.mu.Unlock()

	q.record(func(m *QueueMetrics) { m.Dequeued++ }, observability.GetMetrics().QueueDequeued.Inc)
	return task, nil
}

// Complete releases the task's inspection
func (q *InMemoryQueue) Complete(ctx context.Context, taskID string) error {
	q.release(taskID)
	q.record(func(m *QueueMetrics) { m.Completed++ }, observability.GetMetrics().QueueCompleted.Inc)
	return nil
}

// Fail releases the task's inspection. The cause is recorded by the worker.
func (q *InMemoryQueue) Fail(ctx context.Context, taskID string, err error) error {
	q.release(taskID)
	q.record(func(m *QueueMetrics) { m.Failed++ }, observability.GetMetrics().QueueFailed.Inc)
	return nil
}

// IsPending reports whether an inspection is queued or being recalculated.
func (q *InMemoryQueue) IsPending(inspectionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reserved[inspectionID]
}

func (q *InMemoryQueue) release(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if inspectionID, ok := q.inFlight[taskID]; ok {
		delete(q.reserved, inspectionID)
		delete(q.inFlight, taskID)
	}
}

// GetQueueDepth returns the number of tasks waiting to be dequeued
func (q *InMemoryQueue) GetQueueDepth(ctx context.Context) (int, error) {
	return len(q.tasks), nil
}

// Close stops accepting tasks. Tasks already buffered can still be dequeued.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.NewPermanentf("queue already closed")
	}
	q.closed = true
	close(q.done)
	return nil
}

// GetMetrics returns a copy of current metrics
func (q *InMemoryQueue) GetMetrics() QueueMetrics {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return q.stats
}

// record updates the local counters and mirrors the change to Prometheus
func (q *InMemoryQueue) record(update func(*QueueMetrics), inc func()) {
	q.statsMu.Lock()
	update(&q.stats)
	q.statsMu.Unlock()

	if inc != nil {
		inc()
	}
	observability.GetMetrics().QueueDepth.Set(float64(len(q.tasks)))
}
