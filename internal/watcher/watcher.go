package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/inspectionfile"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
)

// Subdirectories of the drop directory that receive handled packages.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// RequestedBy is the user recorded on runs started by the watcher.
const RequestedBy = "system"

// Watcher monitors a drop directory for inspection packages and enqueues
// them for recalculation
type Watcher interface {
	// Start begins watching until ctx is cancelled
	Start(ctx context.Context) error

	// Discover performs a single scan of the drop directory
	Discover(ctx context.Context) error
}

// Submitter enqueues a recalculation. *worker.RecalculationWorker satisfies it.
type Submitter interface {
	Submit(ctx context.Context, task *queue.RecalculationTask) (*statestore.RecalculationRun, error)
}

// Config contains configuration for the watcher
type Config struct {
	Dir string
	// Settle is how long a file must go unmodified before it is read, so
	// half-copied packages are not parsed
	Settle time.Duration
	// PollInterval rescans the directory in case a file event was missed
	PollInterval time.Duration
}

// watcherImpl implements the Watcher interface
type watcherImpl struct {
	dir          string
	settle       time.Duration
	pollInterval time.Duration
	submitter    Submitter
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time // path -> last modification seen
}

// NewWatcher creates a new drop-directory watcher
func NewWatcher(submitter Submitter, config Config, logger *slog.Logger) Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	return &watcherImpl{
		dir:          config.Dir,
		settle:       config.Settle,
		pollInterval: config.PollInterval,
		submitter:    submitter,
		logger:       logger,
		now:          time.Now,
		pending:      make(map[string]time.Time),
	}
}

// Start begins watching the drop directory
func (w *watcherImpl) Start(ctx context.Context) error {
	if err := w.prepareDirs(); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewPermanentf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return errors.NewPermanentf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("starting inspection watcher",
		"dir", w.dir,
		"settle", w.settle.String(),
		"poll_interval", w.pollInterval.String())

	// Pick up packages dropped while the service was down
	if err := w.Discover(ctx); err != nil {
		w.logger.Error("initial discovery failed", "error", err.Error())
	}

	tick := w.settle / 2
	if tick < 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	settleTicker := time.NewTicker(tick)
	defer settleTicker.Stop()
	pollTicker := time.NewTicker(w.pollInterval)
	defer pollTicker.Stop()

	metrics := observability.GetMetrics()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inspection watcher shutting down")
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !inspectionfile.IsPackageFile(event.Name) {
				continue
			}
			w.note(event.Name, w.now())

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			metrics.DiscoveryErrors.Inc()
			w.logger.Error("file watcher error", "dir", w.dir, "error", err.Error())

		case <-settleTicker.C:
			w.processSettled(ctx)

		case <-pollTicker.C:
			if err := w.Discover(ctx); err != nil {
				w.logger.Error("discovery cycle failed", "error", err.Error())
			}
		}
	}
}

// Discover lists the drop directory, notes every package file and
// processes the ones that have settled
func (w *watcherImpl) Discover(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		observability.GetMetrics().DiscoveryErrors.Inc()
		return errors.NewTransientf("failed to list drop directory: %w", err)
	}

	found := 0
	for _, e := range entries {
		if e.IsDir() || !inspectionfile.IsPackageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		w.noteIfNew(filepath.Join(w.dir, e.Name()), info.ModTime())
		found++
	}

	w.logger.Debug("discovery cycle completed", "dir", w.dir, "packages", found)
	w.processSettled(ctx)
	return nil
}

func (w *watcherImpl) prepareDirs() error {
	for _, dir := range []string{w.dir, filepath.Join(w.dir, ProcessedDir), filepath.Join(w.dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewPermanentf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func (w *watcherImpl) note(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = at
}

func (w *watcherImpl) noteIfNew(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[path]; !ok {
		w.pending[path] = at
	}
}

// settled removes and returns the paths that have been quiet long enough
func (w *watcherImpl) settled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var ready []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *watcherImpl) processSettled(ctx context.Context) {
	for _, path := range w.settled() {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

// process parses one package and submits it. Packages that can be retried
// go back to pending with their original timestamp.
func (w *watcherImpl) process(ctx context.Context, path string) {
	metrics := observability.GetMetrics()
	logger := w.logger.With("path", path)

	pkg, err := inspectionfile.ParseFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if errors.IsTransient(err) {
			logger.Warn("failed to read inspection package, will retry", "error", err.Error())
			w.noteIfNew(path, w.now())
			return
		}
		metrics.DiscoveryErrors.Inc()
		logger.Error("rejected inspection package", "error", err.Error())
		w.reject(path, err)
		return
	}

	task := &queue.RecalculationTask{
		ID:          uuid.NewString(),
		Inspection:  pkg.Inspection(),
		Source:      queue.SourceWatcher,
		RequestedBy: RequestedBy,
		UserName:    "inspection watcher",
		Origin:      path,
		EnqueuedAt:  w.now().UTC(),
	}

	run, err := w.submitter.Submit(ctx, task)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			logger.Info("inspection already queued, package will be retried",
				"inspection_id", pkg.InspectionID)
		} else {
			logger.Error("failed to enqueue inspection package",
				"inspection_id", pkg.InspectionID,
				"error", err.Error())
		}
		w.noteIfNew(path, w.now())
		return
	}

	metrics.InspectionFilesDiscovered.Inc()
	logger.Info("enqueued inspection package",
		"inspection_id", pkg.InspectionID,
		"vessel", pkg.Vessel,
		"components", len(pkg.Components),
		"run_id", run.ID)

	if _, err := w.move(path, ProcessedDir); err != nil {
		logger.Error("failed to move processed package", "error", err.Error())
	}
}

// reject moves a package to the failed directory with the reason alongside
func (w *watcherImpl) reject(path string, cause error) {
	dest, err := w.move(path, FailedDir)
	if err != nil {
		w.logger.Error("failed to move rejected package", "path", path, "error", err.Error())
		return
	}
	if err := os.WriteFile(dest+".error", []byte(cause.Error()+"\n"), 0o644); err != nil {
		w.logger.Error("failed to write rejection reason", "path", dest, "error", err.Error())
	}
}

// move renames path into subdir with a timestamp prefix so repeated drops of
// the same file name never collide
func (w *watcherImpl) move(path, subdir string) (string, error) {
	dir := filepath.Join(w.dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, fmt.Sprintf("%s-%s", w.now().UTC().Format("20060102T150405.000Z"), filepath.Base(path)))
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
