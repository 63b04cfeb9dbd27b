package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
)

// mockSubmitter records submitted tasks
type mockSubmitter struct {
	mu    sync.Mutex
	tasks []*queue.RecalculationTask
	err   error
}

func (m *mockSubmitter) Submit(ctx context.Context, task *queue.RecalculationTask) (*statestore.RecalculationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &statestore.RecalculationRun{ID: task.ID, InspectionID: task.InspectionID(), Status: statestore.RunQueued}, nil
}

func (m *mockSubmitter) submitted() []*queue.RecalculationTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*queue.RecalculationTask(nil), m.tasks...)
}

func (m *mockSubmitter) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func packageDoc(inspectionID string) string {
	return fmt.Sprintf(`version: 1
inspectionId: %s
vessel: V-101
defaults:
  designPressure: 250
components:
  - componentId: shell-1
    componentType: shell
    actualThickness: 0.70
`, inspectionID)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestWatcher(t *testing.T, sub Submitter, settle time.Duration) (*watcherImpl, string) {
	t.Helper()
	dir := t.TempDir()
	w := NewWatcher(sub, Config{Dir: dir, Settle: settle}, nil).(*watcherImpl)
	if err := w.prepareDirs(); err != nil {
		t.Fatal(err)
	}
	return w, dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestDiscover_EnqueuesPackages(t *testing.T) {
	sub := &mockSubmitter{}
	w, dir := newTestWatcher(t, sub, 0)

	path := writeFile(t, dir, "insp-1.yml", packageDoc("insp-1"))
	writeFile(t, dir, "notes.txt", "not a package")

	if err := w.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	tasks := sub.submitted()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.InspectionID() != "insp-1" {
		t.Errorf("expected inspection insp-1, got %s", task.InspectionID())
	}
	if task.Source != queue.SourceWatcher || task.RequestedBy != RequestedBy {
		t.Errorf("unexpected task origin %s/%s", task.Source, task.RequestedBy)
	}
	if task.Origin != path {
		t.Errorf("expected origin %s, got %s", path, task.Origin)
	}
	if task.ID == "" {
		t.Error("expected a task ID")
	}
	// Defaults are merged before the task is queued
	if got := task.Inspection.Components[0].DesignPressure; got != 250 {
		t.Errorf("expected merged design pressure 250, got %v", got)
	}
	if got := task.Inspection.Components[0].InspectionID; got != "insp-1" {
		t.Errorf("expected component inspection insp-1, got %s", got)
	}

	processed := listDir(t, filepath.Join(dir, ProcessedDir))
	if len(processed) != 1 || !strings.HasSuffix(processed[0], "-insp-1.yml") {
		t.Errorf("expected package moved to processed, got %v", processed)
	}
	if remaining := listDir(t, dir); len(remaining) != 1 || remaining[0] != "notes.txt" {
		t.Errorf("expected only notes.txt left, got %v", remaining)
	}

	// A second cycle finds nothing new
	if err := w.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(sub.submitted()) != 1 {
		t.Errorf("expected no new tasks, got %d", len(sub.submitted()))
	}
}

func TestDiscover_RejectsInvalidPackage(t *testing.T) {
	sub := &mockSubmitter{}
	w, dir := newTestWatcher(t, sub, 0)

	writeFile(t, dir, "broken.yml", "inspectionId: insp-1\n")

	if err := w.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(sub.submitted()) != 0 {
		t.Errorf("expected no tasks, got %d", len(sub.submitted()))
	}

	failed := listDir(t, filepath.Join(dir, FailedDir))
	if len(failed) != 2 {
		t.Fatalf("expected package and reason in failed dir, got %v", failed)
	}
	var reason string
	for _, name := range failed {
		if strings.HasSuffix(name, ".error") {
			data, err := os.ReadFile(filepath.Join(dir, FailedDir, name))
			if err != nil {
				t.Fatal(err)
			}
			reason = string(data)
		}
	}
	if !strings.Contains(reason, "has no components") {
		t.Errorf("expected rejection reason, got %q", reason)
	}
}

func TestDiscover_AlreadyQueuedIsRetried(t *testing.T) {
	sub := &mockSubmitter{err: queue.ErrAlreadyQueued}
	w, dir := newTestWatcher(t, sub, 0)

	writeFile(t, dir, "insp-1.yml", packageDoc("insp-1"))

	if err := w.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if remaining := listDir(t, dir); len(remaining) != 1 {
		t.Fatalf("expected package to stay in the drop dir, got %v", remaining)
	}

	// Once the running recalculation finishes the package goes through
	sub.setErr(nil)
	w.processSettled(context.Background())

	if len(sub.submitted()) != 1 {
		t.Fatalf("expected 1 task after retry, got %d", len(sub.submitted()))
	}
	if remaining := listDir(t, dir); len(remaining) != 0 {
		t.Errorf("expected drop dir to be empty, got %v", remaining)
	}
}

func TestDiscover_WaitsForSettle(t *testing.T) {
	sub := &mockSubmitter{}
	w, dir := newTestWatcher(t, sub, time.Hour)

	now := time.Now()
	w.now = func() time.Time { return now }
	path := writeFile(t, dir, "insp-1.yml", packageDoc("insp-1"))
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}

	if err := w.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(sub.submitted()) != 0 {
		t.Fatal("expected a fresh file to wait")
	}

	now = now.Add(time.Hour)
	w.processSettled(context.Background())
	if len(sub.submitted()) != 1 {
		t.Errorf("expected settled file to be submitted, got %d", len(sub.submitted()))
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	w := NewWatcher(&mockSubmitter{}, Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil)

	err := w.Discover(context.Background())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !errors.IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestStart_PicksUpDroppedFiles(t *testing.T) {
	sub := &mockSubmitter{}
	dir := filepath.Join(t.TempDir(), "drop")
	w := NewWatcher(sub, Config{Dir: dir, Settle: 50 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	// Start creates the directory; wait for it
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(dir, ProcessedDir)); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not create its directories")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	writeFile(t, dir, "insp-7.yaml", packageDoc("insp-7"))

	for len(sub.submitted()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dropped package was not enqueued")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := sub.submitted()[0].InspectionID(); got != "insp-7" {
		t.Errorf("expected insp-7, got %s", got)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
