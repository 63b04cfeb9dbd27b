package statestore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Entries are copied on the
// way in and out, so callers can never alter stored values.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*AuditEntry
	runs     map[string]*RecalculationRun
	seq      int64
	testMode bool
	closed   bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTestMode permits Reset.
func WithTestMode() MemoryOption {
	return func(s *MemoryStore) { s.testMode = true }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{runs: make(map[string]*RecalculationRun)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset discards all entries. It fails unless the store was created with
// WithTestMode.
func (s *MemoryStore) Reset() error {
	if !s.testMode {
		return ErrResetNotAllowed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.runs = make(map[string]*RecalculationRun)
	s.seq = 0
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, entry *AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry.Seq = s.seq
	stored := entry.Clone()
	if stored.CodeReferences == nil {
		stored.CodeReferences = []string{}
	}
	s.entries = append(s.entries, stored)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := []*AuditEntry{}
	for _, e := range s.entries {
		if filter.Matches(e) {
			matched = append(matched, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if filter.Ascending {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
		if filter.Ascending {
			return a.Seq < b.Seq
		}
		return a.Seq > b.Seq
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*AuditEntry{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter AuditFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if filter.Matches(e) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) LastForEntity(ctx context.Context, entityType, entityID string) (*AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			return e.Clone(), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *MemoryStore) Stats(ctx context.Context) (*AuditStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &AuditStats{TotalEntries: len(s.entries), ByAction: make(map[string]int)}
	entities := make(map[[2]string]struct{})
	for _, e := range s.entries {
		stats.ByAction[e.Action]++
		entities[[2]string{e.EntityType, e.EntityID}] = struct{}{}
		if stats.LastEntryAt == nil || e.Timestamp.After(*stats.LastEntryAt) {
			t := e.Timestamp
			stats.LastEntryAt = &t
		}
	}
	stats.Entities = len(entities)
	return stats, nil
}

func (s *MemoryStore) RecordRun(ctx context.Context, run *RecalculationRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.runs[run.ID]; ok {
		run.CreatedAt = existing.CreatedAt
	} else if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, inspectionID string, limit int) ([]*RecalculationRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	runs := []*RecalculationRun{}
	for _, r := range s.runs {
		if inspectionID == "" || r.InspectionID == inspectionID {
			c := *r
			runs = append(runs, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
