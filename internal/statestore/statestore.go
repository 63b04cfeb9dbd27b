package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrEntryNotFound is returned by LastForEntity when the entity has no audit
// history yet. This is the normal state of a new entity and starts its chain.
var ErrEntryNotFound = errors.New("audit entry not found")

// ErrResetNotAllowed is returned by MemoryStore.Reset outside test mode.
var ErrResetNotAllowed = errors.New("reset is only allowed in test mode")

// ErrStoreClosed is returned by Ping after Close.
var ErrStoreClosed = errors.New("store is closed")

// AuditStore persists audit entries. Entries are append-only: no operation
// updates or deletes a stored entry.
type AuditStore interface {
	// Append stores entry and assigns its insertion sequence
	Append(ctx context.Context, entry *AuditEntry) error

	// Query returns entries matching filter, newest first unless
	// filter.Ascending is set
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)

	// Count returns the number of entries matching filter, ignoring paging
	Count(ctx context.Context, filter AuditFilter) (int, error)

	// LastForEntity returns the most recent entry for an entity
	LastForEntity(ctx context.Context, entityType, entityID string) (*AuditEntry, error)

	// Stats summarizes the store for metrics
	Stats(ctx context.Context) (*AuditStats, error)

	// Ping checks the store is reachable
	Ping(ctx context.Context) error

	Close() error
}

// AuditEntry is one immutable record of a calculation or data change.
// Payload fields hold canonical JSON.
type AuditEntry struct {
	// Seq is the insertion sequence, assigned by the store. It breaks
	// timestamp ties and is not covered by the checksum.
	Seq int64 `json:"-"`

	ID                 string          `json:"id"`
	Timestamp          time.Time       `json:"timestamp"`
	Action             string          `json:"action"`
	EntityType         string          `json:"entityType"`
	EntityID           string          `json:"entityId"`
	UserID             string          `json:"userId"`
	UserName           string          `json:"userName"`
	PreviousValues     json.RawMessage `json:"previousValues,omitempty"`
	NewValues          json.RawMessage `json:"newValues,omitempty"`
	CalculationInputs  json.RawMessage `json:"calculationInputs,omitempty"`
	CalculationOutputs json.RawMessage `json:"calculationOutputs,omitempty"`
	CodeReferences     []string        `json:"codeReferences"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	PreviousChecksum   string          `json:"previousChecksum,omitempty"`
	Checksum           string          `json:"checksum"`
}

// Clone returns a deep copy of e.
func (e *AuditEntry) Clone() *AuditEntry {
	c := *e
	c.PreviousValues = cloneRaw(e.PreviousValues)
	c.NewValues = cloneRaw(e.NewValues)
	c.CalculationInputs = cloneRaw(e.CalculationInputs)
	c.CalculationOutputs = cloneRaw(e.CalculationOutputs)
	c.Metadata = cloneRaw(e.Metadata)
	if e.CodeReferences != nil {
		c.CodeReferences = append([]string(nil), e.CodeReferences...)
	}
	return &c
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

// AuditFilter defines criteria for querying audit entries. Zero fields do
// not filter.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Action     string
	UserID     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	// Ascending returns oldest first
	Ascending bool
}

// Matches reports whether e satisfies every set criterion.
func (f AuditFilter) Matches(e *AuditEntry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// AuditStats summarizes the store contents.
type AuditStats struct {
	TotalEntries int
	Entities     int
	ByAction     map[string]int
	LastEntryAt  *time.Time
}

// RunStatus is the state of a recalculation run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunStore records batch recalculation runs. Unlike audit entries, a run is
// updated in place as it progresses.
type RunStore interface {
	// RecordRun inserts or updates run by ID
	RecordRun(ctx context.Context, run *RecalculationRun) error

	// ListRuns returns runs newest first, optionally for one inspection
	ListRuns(ctx context.Context, inspectionID string, limit int) ([]*RecalculationRun, error)
}

// RecalculationRun tracks one queued recalculation of an inspection.
type RecalculationRun struct {
	ID           string    `json:"id"`
	InspectionID string    `json:"inspectionId"`
	Source       string    `json:"source"`
	RequestedBy  string    `json:"requestedBy"`
	Status       RunStatus `json:"status"`
	Components   int       `json:"components"`
	Skipped      int       `json:"skipped"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store is the full persistence surface used by the service.
type Store interface {
	AuditStore
	RunStore
}
