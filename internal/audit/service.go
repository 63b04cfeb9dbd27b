package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// Actions recorded in the audit log.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionCalculation = "calculation"
)

// Entity types used by this service. Collaborators may log others.
const (
	EntityInspection = "inspection"
	EntityComponent  = "component"
)

// EntryInput describes an entry to append. Payload values are stored as
// canonical JSON.
type EntryInput struct {
	Action             string
	EntityType         string
	EntityID           string
	UserID             string
	UserName           string
	PreviousValues     any
	NewValues          any
	CalculationInputs  any
	CalculationOutputs any
	CodeReferences     []string
	Metadata           map[string]any
}

// Option configures a Service.
type Option func(*Service)

// WithHMACKey switches checksums to HMAC-SHA-256 under key.
func WithHMACKey(key []byte) Option {
	return func(s *Service) { s.hasher = NewHasher(key) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides entry ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service appends checksummed entries to an AuditStore and answers
// integrity questions about them. All appends go through one lock so each
// entity's chain links entries in commit order.
type Service struct {
	logger *slog.Logger
	store  statestore.AuditStore
	hasher *Hasher
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// NewService creates an audit service over store.
func NewService(logger *slog.Logger, store statestore.AuditStore, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger: logger,
		store:  store,
		hasher: NewHasher(nil),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() statestore.AuditStore {
	return s.store
}

// LogAuditEntry appends a new entry and returns a copy of it.
func (s *Service) LogAuditEntry(ctx context.Context, in EntryInput) (*statestore.AuditEntry, error) {
	if in.Action == "" || in.EntityType == "" || in.EntityID == "" || in.UserID == "" {
		return nil, errors.NewPermanentf("%w: action, entity type, entity id and user id are required", errors.ErrInvalidInput)
	}

	entry := &statestore.AuditEntry{
		Action:         in.Action,
		EntityType:     in.EntityType,
		EntityID:       in.EntityID,
		UserID:         in.UserID,
		UserName:       in.UserName,
		CodeReferences: append([]string{}, in.CodeReferences...),
	}

	var err error
	payloads := []struct {
		name  string
		value any
		dst   *json.RawMessage
	}{
		{"previous values", in.PreviousValues, &entry.PreviousValues},
		{"new values", in.NewValues, &entry.NewValues},
		{"calculation inputs", in.CalculationInputs, &entry.CalculationInputs},
		{"calculation outputs", in.CalculationOutputs, &entry.CalculationOutputs},
	}
	for _, p := range payloads {
		if *p.dst, err = Canonicalize(p.value); err != nil {
			return nil, errors.NewPermanentf("%w: %s: %w", errors.ErrInvalidInput, p.name, err)
		}
	}
	if len(in.Metadata) > 0 {
		if entry.Metadata, err = Canonicalize(in.Metadata); err != nil {
			return nil, errors.NewPermanentf("%w: metadata: %w", errors.ErrInvalidInput, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.store.LastForEntity(ctx, entry.EntityType, entry.EntityID)
	switch {
	case errors.Is(err, statestore.ErrEntryNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	default:
		entry.PreviousChecksum = last.Checksum
	}

	entry.ID = s.newID()
	entry.Timestamp = s.now().UTC()
	if entry.Checksum, err = s.hasher.Sum(entry); err != nil {
		return nil, errors.NewPermanent(err)
	}

	if err := s.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	s.logger.Debug("audit entry appended",
		"entry_id", entry.ID,
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID)

	return entry.Clone(), nil
}

// LogCalculationAudit records a calculation with its full trace. metadata
// is merged with the trace formulas.
func (s *Service) LogCalculationAudit(ctx context.Context, entityType, entityID, userID, userName string, trace types.CalculationTrace, metadata map[string]any) (*statestore.AuditEntry, error) {
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["formulas"] = trace.Formulas

	return s.LogAuditEntry(ctx, EntryInput{
		Action:             ActionCalculation,
		EntityType:         entityType,
		EntityID:           entityID,
		UserID:             userID,
		UserName:           userName,
		CalculationInputs:  trace.Inputs,
		CalculationOutputs: trace.Outputs,
		CodeReferences:     trace.CodeReferences,
		Metadata:           meta,
	})
}

// LogDataChange records a create, update or delete made by a collaborator.
func (s *Service) LogDataChange(ctx context.Context, entityType, entityID, userID, userName, action string, previous, next any) (*statestore.AuditEntry, error) {
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return nil, errors.NewPermanentf("%w: unsupported data change action %q", errors.ErrInvalidInput, action)
	}
	return s.LogAuditEntry(ctx, EntryInput{
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		UserID:         userID,
		UserName:       userName,
		PreviousValues: previous,
		NewValues:      next,
	})
}

// VerifyChecksum reports whether entry still matches its checksum.
func (s *Service) VerifyChecksum(entry *statestore.AuditEntry) bool {
	return s.hasher.Verify(entry)
}

// ChainVerification is the result of walking one entity's history.
type ChainVerification struct {
	EntityType    string `json:"entityType"`
	EntityID      string `json:"entityId"`
	Entries       int    `json:"entries"`
	Valid         bool   `json:"valid"`
	BrokenEntryID string `json:"brokenEntryId,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// VerifyChain checks every entry checksum of an entity and that each entry
// links to its predecessor. It stops at the first broken entry.
func (s *Service) VerifyChain(ctx context.Context, entityType, entityID string) (*ChainVerification, error) {
	entries, err := s.store.Query(ctx, statestore.AuditFilter{
		EntityType: entityType,
		EntityID:   entityID,
		Ascending:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load audit chain: %w", err)
	}

	// Chain order is commit order, which the sequence records
	sortBySeq(entries)

	result := &ChainVerification{EntityType: entityType, EntityID: entityID, Entries: len(entries), Valid: true}
	prev := ""
	for _, e := range entries {
		if !s.hasher.Verify(e) {
			result.fail(e.ID, "checksum does not match entry contents")
			break
		}
		if e.PreviousChecksum != prev {
			result.fail(e.ID, "previous checksum does not match the preceding entry")
			break
		}
		prev = e.Checksum
	}

	if !result.Valid {
		observability.GetMetrics().AuditIntegrityFailures.Inc()
		s.logger.Warn("audit chain broken",
			"entity_type", entityType,
			"entity_id", entityID,
			"entry_id", result.BrokenEntryID,
			"reason", result.Reason)
	}
	return result, nil
}

func (r *ChainVerification) fail(entryID, reason string) {
	r.Valid = false
	r.BrokenEntryID = entryID
	r.Kind = string(errors.KindChecksumMismatch)
	r.Reason = reason
}

// Query returns entries matching filter, newest first.
func (s *Service) Query(ctx context.Context, filter statestore.AuditFilter) ([]*statestore.AuditEntry, error) {
	entries, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return entries, nil
}

// Export is a snapshot of the audit log with an integrity verdict.
type Export struct {
	ExportDate        time.Time                `json:"exportDate"`
	TotalEntries      int                      `json:"totalEntries"`
	Entries           []*statestore.AuditEntry `json:"entries"`
	IntegrityVerified bool                     `json:"integrityVerified"`
	FailedEntryIDs    []string                 `json:"failedEntryIds,omitempty"`
}

// Export returns the entries matching filter with integrityVerified set to
// the conjunction of every entry's checksum verification.
func (s *Service) Export(ctx context.Context, filter statestore.AuditFilter) (*Export, error) {
	entries, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to export audit log: %w", err)
	}

	export := &Export{
		ExportDate:        s.now().UTC(),
		TotalEntries:      len(entries),
		Entries:           entries,
		IntegrityVerified: true,
	}
	for _, e := range entries {
		if !s.hasher.Verify(e) {
			export.IntegrityVerified = false
			export.FailedEntryIDs = append(export.FailedEntryIDs, e.ID)
		}
	}

	if !export.IntegrityVerified {
		observability.GetMetrics().AuditIntegrityFailures.Inc()
		s.logger.Warn("audit export failed integrity verification",
			"failed_entries", len(export.FailedEntryIDs),
			"total_entries", export.TotalEntries)
	}
	return export, nil
}

func sortBySeq(entries []*statestore.AuditEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
}

// CountUnverified returns how many stored entries fail checksum
// verification. It scans the whole log and backs the integrity metric.
func (s *Service) CountUnverified(ctx context.Context) (int, error) {
	export, err := s.Export(ctx, statestore.AuditFilter{})
	if err != nil {
		return 0, err
	}
	return len(export.FailedEntryIDs), nil
}
