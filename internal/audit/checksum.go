package audit

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"time"

	"github.com/daimoniac/vesselfit/internal/statestore"
)

// Canonicalize returns the canonical JSON of v: compact, object keys sorted,
// numbers kept as written. A nil v yields nil.
func Canonicalize(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok && raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	// Round-trip through generic values; encoding/json sorts map keys
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	if generic == nil {
		return nil, nil
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canonical value: %w", err)
	}
	return out, nil
}

// checksumFields lists everything the checksum covers, in a fixed order.
type checksumFields struct {
	ID                 string          `json:"id"`
	Timestamp          string          `json:"timestamp"`
	Action             string          `json:"action"`
	EntityType         string          `json:"entityType"`
	EntityID           string          `json:"entityId"`
	UserID             string          `json:"userId"`
	UserName           string          `json:"userName"`
	PreviousValues     json.RawMessage `json:"previousValues"`
	NewValues          json.RawMessage `json:"newValues"`
	CalculationInputs  json.RawMessage `json:"calculationInputs"`
	CalculationOutputs json.RawMessage `json:"calculationOutputs"`
	CodeReferences     []string        `json:"codeReferences"`
	Metadata           json.RawMessage `json:"metadata"`
	PreviousChecksum   string          `json:"previousChecksum"`
}

// Hasher computes entry checksums: SHA-256, or HMAC-SHA-256 when keyed.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. An empty key selects plain SHA-256.
func NewHasher(key []byte) *Hasher {
	return &Hasher{key: append([]byte(nil), key...)}
}

// Keyed reports whether checksums are HMACs.
func (h *Hasher) Keyed() bool {
	return len(h.key) > 0
}

// Sum returns the hex checksum of entry, ignoring entry.Checksum and Seq.
func (h *Hasher) Sum(entry *statestore.AuditEntry) (string, error) {
	refs := entry.CodeReferences
	if refs == nil {
		refs = []string{}
	}
	payload, err := json.Marshal(checksumFields{
		ID:                 entry.ID,
		Timestamp:          entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:             entry.Action,
		EntityType:         entry.EntityType,
		EntityID:           entry.EntityID,
		UserID:             entry.UserID,
		UserName:           entry.UserName,
		PreviousValues:     entry.PreviousValues,
		NewValues:          entry.NewValues,
		CalculationInputs:  entry.CalculationInputs,
		CalculationOutputs: entry.CalculationOutputs,
		CodeReferences:     refs,
		Metadata:           entry.Metadata,
		PreviousChecksum:   entry.PreviousChecksum,
	})
	if err != nil {
		// Invalid JSON in a payload field; it can no longer match any checksum
		return "", fmt.Errorf("failed to serialize entry %s: %w", entry.ID, err)
	}

	var mac hash.Hash
	if h.Keyed() {
		mac = hmac.New(sha256.New, h.key)
	} else {
		mac = sha256.New()
	}
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the checksum of entry and compares it in constant time.
func (h *Hasher) Verify(entry *statestore.AuditEntry) bool {
	sum, err := h.Sum(entry)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(sum), []byte(entry.Checksum))
}
