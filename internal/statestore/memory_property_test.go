package statestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMemoryStore_PagingProperty checks that consecutive pages of a query
// concatenate to the unpaged result, whatever the entry count and page size.
func TestMemoryStore_PagingProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pages partition the ordered result", prop.ForAll(
		func(count, pageSize int, offsets []int) bool {
			ctx := context.Background()
			store := NewMemoryStore()
			if len(offsets) == 0 {
				offsets = []int{0}
			}
			for i := 0; i < count; i++ {
				e := testEntry(i, "insp-1", "calculation")
				// Collide timestamps so the sequence tiebreak is exercised
				e.Timestamp = baseTime.Add(time.Duration(offsets[i%len(offsets)]) * time.Second)
				e.ID = fmt.Sprintf("e-%d", i)
				if err := store.Append(ctx, e); err != nil {
					return false
				}
			}

			all, err := store.Query(ctx, AuditFilter{})
			if err != nil || len(all) != count {
				return false
			}
			for i := 1; i < len(all); i++ {
				prev, cur := all[i-1], all[i]
				if prev.Timestamp.Before(cur.Timestamp) {
					return false
				}
				if prev.Timestamp.Equal(cur.Timestamp) && prev.Seq < cur.Seq {
					return false
				}
			}

			var paged []*AuditEntry
			for offset := 0; offset < count; offset += pageSize {
				page, err := store.Query(ctx, AuditFilter{Limit: pageSize, Offset: offset})
				if err != nil {
					return false
				}
				paged = append(paged, page...)
			}
			if len(paged) != len(all) {
				return false
			}
			for i := range all {
				if paged[i].ID != all[i].ID {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.IntRange(1, 7),
		gen.SliceOfN(5, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
