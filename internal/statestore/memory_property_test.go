package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMemoryStoreRetentionProperty checks that after any number of writes the
// store holds exactly the newest min(n, limit) records in reverse order.
func TestMemoryStoreRetentionProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("retains the newest records, newest first", prop.ForAll(
		func(limit int, writes int) bool {
			store := NewMemoryStore(limit)
			ctx := context.Background()
			base := time.Now()

			for i := 1; i <= writes; i++ {
				if err := store.RecordSnapshot(ctx, record(i, base.Add(time.Duration(i)))); err != nil {
					return false
				}
			}

			records, err := store.ListSnapshots(ctx, 0)
			if err != nil {
				return false
			}

			want := writes
			if limit < want {
				want = limit
			}
			if len(records) != want {
				t.Logf("limit=%d writes=%d: got %d records", limit, writes, len(records))
				return false
			}
			for i, r := range records {
				if r.Metrics.Threats != writes-i {
					t.Logf("limit=%d writes=%d: record %d has threats %d", limit, writes, i, r.Metrics.Threats)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}
