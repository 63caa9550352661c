package statestore

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	svErrors "github.com/daimoniac/securevision/internal/errors"
	"github.com/daimoniac/securevision/internal/metrics"
)

func record(i int, at time.Time) *Record {
	return &Record{
		RecordedAt: at,
		Metrics: metrics.SecurityMetrics{
			Threats:         i,
			Vulnerabilities: i * 2,
			Incidents:       i % 3,
			Compliance:      float64(i%100) + 0.5,
		},
		PosturePassed: i%2 == 0,
	}
}

// testStoreContract runs the behavior every StateStore must share. The store
// must have a history limit of 3 and be empty.
func testStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("EmptyStore", func(t *testing.T) {
		_, err := store.LatestSnapshot(ctx)
		if !errors.Is(err, ErrSnapshotNotFound) {
			t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
		}
		if !errors.Is(err, svErrors.ErrNotFound) {
			t.Errorf("expected ErrSnapshotNotFound to match ErrNotFound, got %v", err)
		}

		records, err := store.ListSnapshots(ctx, 10)
		if err != nil {
			t.Fatalf("ListSnapshots failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("RecordAndLatest", func(t *testing.T) {
		if err := store.RecordSnapshot(ctx, record(1, base)); err != nil {
			t.Fatalf("RecordSnapshot failed: %v", err)
		}

		latest, err := store.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("LatestSnapshot failed: %v", err)
		}
		if latest.Metrics != record(1, base).Metrics {
			t.Errorf("expected %+v, got %+v", record(1, base).Metrics, latest.Metrics)
		}
		if !latest.RecordedAt.Equal(base) {
			t.Errorf("expected recorded_at %v, got %v", base, latest.RecordedAt)
		}
		if latest.PosturePassed {
			t.Error("expected posture_passed false for record 1")
		}
	})

	t.Run("TrimsToLimitNewestFirst", func(t *testing.T) {
		for i := 2; i <= 5; i++ {
			if err := store.RecordSnapshot(ctx, record(i, base.Add(time.Duration(i)*time.Second))); err != nil {
				t.Fatalf("RecordSnapshot %d failed: %v", i, err)
			}
		}

		records, err := store.ListSnapshots(ctx, 0)
		if err != nil {
			t.Fatalf("ListSnapshots failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 retained records, got %d", len(records))
		}
		for i, want := range []int{5, 4, 3} {
			if records[i].Metrics.Threats != want {
				t.Errorf("record %d: expected threats %d, got %d", i, want, records[i].Metrics.Threats)
			}
		}

		latest, err := store.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("LatestSnapshot failed: %v", err)
		}
		if latest.Metrics.Threats != 5 || latest.PosturePassed {
			t.Errorf("unexpected latest record %+v", latest)
		}
	})

	t.Run("ListRespectsLimit", func(t *testing.T) {
		records, err := store.ListSnapshots(ctx, 2)
		if err != nil {
			t.Fatalf("ListSnapshots failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].Metrics.Threats != 5 || records[1].Metrics.Threats != 4 {
			t.Errorf("expected threats 5,4 got %d,%d", records[0].Metrics.Threats, records[1].Metrics.Threats)
		}
		if records[0].PosturePassed || !records[1].PosturePassed {
			t.Errorf("expected posture_passed false,true got %v,%v", records[0].PosturePassed, records[1].PosturePassed)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(3)
	defer store.Close()

	testStoreContract(t, store)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	r := record(7, time.Now())
	if err := store.RecordSnapshot(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Metrics.Threats = 99

	latest, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Metrics.Threats != 7 {
		t.Errorf("store must not alias the caller's record, got threats %d", latest.Metrics.Threats)
	}
	latest.Metrics.Threats = 42

	again, _ := store.LatestSnapshot(ctx)
	if again.Metrics.Threats != 7 {
		t.Errorf("store must not alias returned records, got threats %d", again.Metrics.Threats)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.RecordSnapshot(ctx, record(1, time.Now())); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), 3)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer store.Close()

	testStoreContract(t, store)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store, err := NewSQLiteStore(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RecordSnapshot(ctx, record(4, at)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	latest, err := reopened.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest.Metrics != record(4, at).Metrics || !latest.RecordedAt.Equal(at) {
		t.Errorf("unexpected record after reopen: %+v", latest)
	}
	if !latest.PosturePassed {
		t.Error("expected posture_passed true to survive reopen")
	}
}

func TestNew(t *testing.T) {
	logger := slog.Default()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}},
		{name: "memory", cfg: Config{Type: "memory", HistoryLimit: 5}},
		{name: "sqlite", cfg: Config{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "h.db")}},
		{name: "sqlite without path", cfg: Config{Type: "sqlite"}, wantErr: true},
		{name: "valkey without address", cfg: Config{Type: "valkey"}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}
