package statestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	svErrors "github.com/daimoniac/securevision/internal/errors"
	"github.com/daimoniac/securevision/internal/metrics"
)

// ErrSnapshotNotFound is returned by LatestSnapshot when nothing has been
// recorded yet. Callers should use errors.Is() to check for it.
var ErrSnapshotNotFound = fmt.Errorf("snapshot %w", svErrors.ErrNotFound)

// StateStore persists the history of applied metrics snapshots
type StateStore interface {
	// RecordSnapshot appends a record and trims the history to its limit
	RecordSnapshot(ctx context.Context, record *Record) error

	// LatestSnapshot returns the most recent record
	LatestSnapshot(ctx context.Context) (*Record, error)

	// ListSnapshots returns up to limit records, newest first.
	// A limit <= 0 returns the whole retained history.
	ListSnapshots(ctx context.Context, limit int) ([]*Record, error)

	// Close releases the underlying connection
	Close() error
}

// Record is one applied snapshot
type Record struct {
	RecordedAt    time.Time               `json:"recorded_at"`
	Metrics       metrics.SecurityMetrics `json:"metrics"`
	PosturePassed bool                    `json:"posture_passed"`
}

// Config selects and configures a store implementation
type Config struct {
	Type       string // memory, sqlite, valkey
	SQLitePath string
	ValkeyAddr string
	// HistoryLimit is the number of records retained
	HistoryLimit int
}

// DefaultHistoryLimit applies when Config.HistoryLimit is not positive
const DefaultHistoryLimit = 1000

// New creates the store named by cfg.Type
func New(cfg Config, logger *slog.Logger) (StateStore, error) {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var (
		store StateStore
		err   error
	)
	switch cfg.Type {
	case "", "memory":
		store = NewMemoryStore(limit)
	case "sqlite":
		store, err = NewSQLiteStore(cfg.SQLitePath, limit)
	case "valkey":
		store, err = NewValkeyStore(cfg.ValkeyAddr, limit)
	default:
		return nil, svErrors.NewPermanentf("unsupported state store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("state store initialized",
		"type", cfg.Type,
		"history_limit", limit)

	return store, nil
}
