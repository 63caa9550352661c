package statestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/daimoniac/securevision/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements StateStore using SQLite
type SQLiteStore struct {
	db    *sql.DB
	limit int
}

// NewSQLiteStore creates a new SQLite state store
func NewSQLiteStore(dbPath string, limit int) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.NewPermanentf("sqlite path is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// mode=rwc: Read/Write/Create mode
	// _journal_mode=WAL: concurrent readers alongside the single writer
	// _busy_timeout=3000: wait up to 3 seconds for locks
	connStr := dbPath + "?mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, limit: limit}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPermanentf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at INTEGER NOT NULL,
		threats INTEGER NOT NULL,
		vulnerabilities INTEGER NOT NULL,
		incidents INTEGER NOT NULL,
		compliance REAL NOT NULL,
		posture_passed BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_recorded ON snapshots(recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordSnapshot inserts the record and deletes everything beyond the
// history limit in the same transaction
func (s *SQLiteStore) RecordSnapshot(ctx context.Context, record *Record) error {
	return s.executeTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (recorded_at, threats, vulnerabilities, incidents, compliance, posture_passed)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			record.RecordedAt.UnixMilli(),
			record.Metrics.Threats,
			record.Metrics.Vulnerabilities,
			record.Metrics.Incidents,
			record.Metrics.Compliance,
			record.PosturePassed,
		)
		if err != nil {
			return errors.NewTransientf("failed to insert snapshot: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM snapshots WHERE id NOT IN (
				SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
			)
		`, s.limit)
		if err != nil {
			return errors.NewTransientf("failed to trim snapshot history: %w", err)
		}

		return nil
	})
}

// LatestSnapshot returns the most recently inserted record
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*Record, error) {
	records, err := s.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return records[0], nil
}

// ListSnapshots returns records newest first
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = s.limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, threats, vulnerabilities, incidents, compliance, posture_passed
		FROM snapshots
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewTransientf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, limit)
	for rows.Next() {
		var (
			recordedAt int64
			r          Record
		)
		if err := rows.Scan(
			&recordedAt,
			&r.Metrics.Threats,
			&r.Metrics.Vulnerabilities,
			&r.Metrics.Incidents,
			&r.Metrics.Compliance,
			&r.PosturePassed,
		); err != nil {
			return nil, errors.NewTransientf("failed to scan snapshot row: %w", err)
		}
		r.RecordedAt = time.UnixMilli(recordedAt).UTC()
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("error iterating snapshot rows: %w", err)
	}

	return records, nil
}

// executeTx runs operation in a transaction and commits it if no error is returned
func (s *SQLiteStore) executeTx(ctx context.Context, operation func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewTransientf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := operation(tx); err != nil {
		return err // Error already classified by operation
	}

	if err := tx.Commit(); err != nil {
		return errors.NewTransientf("failed to commit transaction: %w", err)
	}

	return nil
}
