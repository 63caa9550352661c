package statestore

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent records in a ring buffer
type MemoryStore struct {
	mu    sync.RWMutex
	buf   []*Record
	next  int
	count int
}

// NewMemoryStore creates an in-memory store retaining limit records
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryStore{buf: make([]*Record, limit)}
}

func (s *MemoryStore) RecordSnapshot(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := *record

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.next] = &r
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	return nil
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil, ErrSnapshotNotFound
	}
	r := *s.buf[(s.next-1+len(s.buf))%len(s.buf)]
	return &r, nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}

	records := make([]*Record, 0, n)
	for i := 1; i <= n; i++ {
		r := *s.buf[(s.next-i+len(s.buf))%len(s.buf)]
		records = append(records, &r)
	}
	return records, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
