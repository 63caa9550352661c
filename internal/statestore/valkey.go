package statestore

import (
	"context"
	"encoding/json"

	"github.com/daimoniac/securevision/internal/errors"
	valkey "github.com/valkey-io/valkey-go"
)

// SnapshotsKey is the list holding JSON records, newest at the head
const SnapshotsKey = "securevision:snapshots"

// ValkeyStore implements StateStore on a capped valkey list
type ValkeyStore struct {
	client valkey.Client
	key    string
	limit  int
}

// NewValkeyStore connects to addr
func NewValkeyStore(addr string, limit int) (*ValkeyStore, error) {
	if addr == "" {
		return nil, errors.NewPermanentf("valkey address is required")
	}
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, errors.NewTransientf("failed to connect to valkey at %s: %w", addr, err)
	}
	return NewValkeyStoreWithClient(client, SnapshotsKey, limit), nil
}

// NewValkeyStoreWithClient wraps an existing client; key names the list
func NewValkeyStoreWithClient(client valkey.Client, key string, limit int) *ValkeyStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &ValkeyStore{client: client, key: key, limit: limit}
}

// RecordSnapshot pushes the record to the head and trims the tail
func (s *ValkeyStore) RecordSnapshot(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.NewPermanentf("failed to encode snapshot: %w", err)
	}

	cmds := valkey.Commands{
		s.client.B().Lpush().Key(s.key).Element(string(data)).Build(),
		s.client.B().Ltrim().Key(s.key).Start(0).Stop(int64(s.limit - 1)).Build(),
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return errors.NewTransientf("valkey record snapshot failed: %w", err)
		}
	}
	return nil
}

// LatestSnapshot reads the head of the list
func (s *ValkeyStore) LatestSnapshot(ctx context.Context) (*Record, error) {
	resp := s.client.Do(ctx, s.client.B().Lindex().Key(s.key).Index(0).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, errors.NewTransientf("valkey LINDEX on '%s' failed: %w", s.key, err)
	}

	raw, err := resp.ToString()
	if err != nil {
		return nil, errors.NewTransientf("failed to convert valkey reply to string: %w", err)
	}
	return decodeRecord(raw)
}

// ListSnapshots reads up to limit entries from the head
func (s *ValkeyStore) ListSnapshots(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	resp := s.client.Do(ctx, s.client.B().Lrange().Key(s.key).Start(0).Stop(int64(limit-1)).Build())
	if err := resp.Error(); err != nil {
		return nil, errors.NewTransientf("valkey LRANGE on '%s' failed: %w", s.key, err)
	}

	values, err := resp.AsStrSlice()
	if err != nil {
		return nil, errors.NewTransientf("failed to convert valkey LRANGE reply: %w", err)
	}

	records := make([]*Record, 0, len(values))
	for _, raw := range values {
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Close shuts down the underlying client connection
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}

func decodeRecord(raw string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, errors.NewPermanentf("corrupt snapshot record: %w", err)
	}
	return &r, nil
}
