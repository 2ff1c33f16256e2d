package memory

import (
	"context"
	"sync"
	"time"

	"github.com/opsgate/opsgate/internal/domain/action"
)

const defaultHistoryCap = 1000

// HistoryStore implements action.HistoryStore with a bounded in-memory ring
// buffer. Oldest records are dropped once the capacity is reached; the
// retained window comfortably exceeds the engine's rate-limit lookback.
type HistoryStore struct {
	mu      sync.RWMutex
	records []action.Record
	cap     int
}

// NewHistoryStore creates a new in-memory history store.
// An optional capacity parameter sets the ring buffer size (default 1000).
func NewHistoryStore(capacity ...int) *HistoryStore {
	c := defaultHistoryCap
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	return &HistoryStore{
		records: make([]action.Record, 0, c),
		cap:     c,
	}
}

// Append stores one executed-action record.
func (s *HistoryStore) Append(ctx context.Context, rec action.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.cap {
		copy(s.records, s.records[1:])
		s.records[len(s.records)-1] = rec
		return nil
	}
	s.records = append(s.records, rec)
	return nil
}

// CountSince returns the number of records with ExecutedAt at or after t.
func (s *HistoryStore) CountSince(ctx context.Context, t time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if !rec.ExecutedAt.Before(t) {
			n++
		}
	}
	return n, nil
}

// Recent returns up to n records, newest first.
func (s *HistoryStore) Recent(ctx context.Context, n int) ([]action.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]action.Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close releases resources. No-op for the in-memory store.
func (s *HistoryStore) Close() error {
	return nil
}

// Compile-time interface verification.
var _ action.HistoryStore = (*HistoryStore)(nil)
