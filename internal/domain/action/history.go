package action

import (
	"context"
	"time"
)

// HistoryStore persists the append-only action history.
// Interface owned by the domain; implementations live in adapters.
// Records are never mutated after Append; pruning beyond the lookback window
// is an implementation concern.
type HistoryStore interface {
	// Append stores one executed-action record.
	Append(ctx context.Context, rec Record) error

	// CountSince returns the number of records with ExecutedAt at or after t.
	CountSince(ctx context.Context, t time.Time) (int, error)

	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Close releases resources.
	Close() error
}
