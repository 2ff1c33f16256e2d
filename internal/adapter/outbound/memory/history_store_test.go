package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opsgate/opsgate/internal/domain/action"
)

func record(id string, executedAt time.Time) action.Record {
	return action.Record{
		ID:         id,
		Kind:       action.KindSummarizeIncident,
		Confidence: 0.9,
		Result:     action.Result{Success: true},
		ExecutedAt: executedAt,
	}
}

func TestHistoryStoreAppendAndRecent(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, record(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	recent, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d records, want 3", len(recent))
	}
	if recent[0].ID != "r4" || recent[2].ID != "r2" {
		t.Errorf("Recent() order = [%s %s %s], want newest first", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestHistoryStoreCountSince(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_ = store.Append(ctx, record(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Hour)))
	}

	tests := []struct {
		name  string
		since time.Time
		want  int
	}{
		{"all", base, 4},
		{"boundary inclusive", base.Add(2 * time.Hour), 2},
		{"none", base.Add(4 * time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.CountSince(ctx, tt.since)
			if err != nil {
				t.Fatalf("CountSince() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CountSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHistoryStoreRingEviction(t *testing.T) {
	store := NewHistoryStore(3)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, record(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d records, want 3 after eviction", len(recent))
	}
	if recent[0].ID != "r4" || recent[2].ID != "r2" {
		t.Errorf("oldest records not evicted: got [%s %s %s]", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}
