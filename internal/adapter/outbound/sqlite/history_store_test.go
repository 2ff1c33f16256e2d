package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsgate/opsgate/internal/domain/action"
)

func openTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := action.Record{
		ID:         "rec-1",
		Kind:       action.KindTriggerAutoRollback,
		Parameters: map[string]any{"deployment_id": "deploy-7"},
		IncidentID: "INC-9",
		Confidence: 0.92,
		Result: action.Result{
			Success: true,
			Payload: map[string]any{"rollback_target": "deploy-7", "status": "rollback_initiated"},
		},
		ExecutedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() returned %d records, want 1", len(got))
	}
	r := got[0]
	if r.ID != "rec-1" || r.Kind != action.KindTriggerAutoRollback || r.IncidentID != "INC-9" {
		t.Errorf("record = %+v", r)
	}
	if r.Parameters["deployment_id"] != "deploy-7" {
		t.Errorf("parameters = %v", r.Parameters)
	}
	if !r.Result.Success || r.Result.Payload["status"] != "rollback_initiated" {
		t.Errorf("result = %+v", r.Result)
	}
	if !r.ExecutedAt.Equal(rec.ExecutedAt) {
		t.Errorf("ExecutedAt = %v, want %v", r.ExecutedAt, rec.ExecutedAt)
	}
}

func TestHistoryStoreFailureRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := action.Record{
		ID:         "rec-fail",
		Kind:       action.KindTriggerAutoRollback,
		Confidence: 0.9,
		Result:     action.Result{Success: false, Error: "remediation target missing: deployment_id required"},
		ExecutedAt: time.Now().UTC(),
	}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.Recent(ctx, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent() = %d records, err %v", len(got), err)
	}
	if got[0].Result.Success {
		t.Error("Success = true, want false")
	}
	if got[0].Result.Error == "" {
		t.Error("Error is empty")
	}
}

func TestHistoryStoreCountSince(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		rec := action.Record{
			ID:         fmt.Sprintf("rec-%d", i),
			Kind:       action.KindSummarizeIncident,
			Confidence: 0.9,
			Result:     action.Result{Success: true},
			ExecutedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		since time.Time
		want  int
	}{
		{"all", base, 4},
		{"boundary inclusive", base.Add(3 * time.Hour), 1},
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

func TestHistoryStoreCountSinceSubSecond(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Mixed fractional precision inside one second. Stored stamps must
	// compare by time, not by trimmed-string length.
	offsets := []time.Duration{500 * time.Millisecond, 1 * time.Nanosecond, 999_999_999 * time.Nanosecond}
	for i, off := range offsets {
		rec := action.Record{
			ID:         fmt.Sprintf("rec-%d", i),
			Kind:       action.KindRestartService,
			Parameters: map[string]any{"service": "api"},
			Confidence: 0.9,
			Result:     action.Result{Success: true},
			ExecutedAt: cutoff.Add(off),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	before := action.Record{
		ID:         "rec-before",
		Kind:       action.KindRestartService,
		Parameters: map[string]any{"service": "api"},
		Confidence: 0.9,
		Result:     action.Result{Success: true},
		ExecutedAt: cutoff.Add(-250 * time.Millisecond),
	}
	if err := store.Append(ctx, before); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.CountSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if got != 3 {
		t.Errorf("CountSince() = %d, want 3", got)
	}

	recent, err := store.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 4 || recent[0].ID != "rec-2" || recent[3].ID != "rec-before" {
		ids := make([]string, len(recent))
		for i, r := range recent {
			ids[i] = r.ID
		}
		t.Errorf("Recent() order = %v, want [rec-2 rec-0 rec-1 rec-before]", ids)
	}
}

func TestHistoryStoreRecentOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := action.Record{
			ID:         fmt.Sprintf("rec-%d", i),
			Kind:       action.KindSummarizeIncident,
			Confidence: 0.9,
			Result:     action.Result{Success: true},
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "rec-4" || got[1].ID != "rec-3" {
		ids := make([]string, len(got))
		for i, r := range got {
			ids[i] = r.ID
		}
		t.Errorf("Recent() order = %v, want [rec-4 rec-3]", ids)
	}
}
