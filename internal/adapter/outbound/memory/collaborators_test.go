package memory

import (
	"context"
	"testing"
	"time"
)

func TestTicketerUniqueIDsWithinSecond(t *testing.T) {
	ticketer := NewTicketer("https://tickets.example.com")
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ticketer.now = func() time.Time { return fixed }

	ctx := context.Background()
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		ticket, err := ticketer.CreateTicket(ctx, map[string]any{"incident_id": "INC-1"})
		if err != nil {
			t.Fatalf("CreateTicket() error = %v", err)
		}
		if seen[ticket.ID] {
			t.Fatalf("duplicate ticket ID %q", ticket.ID)
		}
		seen[ticket.ID] = true
	}
	if !seen["OPS-20250601120000"] || !seen["OPS-20250601120000-1"] || !seen["OPS-20250601120000-2"] {
		t.Errorf("unexpected ID set: %v", seen)
	}
}

func TestChannelOpenerIdempotentByName(t *testing.T) {
	opener := NewChannelOpener("https://chat.example.com")
	ctx := context.Background()

	first, err := opener.OpenChannel(ctx, map[string]any{"name": "incident-inc-1"})
	if err != nil {
		t.Fatalf("OpenChannel() error = %v", err)
	}
	second, err := opener.OpenChannel(ctx, map[string]any{"name": "incident-inc-1"})
	if err != nil {
		t.Fatalf("OpenChannel() error = %v", err)
	}
	if first != second {
		t.Errorf("reopening channel returned %+v, want %+v", second, first)
	}

	if _, err := opener.OpenChannel(ctx, map[string]any{}); err == nil {
		t.Error("OpenChannel() without name succeeded")
	}
}

func TestOrchestratorScaleTracksPrevious(t *testing.T) {
	orch := NewOrchestrator()
	ctx := context.Background()

	out, err := orch.ScaleService(ctx, "api", 5)
	if err != nil {
		t.Fatalf("ScaleService() error = %v", err)
	}
	if out["previous_replicas"] != 0 || out["replicas"] != 5 {
		t.Errorf("first scale = %v", out)
	}

	out, err = orch.ScaleService(ctx, "api", 2)
	if err != nil {
		t.Fatalf("ScaleService() error = %v", err)
	}
	if out["previous_replicas"] != 5 {
		t.Errorf("previous_replicas = %v, want 5", out["previous_replicas"])
	}

	if _, err := orch.ScaleService(ctx, "api", -1); err == nil {
		t.Error("negative replica count accepted")
	}
}
