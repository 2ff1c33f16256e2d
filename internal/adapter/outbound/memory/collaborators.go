package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsgate/opsgate/internal/port/outbound"
)

// Ticketer implements outbound.Ticketer with locally generated tickets.
// Ticket IDs are timestamp-derived with a per-second counter so IDs stay
// unique even when two tickets open inside the same second.
type Ticketer struct {
	baseURL string
	now     func() time.Time

	mu       sync.Mutex
	lastStem string
	seq      int
	tickets  map[string]map[string]any
}

// NewTicketer creates a local ticketer. baseURL is prepended to ticket IDs
// to build ticket URLs.
func NewTicketer(baseURL string) *Ticketer {
	return &Ticketer{
		baseURL: baseURL,
		now:     time.Now,
		tickets: make(map[string]map[string]any),
	}
}

// CreateTicket opens a ticket with the given fields.
func (t *Ticketer) CreateTicket(ctx context.Context, fields map[string]any) (outbound.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stem := t.now().UTC().Format("20060102150405")
	if stem == t.lastStem {
		t.seq++
	} else {
		t.lastStem = stem
		t.seq = 0
	}
	id := fmt.Sprintf("OPS-%s", stem)
	if t.seq > 0 {
		id = fmt.Sprintf("OPS-%s-%d", stem, t.seq)
	}

	stored := make(map[string]any, len(fields))
	for k, v := range fields {
		stored[k] = v
	}
	t.tickets[id] = stored

	return outbound.Ticket{
		ID:  id,
		URL: fmt.Sprintf("%s/%s", t.baseURL, id),
	}, nil
}

// Tickets returns a snapshot of created tickets keyed by ID.
func (t *Ticketer) Tickets() map[string]map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]map[string]any, len(t.tickets))
	for id, fields := range t.tickets {
		cp := make(map[string]any, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// ChannelOpener implements outbound.ChannelOpener with locally tracked
// channels. Reopening an existing channel name returns the same reference.
type ChannelOpener struct {
	baseURL string

	mu       sync.Mutex
	channels map[string]outbound.Channel
}

// NewChannelOpener creates a local channel opener.
func NewChannelOpener(baseURL string) *ChannelOpener {
	return &ChannelOpener{
		baseURL:  baseURL,
		channels: make(map[string]outbound.Channel),
	}
}

// OpenChannel creates (or reuses) a channel with the given fields.
func (c *ChannelOpener) OpenChannel(ctx context.Context, fields map[string]any) (outbound.Channel, error) {
	name, _ := fields["name"].(string)
	if name == "" {
		return outbound.Channel{}, fmt.Errorf("channel name required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.channels[name]; ok {
		return ch, nil
	}
	ch := outbound.Channel{
		Name:      name,
		Reference: fmt.Sprintf("%s/%s", c.baseURL, name),
	}
	c.channels[name] = ch
	return ch, nil
}

// Orchestrator implements outbound.Orchestrator without touching real
// infrastructure. Mutations are acknowledged and tracked for inspection.
type Orchestrator struct {
	mu       sync.Mutex
	replicas map[string]int
	restarts map[string]int
}

// NewOrchestrator creates a local orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		replicas: make(map[string]int),
		restarts: make(map[string]int),
	}
}

// ScaleService changes the replica count of a service.
func (o *Orchestrator) ScaleService(ctx context.Context, service string, replicas int) (map[string]any, error) {
	if replicas < 0 {
		return nil, fmt.Errorf("replica count %d is negative", replicas)
	}
	o.mu.Lock()
	previous := o.replicas[service]
	o.replicas[service] = replicas
	o.mu.Unlock()

	return map[string]any{
		"service":           service,
		"previous_replicas": previous,
		"replicas":          replicas,
		"status":            "scaled",
	}, nil
}

// RestartService restarts a service.
func (o *Orchestrator) RestartService(ctx context.Context, service string) (map[string]any, error) {
	o.mu.Lock()
	o.restarts[service]++
	count := o.restarts[service]
	o.mu.Unlock()

	return map[string]any{
		"service":       service,
		"restart_count": count,
		"status":        "restarted",
	}, nil
}

// UpdateConfig applies configuration changes to a service.
func (o *Orchestrator) UpdateConfig(ctx context.Context, service string, changes map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	return map[string]any{
		"service":      service,
		"applied_keys": keys,
		"status":       "config_updated",
	}, nil
}

// Compile-time interface verification.
var (
	_ outbound.Ticketer      = (*Ticketer)(nil)
	_ outbound.ChannelOpener = (*ChannelOpener)(nil)
	_ outbound.Orchestrator  = (*Orchestrator)(nil)
)
