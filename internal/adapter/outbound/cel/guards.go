package cel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"

	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/domain/policy"
)

// GuardRule is one named guard expression. The expression must evaluate to a
// boolean: true allows the action, false denies it with the rule's name.
type GuardRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

// compiledGuard pairs a rule with its compiled program.
type compiledGuard struct {
	rule GuardRule
	prg  cel.Program
}

// GuardSet evaluates a conjunction of guard expressions against action
// requests. All rules must allow; the first denying rule wins. Verdicts are
// memoized per request fingerprint since expressions are pure functions of
// the request.
type GuardSet struct {
	eval   *Evaluator
	guards []compiledGuard
	cache  *verdictCache
}

var _ policy.Guard = (*GuardSet)(nil)

// NewGuardSet compiles the given rules. Compilation is eager so a malformed
// expression is a startup error, not a per-request one.
func NewGuardSet(rules []GuardRule, cacheSize int) (*GuardSet, error) {
	eval, err := NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	gs := &GuardSet{eval: eval}
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("guard rule with empty name")
		}
		if err := eval.ValidateExpression(r.Expression); err != nil {
			return nil, fmt.Errorf("guard %q: %w", r.Name, err)
		}
		prg, err := eval.Compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("guard %q: %w", r.Name, err)
		}
		gs.guards = append(gs.guards, compiledGuard{rule: r, prg: prg})
	}
	if cacheSize > 0 {
		gs.cache = newVerdictCache(cacheSize)
	}
	return gs, nil
}

// Len returns the number of compiled guards.
func (gs *GuardSet) Len() int { return len(gs.guards) }

// Allow evaluates every guard against the request. An evaluation error is
// returned to the caller, which fails closed.
func (gs *GuardSet) Allow(ctx context.Context, req action.Request) (bool, string, error) {
	if len(gs.guards) == 0 {
		return true, "", nil
	}

	var key uint64
	if gs.cache != nil {
		key = fingerprint(req)
		if v, ok := gs.cache.get(key); ok {
			return v.allowed, v.reason, nil
		}
	}

	for _, g := range gs.guards {
		ok, err := gs.eval.Evaluate(g.prg, req)
		if err != nil {
			return false, "", fmt.Errorf("guard %q: %w", g.rule.Name, err)
		}
		if !ok {
			if gs.cache != nil {
				gs.cache.put(key, verdict{allowed: false, reason: g.rule.Name})
			}
			return false, g.rule.Name, nil
		}
	}

	if gs.cache != nil {
		gs.cache.put(key, verdict{allowed: true})
	}
	return true, "", nil
}

// fingerprint hashes the request fields guard expressions can observe.
// Parameters are folded in sorted key order so map iteration order does not
// change the hash.
func fingerprint(req action.Request) uint64 {
	h := xxhash.New()
	h.WriteString(string(req.Kind))
	h.WriteString("\x00")
	h.WriteString(req.IncidentID)
	h.WriteString("\x00")
	fmt.Fprintf(h, "%.6f", req.Confidence)

	keys := make([]string, 0, len(req.Parameters))
	for k := range req.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.WriteString("\x00")
		h.WriteString(k)
		h.WriteString("=")
		fmt.Fprintf(h, "%v", req.Parameters[k])
	}
	return h.Sum64()
}

type verdict struct {
	allowed bool
	reason  string
}

// verdictCache is a bounded FIFO-eviction memo for guard verdicts. Guard
// sets are immutable for the life of the process, so entries never go stale.
type verdictCache struct {
	mu      sync.Mutex
	max     int
	entries map[uint64]verdict
	order   []uint64
}

func newVerdictCache(max int) *verdictCache {
	return &verdictCache{
		max:     max,
		entries: make(map[uint64]verdict, max),
	}
}

func (c *verdictCache) get(key uint64) (verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *verdictCache) put(key uint64, v verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = v
		return
	}
	if len(c.entries) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = v
	c.order = append(c.order, key)
}
