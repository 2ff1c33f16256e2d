// Package policy contains the action-policy decision procedure: the sole
// gate between a proposed remediation action and its effect on the world.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/domain/audit"
)

// Config is the admission policy snapshot the engine reads per decision.
// Hot-reload mid-decision is not supported; swap the engine to change it.
type Config struct {
	// AutoRemediationEnabled is the global kill switch. When false, every
	// action is rejected with ReasonPolicyDisabled.
	AutoRemediationEnabled bool
	// ConfidenceThreshold is the minimum confidence for admission.
	ConfidenceThreshold float64
	// MaxActionsPerWindow bounds admitted actions inside the trailing window.
	MaxActionsPerWindow int
	// Window is the trailing rate-limit window.
	Window time.Duration
}

// DefaultConfig returns the stock admission policy: remediation on,
// 0.8 confidence floor, at most 3 actions per trailing hour.
func DefaultConfig() Config {
	return Config{
		AutoRemediationEnabled: true,
		ConfidenceThreshold:    0.8,
		MaxActionsPerWindow:    3,
		Window:                 time.Hour,
	}
}

// Engine decides whether proposed actions may execute and dispatches the
// admitted ones. Each request reaches exactly one terminal state: rejected
// (returned as *action.PolicyRejection, never recorded) or executed
// (recorded in history with its real outcome, success or failure).
//
// The engine owns its admission bookkeeping; the rate-limit check and the
// admission reservation happen in one critical section so two concurrent
// requests can never both take the last slot. Handler I/O runs outside the
// lock and, once dispatched, runs to its terminal state regardless of
// caller cancellation.
type Engine struct {
	cfg      Config
	history  action.HistoryStore
	handlers *Handlers
	guard    Guard
	auditor  audit.Store
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	admissions []time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithGuard installs an optional guard evaluated after the built-in checks.
func WithGuard(g Guard) EngineOption {
	return func(e *Engine) { e.guard = g }
}

// WithAuditor installs a decision audit trail.
func WithAuditor(s audit.Store) EngineOption {
	return func(e *Engine) { e.auditor = s }
}

// WithClock replaces the engine time source. Used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine with the given policy snapshot, history store,
// and handler set.
func NewEngine(cfg Config, history action.HistoryStore, handlers *Handlers, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:      cfg,
		history:  history,
		handlers: handlers,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's policy snapshot.
func (e *Engine) Config() Config {
	return e.cfg
}

// RecordedInWindow counts history records executed inside the trailing
// rate-limit window. Unlike the admission bookkeeping it reads the store, so
// with a persistent backend it surfaces actions from earlier process runs.
func (e *Engine) RecordedInWindow(ctx context.Context) (int, error) {
	return e.history.CountSince(ctx, e.now().Add(-e.cfg.Window))
}

// Submit gates and, if admitted, executes the action. Rejections return a
// *action.PolicyRejection and leave no history record. Admitted actions
// always return a record carrying the real outcome; handler failures are in
// the record, not the error.
func (e *Engine) Submit(ctx context.Context, req action.Request) (action.Record, error) {
	started := e.now()

	// Guard expressions are deterministic over the request, so evaluate
	// before the critical section to keep it tight. The verdict only
	// applies after the canonical checks pass, preserving their rejection
	// order, and a guard denial never consumes a rate slot.
	guardAllowed, guardReason := true, ""
	if e.guard != nil {
		var err error
		guardAllowed, guardReason, err = e.guard.Allow(ctx, req)
		if err != nil {
			// Fail closed on evaluation errors.
			guardAllowed = false
			guardReason = fmt.Sprintf("guard evaluation error: %v", err)
		}
	}

	if rej := e.admit(req, guardAllowed, guardReason); rej != nil {
		e.logger.Info("action rejected",
			"kind", req.Kind,
			"reason", rej.Reason,
			"confidence", req.Confidence,
			"incident_id", req.IncidentID,
		)
		e.audit(ctx, req, audit.OutcomeRejected, string(rej.Reason), nil, started)
		return action.Record{}, rej
	}

	rec := e.execute(ctx, req)
	if err := e.history.Append(ctx, rec); err != nil {
		// The action already ran; losing the record would break the
		// one-terminal-record invariant, so surface loudly.
		e.logger.Error("failed to append action record",
			"kind", rec.Kind,
			"record_id", rec.ID,
			"error", err,
		)
	}

	e.logger.Info("action executed",
		"kind", rec.Kind,
		"record_id", rec.ID,
		"success", rec.Result.Success,
		"incident_id", rec.IncidentID,
	)
	e.audit(ctx, req, audit.OutcomeAdmitted, "", &rec, started)
	return rec, nil
}

// admit runs the admission checks in order inside one critical section with
// the slot reservation. First failing check rejects; nil means admitted and
// a slot is reserved.
func (e *Engine) admit(req action.Request, guardAllowed bool, guardReason string) *action.PolicyRejection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.AutoRemediationEnabled {
		return &action.PolicyRejection{Kind: req.Kind, Reason: action.ReasonPolicyDisabled}
	}

	if req.Confidence < e.cfg.ConfidenceThreshold {
		return &action.PolicyRejection{
			Kind:   req.Kind,
			Reason: action.ReasonConfidenceBelowThreshold,
			Detail: fmt.Sprintf("confidence %.2f below threshold %.2f", req.Confidence, e.cfg.ConfidenceThreshold),
		}
	}

	now := e.now()
	e.pruneAdmissionsLocked(now.Add(-e.cfg.Window))
	if len(e.admissions) >= e.cfg.MaxActionsPerWindow {
		return &action.PolicyRejection{
			Kind:   req.Kind,
			Reason: action.ReasonRateLimitExceeded,
			Detail: fmt.Sprintf("%d actions in trailing %s", len(e.admissions), e.cfg.Window),
		}
	}

	if !guardAllowed {
		return &action.PolicyRejection{
			Kind:   req.Kind,
			Reason: action.ReasonGuardDenied,
			Detail: guardReason,
		}
	}

	e.admissions = append(e.admissions, now)
	return nil
}

// pruneAdmissionsLocked drops admission timestamps older than cutoff.
// Caller must hold e.mu.
func (e *Engine) pruneAdmissionsLocked(cutoff time.Time) {
	kept := e.admissions[:0]
	for _, t := range e.admissions {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	e.admissions = kept
}

// execute dispatches to the kind's handler and converts any fault, panic
// included, into a failure record. It never returns an error: every admitted
// action gets exactly one terminal record.
func (e *Engine) execute(ctx context.Context, req action.Request) (rec action.Record) {
	rec = action.Record{
		ID:         uuid.NewString(),
		Kind:       req.Kind,
		Parameters: req.Parameters,
		IncidentID: req.IncidentID,
		Confidence: req.Confidence,
		ExecutedAt: e.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("action handler panicked", "kind", req.Kind, "panic", r)
			rec.Result = action.Result{Success: false, Error: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	payload, err := e.handlers.Dispatch(ctx, req)
	if err != nil {
		rec.Result = action.Result{Success: false, Error: err.Error()}
		return rec
	}
	rec.Result = action.Result{Success: true, Payload: payload}
	return rec
}

// audit appends one decision record when an auditor is configured.
func (e *Engine) audit(ctx context.Context, req action.Request, outcome, reason string, rec *action.Record, started time.Time) {
	if e.auditor == nil {
		return
	}
	r := audit.Record{
		Timestamp:     started.UTC(),
		EventType:     audit.EventTypeActionDecision,
		ActionKind:    string(req.Kind),
		IncidentID:    req.IncidentID,
		Confidence:    req.Confidence,
		Outcome:       outcome,
		Reason:        reason,
		LatencyMicros: e.now().Sub(started).Microseconds(),
	}
	if rec != nil {
		r.RecordID = rec.ID
		r.Success = &rec.Result.Success
	}
	if err := e.auditor.Append(ctx, r); err != nil {
		e.logger.Warn("audit append failed", "error", err)
	}
}
