package action

import (
	"errors"
	"fmt"
)

// ErrPolicyRejected is the sentinel for admission failures.
// Use errors.Is(err, ErrPolicyRejected) to detect them.
var ErrPolicyRejected = errors.New("action rejected by policy")

// ErrRemediationTargetMissing signals a rollback without a deployment target.
// Raised inside the rollback handler so the failure is recorded in history.
var ErrRemediationTargetMissing = errors.New("remediation target missing")

// RejectionReason identifies which admission check refused an action.
type RejectionReason string

const (
	// ReasonPolicyDisabled means the automated-remediation kill switch is off.
	ReasonPolicyDisabled RejectionReason = "policy_disabled"
	// ReasonConfidenceBelowThreshold means the confidence score was too low.
	ReasonConfidenceBelowThreshold RejectionReason = "confidence_below_threshold"
	// ReasonRateLimitExceeded means the trailing-window action budget is spent.
	ReasonRateLimitExceeded RejectionReason = "rate_limit_exceeded"
	// ReasonGuardDenied means a configured guard expression refused the action.
	ReasonGuardDenied RejectionReason = "guard_denied"
)

// PolicyRejection reports a refused admission. Recoverable: the caller may
// resubmit later or with different parameters. Rejected actions never appear
// in the action history.
type PolicyRejection struct {
	// Kind is the action variant that was refused.
	Kind Kind
	// Reason identifies the failing admission check.
	Reason RejectionReason
	// Detail optionally elaborates (e.g. the threshold that was missed).
	Detail string
}

// Error implements the error interface.
func (e *PolicyRejection) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("action %s rejected: %s (%s)", e.Kind, e.Reason, e.Detail)
	}
	return fmt.Sprintf("action %s rejected: %s", e.Kind, e.Reason)
}

// Unwrap returns ErrPolicyRejected so errors.Is works.
func (e *PolicyRejection) Unwrap() error {
	return ErrPolicyRejected
}
