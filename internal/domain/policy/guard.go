package policy

import (
	"context"

	"github.com/opsgate/opsgate/internal/domain/action"
)

// Guard optionally vetoes actions that passed the built-in admission checks.
// Implementations evaluate configured expressions over the action request
// (see the CEL adapter). A nil Guard on the engine disables guard checks.
type Guard interface {
	// Allow reports whether the action may proceed. When allowed is false,
	// reason explains the denial. An evaluation error fails closed.
	Allow(ctx context.Context, req action.Request) (allowed bool, reason string, err error)
}
