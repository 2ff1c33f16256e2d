// Package cel provides a CEL-based evaluator for action guard expressions.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/opsgate/opsgate/internal/domain/action"
)

// maxExpressionLength is the maximum allowed length for guard expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single guard evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL guard expressions for action requests.
type Evaluator struct {
	env *cel.Env
}

// NewGuardEnvironment creates a CEL environment exposing the action request
// to guard expressions as a single `action` object with fields `kind`,
// `params`, `confidence`, and `incident_id`.
func NewGuardEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("action", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewEvaluator creates a new CEL evaluator with the guard environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewGuardEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create guard environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks a guard expression, returning a compiled
// program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a guard expression is syntactically valid
// and within the safety limits (length, nesting depth).
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid guard expression: %w", err)
	}
	return nil
}

// Evaluate runs a compiled guard program against an action request.
// Returns true if the expression evaluates to true. Evaluation is bounded by
// evalTimeout to prevent indefinite hangs.
func (e *Evaluator) Evaluate(prg cel.Program, req action.Request) (bool, error) {
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}
	activation := map[string]any{
		"action": map[string]any{
			"kind":        string(req.Kind),
			"params":      params,
			"confidence":  req.Confidence,
			"incident_id": req.IncidentID,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}
