// Package engine implements the strategy-dispatched node execution
// runtime: the executor contract, the kind registry, the six action
// executors and the run driver.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sdap/playbook/internal/domain"
)

// TemplateRenderer is the narrow capability boundary every executor
// renders through. Tests substitute a pass-through implementation.
type TemplateRenderer interface {
	Render(template string, vars map[string]any) string
	HasVariables(s string) bool
}

// PolicyGate decides whether a side-effecting action may proceed.
// A nil gate allows everything.
type PolicyGate interface {
	Authorize(ctx context.Context, input map[string]any) (allowed bool, reason string, err error)
}

// ValidationResult is the outcome of a side-effect-free Validate call.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Errors: []string{fmt.Sprintf(format, args...)}}
}

// Message joins the validation errors into one human-readable string.
func (v ValidationResult) Message() string {
	return strings.Join(v.Errors, "; ")
}

// NodeExecutor is the two-operation contract every action kind
// implements. Validate never performs the side effect; Execute converts
// every failure mode into a NodeOutput before returning.
type NodeExecutor interface {
	SupportedActionKinds() []domain.ActionKind
	Validate(ctx context.Context, ec *domain.NodeExecutionContext) ValidationResult
	Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput
}

// safeExecute wraps an executor body so that cancellation and panics are
// translated into error outputs instead of crossing the executor boundary.
func safeExecute(ctx context.Context, ec *domain.NodeExecutionContext, fn func() domain.NodeOutput) (out domain.NodeOutput) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Error(ec.Node.NodeID, ec.Node.OutputVariable,
				fmt.Sprintf("unexpected failure: %v", r), domain.CodeInternalError)
		}
	}()
	if err := ctx.Err(); err != nil {
		return cancelledOutput(ec)
	}
	return fn()
}

func cancelledOutput(ec *domain.NodeExecutionContext) domain.NodeOutput {
	return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, "execution cancelled", domain.CodeCancelled)
}

// errOutput maps a downstream error to the engine's failure codes:
// context cancellation becomes Cancelled, everything else InternalError.
func errOutput(ec *domain.NodeExecutionContext, err error) domain.NodeOutput {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelledOutput(ec)
	}
	return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, err.Error(), domain.CodeInternalError)
}

// authorize consults the policy gate for a side-effecting action. It
// returns a non-nil blocked output when the action may not proceed.
func authorize(ctx context.Context, gate PolicyGate, ec *domain.NodeExecutionContext, input map[string]any) *domain.NodeOutput {
	if gate == nil {
		return nil
	}
	input["action"] = string(ec.ActionKind)
	input["tenant_id"] = ec.TenantID
	allowed, reason, err := gate.Authorize(ctx, input)
	if err != nil {
		out := errOutput(ec, fmt.Errorf("policy evaluation failed: %w", err))
		return &out
	}
	if !allowed {
		out := domain.Error(ec.Node.NodeID, ec.Node.OutputVariable,
			fmt.Sprintf("action blocked by policy: %s", reason), domain.CodePolicyBlocked)
		return &out
	}
	return nil
}
