package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Engine evaluates the action policy that gates side-effecting node
// executions (email, record writes, task creation).
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine from rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.action_policy.decision"),
		rego.Module("action_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Authorize evaluates the policy for one action. Input carries keys
// like action, tenant_id, entity, recipients. A missing or
// unexpected result defaults to allow; the policy is expected to
// define its own default.
func (e *Engine) Authorize(ctx context.Context, input map[string]any) (bool, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return true, "default", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return val == "allow", val, nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		return decision == "allow", reason, nil
	default:
		return true, "unexpected return type", nil
	}
}

// DefaultPolicy is the policy used when no deployment-specific policy
// is configured: everything is allowed except sends to no recipients.
const DefaultPolicy = `
package action_policy

default decision := "allow"

# Block emails with no concrete recipients
decision := "block" if {
	input.action == "send_email"
	count(input.recipients) == 0
}
`
