package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/sdap/playbook/internal/domain"
)

// RunInput bundles everything a playbook run needs: the ordered nodes,
// their actions, the resolved capability snapshot and the document.
type RunInput struct {
	RunID      string
	PlaybookID string
	TenantID   string
	Nodes      []domain.PlaybookNode
	Actions    map[string]domain.AnalysisAction
	Scopes     *domain.ResolvedScopes
	Document   *domain.DocumentContext

	// OnNodeStarted and OnNodeCompleted, when set, observe each node as
	// it begins and each output as it is produced.
	OnNodeStarted   func(node *domain.PlaybookNode)
	OnNodeCompleted func(node *domain.PlaybookNode, out domain.NodeOutput)
}

// RunResult is the outcome of driving one playbook run.
type RunResult struct {
	Outputs []domain.NodeOutput
	Failed  bool
}

// Runner drives a playbook run: nodes execute one at a time in
// configured order, each seeing the accumulated outputs of all
// previously completed nodes.
type Runner struct {
	registry *Registry
}

// NewRunner creates a run driver over the given registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// Run executes the playbook's active nodes sequentially. A failed node
// is recorded and the run continues to the next node; the result is
// marked failed if any node failed. Cancellation stops the run between
// nodes and is returned as an error.
func (r *Runner) Run(ctx context.Context, in *RunInput) (*RunResult, error) {
	nodes := activeNodesInOrder(in.Nodes)
	outputs := make(map[string]domain.NodeOutput)
	result := &RunResult{}

	for i := 0; i < len(nodes); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := nodes[i]

		if in.OnNodeStarted != nil {
			in.OnNodeStarted(&node)
		}
		out := r.executeNode(ctx, in, &node, outputs)
		if !out.Success {
			result.Failed = true
			log.Printf("WARN: run %s node %s failed [%s]: %s", in.RunID, node.NodeID, out.ErrorCode, out.ErrorMessage)
		}

		// The output map only grows: append by copy so executors already
		// holding the previous map never observe mutation.
		next := make(map[string]domain.NodeOutput, len(outputs)+1)
		for k, v := range outputs {
			next[k] = v
		}
		next[node.OutputVariable] = out
		outputs = next

		result.Outputs = append(result.Outputs, out)
		if in.OnNodeCompleted != nil {
			in.OnNodeCompleted(&node, out)
		}

		if jump, ok := r.branchTarget(in, nodes, i, out); ok {
			if jump < 0 {
				// Selected branch names no node: the run ends normally.
				break
			}
			i = jump
			continue
		}
		i++
	}

	return result, nil
}

// executeNode builds the node's execution context, resolves its
// executor, validates and then executes.
func (r *Runner) executeNode(ctx context.Context, in *RunInput, node *domain.PlaybookNode, outputs map[string]domain.NodeOutput) domain.NodeOutput {
	action, ok := in.Actions[node.ActionID]
	if !ok {
		return domain.Error(node.NodeID, node.OutputVariable,
			fmt.Sprintf("node references unknown action %s", node.ActionID), domain.CodeValidationFailed)
	}

	ec := &domain.NodeExecutionContext{
		RunID:      in.RunID,
		PlaybookID: in.PlaybookID,
		TenantID:   in.TenantID,
		Node:       node,
		Action:     &action,
		ActionKind: action.Kind,
		Scopes:     in.Scopes,
		Document:   in.Document,
		Outputs:    outputs,
	}

	executor, ok := r.registry.Executor(action.Kind)
	if !ok {
		return domain.Error(node.NodeID, node.OutputVariable,
			fmt.Sprintf("no executor registered for action kind %s", action.Kind), domain.CodeValidationFailed)
	}

	if vr := executor.Validate(ctx, ec); !vr.Valid {
		return domain.Error(node.NodeID, node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
	}
	return executor.Execute(ctx, ec)
}

// branchTarget resolves a condition node's selected branch to a node
// index. Routing only skips forward; the second return is false when
// no branch routing applies, and a true return with index -1 means
// the label matched no later node (the run ends).
func (r *Runner) branchTarget(in *RunInput, nodes []domain.PlaybookNode, current int, out domain.NodeOutput) (int, bool) {
	if !out.Success {
		return 0, false
	}
	// Only condition nodes route: another node's payload carrying the
	// same field names must not trigger a jump.
	if in.Actions[nodes[current].ActionID].Kind != domain.ActionKindCondition {
		return 0, false
	}
	cr, err := domain.DecodeData[domain.ConditionResult](out)
	if err != nil || (cr.TrueBranch == "" && cr.FalseBranch == "") {
		return 0, false
	}
	if cr.SelectedBranch == "" {
		return 0, false
	}
	for i := current + 1; i < len(nodes); i++ {
		if nodes[i].Name == cr.SelectedBranch {
			return i, true
		}
	}
	return -1, true
}

func activeNodesInOrder(nodes []domain.PlaybookNode) []domain.PlaybookNode {
	out := make([]domain.PlaybookNode, 0, len(nodes))
	for _, n := range nodes {
		if n.Active {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutionOrder < out[j].ExecutionOrder
	})
	return out
}
