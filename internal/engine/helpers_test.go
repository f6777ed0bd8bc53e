package engine

import (
	"context"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/template"
)

// testContext builds a NodeExecutionContext for one node with the given
// configuration and prior outputs.
func testContext(kind domain.ActionKind, config string, outputs map[string]domain.NodeOutput) *domain.NodeExecutionContext {
	if outputs == nil {
		outputs = map[string]domain.NodeOutput{}
	}
	return &domain.NodeExecutionContext{
		RunID:      "run_test",
		PlaybookID: "pb_test",
		TenantID:   "tenant-a",
		Node: &domain.PlaybookNode{
			NodeID:         "node-1",
			PlaybookID:     "pb_test",
			ActionID:       "act-1",
			Name:           "test node",
			ExecutionOrder: 1,
			OutputVariable: "result",
			ConfigJSON:     config,
			Active:         true,
		},
		Action:     &domain.AnalysisAction{ActionID: "act-1", Name: "test action", Kind: kind},
		ActionKind: kind,
		Scopes:     &domain.ResolvedScopes{},
		Document:   &domain.DocumentContext{DocumentID: "doc-1", Name: "contract.pdf", Text: "sample document text"},
		Outputs:    outputs,
	}
}

func newTemplates() *template.Engine {
	return template.New()
}

// allowAllGate and denyAllGate are trivial policy gates for tests.
type allowAllGate struct{}

func (allowAllGate) Authorize(context.Context, map[string]any) (bool, string, error) {
	return true, "", nil
}

type denyAllGate struct{ reason string }

func (g denyAllGate) Authorize(context.Context, map[string]any) (bool, string, error) {
	return false, g.reason, nil
}
