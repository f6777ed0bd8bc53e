package domain

import "time"

// Playbook is an ordered, persisted definition of nodes to execute
// against a document.
type Playbook struct {
	PlaybookID string    `json:"playbook_id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlaybookNode is one configured step in a playbook. Nodes are authored
// elsewhere; the engine treats them as read-only.
type PlaybookNode struct {
	NodeID         string `json:"node_id"`
	PlaybookID     string `json:"playbook_id"`
	ActionID       string `json:"action_id"`
	ToolID         string `json:"tool_id,omitempty"`
	Name           string `json:"name"`
	ExecutionOrder int    `json:"execution_order"`
	OutputVariable string `json:"output_variable"`
	ConfigJSON     string `json:"config_json"`
	Active         bool   `json:"active"`
}

// AnalysisAction is the semantic action a node performs.
type AnalysisAction struct {
	ActionID     string     `json:"action_id"`
	Name         string     `json:"name"`
	Kind         ActionKind `json:"kind"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
}

// AnalysisTool is one pluggable capability, dispatched by handler class.
type AnalysisTool struct {
	ToolID       string `json:"tool_id"`
	Name         string `json:"name"`
	ToolType     string `json:"tool_type"`
	HandlerClass string `json:"handler_class"`
}

// ResolvedScopes is the capability snapshot for one run: the accounts,
// knowledge sources and tools the run is permitted to use. Computed once
// before node execution and immutable for the run's duration.
type ResolvedScopes struct {
	AccountIDs         []string       `json:"account_ids"`
	KnowledgeSourceIDs []string       `json:"knowledge_source_ids"`
	Tools              []AnalysisTool `json:"tools"`
}

// Tool returns the scoped tool with the given ID, if present.
func (s *ResolvedScopes) Tool(toolID string) (*AnalysisTool, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tools {
		if s.Tools[i].ToolID == toolID {
			return &s.Tools[i], true
		}
	}
	return nil, false
}

// DocumentContext is the text subject of analysis, supplied once per run.
type DocumentContext struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
}

// Run is one execution of a playbook.
type Run struct {
	RunID      string     `json:"run_id"`
	PlaybookID string     `json:"playbook_id"`
	TenantID   string     `json:"tenant_id"`
	DocumentID string     `json:"document_id,omitempty"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunEvent is one observability record emitted during a run.
type RunEvent struct {
	EventID string    `json:"event_id"`
	RunID   string    `json:"run_id"`
	Ts      int64     `json:"ts"`
	Type    EventType `json:"type"`
	Payload []byte    `json:"payload,omitempty"`
}
