package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeExecutionMetrics is the telemetry envelope attached to a NodeOutput.
// Token counts are pointers: nil means the executor could not observe them,
// which is distinct from zero.
type NodeExecutionMetrics struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	TokensIn    *int      `json:"tokens_in,omitempty"`
	TokensOut   *int      `json:"tokens_out,omitempty"`
	CacheHit    bool      `json:"cache_hit"`
	ModelCalls  int       `json:"model_calls"`
	ModelName   string    `json:"model_name,omitempty"`
}

// Duration is the wall-clock time between start and completion.
func (m *NodeExecutionMetrics) Duration() time.Duration {
	return m.CompletedAt.Sub(m.StartedAt)
}

// TotalTokens is the sum of input and output tokens. It is nil unless
// both counts are present; a partial count never reports as zero.
func (m *NodeExecutionMetrics) TotalTokens() *int {
	if m.TokensIn == nil || m.TokensOut == nil {
		return nil
	}
	total := *m.TokensIn + *m.TokensOut
	return &total
}

// ToolResult is what a tool handler returns from its own execution.
// Error codes set here pass through to the NodeOutput unchanged.
type ToolResult struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Confidence   *float64        `json:"confidence,omitempty"`
	ErrorCode    ErrorCode       `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	TokensIn     *int            `json:"tokens_in,omitempty"`
	TokensOut    *int            `json:"tokens_out,omitempty"`
	CacheHit     bool            `json:"cache_hit"`
	ModelCalls   int             `json:"model_calls"`
	ModelName    string          `json:"model_name,omitempty"`
}

// MetricsFromTool copies a tool's own execution metadata into the
// NodeExecutionMetrics shape so callers see one telemetry envelope
// regardless of which executor produced it.
func MetricsFromTool(res *ToolResult, startedAt, completedAt time.Time) *NodeExecutionMetrics {
	m := &NodeExecutionMetrics{
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
	if res != nil {
		m.TokensIn = res.TokensIn
		m.TokensOut = res.TokensOut
		m.CacheHit = res.CacheHit
		m.ModelCalls = res.ModelCalls
		m.ModelName = res.ModelName
	}
	return m
}

// NodeOutput is the uniform result every executor returns. It is
// immutable once created and appended to the run's output map under
// the node's output variable.
type NodeOutput struct {
	Success        bool                  `json:"success"`
	NodeID         string                `json:"node_id"`
	OutputVariable string                `json:"output_variable"`
	Content        string                `json:"content,omitempty"`
	Data           json.RawMessage       `json:"data,omitempty"`
	Confidence     *float64              `json:"confidence,omitempty"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	ErrorCode      ErrorCode             `json:"error_code,omitempty"`
	Metrics        *NodeExecutionMetrics `json:"metrics,omitempty"`
}

// Ok builds a success output. The structured payload is serialized at
// construction time; a nil payload yields a success with no data, which
// callers must tolerate.
func Ok(nodeID, outputVariable string, data any) NodeOutput {
	out := NodeOutput{
		Success:        true,
		NodeID:         nodeID,
		OutputVariable: outputVariable,
	}
	if data == nil {
		return out
	}
	if raw, ok := data.(json.RawMessage); ok {
		out.Data = raw
		return out
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Error(nodeID, outputVariable, fmt.Sprintf("failed to serialize output payload: %v", err), CodeInternalError)
	}
	out.Data = b
	return out
}

// Error builds a failure output with no structured payload.
func Error(nodeID, outputVariable, message string, code ErrorCode) NodeOutput {
	return NodeOutput{
		NodeID:         nodeID,
		OutputVariable: outputVariable,
		ErrorMessage:   message,
		ErrorCode:      code,
	}
}

// WithContent returns a copy with the human-readable text content set.
func (o NodeOutput) WithContent(content string) NodeOutput {
	o.Content = content
	return o
}

// WithConfidence returns a copy with confidence set (0..1).
func (o NodeOutput) WithConfidence(c float64) NodeOutput {
	o.Confidence = &c
	return o
}

// WithMetrics returns a copy with the telemetry envelope set.
func (o NodeOutput) WithMetrics(m *NodeExecutionMetrics) NodeOutput {
	o.Metrics = m
	return o
}

// DecodeData deserializes the structured payload on demand. An absent
// payload returns the zero value without error.
func DecodeData[T any](o NodeOutput) (T, error) {
	var v T
	if len(o.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(o.Data, &v); err != nil {
		return v, fmt.Errorf("decode node output data: %w", err)
	}
	return v, nil
}

// ConditionResult is the decision produced by a condition node, embedded
// in its NodeOutput payload. SelectedBranch is empty when the matched
// side declares no branch label.
type ConditionResult struct {
	Result         bool   `json:"result"`
	SelectedBranch string `json:"selectedBranch,omitempty"`
	TrueBranch     string `json:"trueBranch,omitempty"`
	FalseBranch    string `json:"falseBranch,omitempty"`
}
