package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdap/playbook/internal/domain"
)

// stubToolHandler is a programmable ToolHandler for executor tests.
type stubToolHandler struct {
	validateResult *domain.ToolResult
	result         *domain.ToolResult
	err            error
	calls          int
}

func (h *stubToolHandler) Validate(ctx context.Context, ec *domain.NodeExecutionContext, tool *domain.AnalysisTool) *domain.ToolResult {
	return h.validateResult
}

func (h *stubToolHandler) Execute(ctx context.Context, ec *domain.NodeExecutionContext, tool *domain.AnalysisTool) (*domain.ToolResult, error) {
	h.calls++
	return h.result, h.err
}

func analysisContext(handler ToolHandler, config string) (*AIAnalysisExecutor, *domain.NodeExecutionContext) {
	handlers := NewHandlerRegistry()
	handlers.MustRegister("DocumentAnalysisHandler", handler)

	ec := testContext(domain.ActionKindAIAnalysis, config, nil)
	ec.Node.ToolID = "tool-1"
	ec.Action.SystemPrompt = "You analyze contracts."
	ec.Scopes = &domain.ResolvedScopes{
		Tools: []domain.AnalysisTool{{
			ToolID:       "tool-1",
			Name:         "contract analysis",
			ToolType:     "analysis",
			HandlerClass: "DocumentAnalysisHandler",
		}},
	}
	return NewAIAnalysisExecutor(handlers), ec
}

func TestAIAnalysisSuccessCarriesToolMetrics(t *testing.T) {
	in, out := 120, 45
	conf := 0.91
	h := &stubToolHandler{result: &domain.ToolResult{
		Success:    true,
		Data:       json.RawMessage(`{"risk":"high"}`),
		Summary:    "High risk contract.",
		Confidence: &conf,
		TokensIn:   &in,
		TokensOut:  &out,
		ModelCalls: 1,
		ModelName:  "gpt-4o",
	}}
	exec, ec := analysisContext(h, `{}`)

	result := exec.Execute(context.Background(), ec)

	require.True(t, result.Success)
	assert.Equal(t, "High risk contract.", result.Content)
	assert.JSONEq(t, `{"risk":"high"}`, string(result.Data))
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 0.91, *result.Confidence)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 1, result.Metrics.ModelCalls)
	assert.Equal(t, "gpt-4o", result.Metrics.ModelName)
	require.NotNil(t, result.Metrics.TotalTokens())
	assert.Equal(t, 165, *result.Metrics.TotalTokens())
	assert.Equal(t, 1, h.calls)
}

func TestAIAnalysisToolErrorCodePassesThrough(t *testing.T) {
	h := &stubToolHandler{result: &domain.ToolResult{
		Success:      false,
		ErrorCode:    "rate_limited",
		ErrorMessage: "model quota exhausted",
	}}
	exec, ec := analysisContext(h, `{}`)

	result := exec.Execute(context.Background(), ec)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrorCode("rate_limited"), result.ErrorCode)
	assert.Equal(t, "model quota exhausted", result.ErrorMessage)
	assert.NotNil(t, result.Metrics)
}

func TestAIAnalysisToolValidationKeepsToolCode(t *testing.T) {
	h := &stubToolHandler{validateResult: &domain.ToolResult{
		ErrorCode:    "rate_limit_exceeded",
		ErrorMessage: "tool quota exhausted",
	}}
	exec, ec := analysisContext(h, `{}`)

	result := exec.Execute(context.Background(), ec)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrorCode("rate_limit_exceeded"), result.ErrorCode)
	assert.Equal(t, "tool quota exhausted", result.ErrorMessage)
	assert.Zero(t, h.calls, "failed tool validation must not reach the tool")
}

func TestAIAnalysisHandlerErrorBecomesInternal(t *testing.T) {
	h := &stubToolHandler{err: errors.New("connection reset")}
	exec, ec := analysisContext(h, `{}`)

	result := exec.Execute(context.Background(), ec)

	require.False(t, result.Success)
	assert.Equal(t, domain.CodeInternalError, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "connection reset")
}

func TestAIAnalysisCancelledBeforeToolCall(t *testing.T) {
	h := &stubToolHandler{result: &domain.ToolResult{Success: true}}
	exec, ec := analysisContext(h, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := exec.Execute(ctx, ec)

	require.False(t, result.Success)
	assert.Equal(t, domain.CodeCancelled, result.ErrorCode)
	assert.Zero(t, h.calls, "cancelled execution must not reach the tool")
}

func TestAIAnalysisInvalidContextNeverReachesTool(t *testing.T) {
	h := &stubToolHandler{result: &domain.ToolResult{Success: true}}
	exec, ec := analysisContext(h, `{}`)
	ec.Document.Text = "   "

	result := exec.Execute(context.Background(), ec)

	require.False(t, result.Success)
	assert.Equal(t, domain.CodeValidationFailed, result.ErrorCode)
	assert.Zero(t, h.calls)
}

func TestAIAnalysisValidate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		exec, ec := analysisContext(&stubToolHandler{}, `{}`)
		assert.True(t, exec.Validate(context.Background(), ec).Valid)
	})

	t.Run("missing tool reference", func(t *testing.T) {
		exec, ec := analysisContext(&stubToolHandler{}, `{}`)
		ec.Node.ToolID = ""
		vr := exec.Validate(context.Background(), ec)
		require.False(t, vr.Valid)
		assert.Contains(t, vr.Message(), "no tool reference")
	})

	t.Run("tool outside resolved scopes", func(t *testing.T) {
		exec, ec := analysisContext(&stubToolHandler{}, `{}`)
		ec.Scopes = &domain.ResolvedScopes{}
		vr := exec.Validate(context.Background(), ec)
		require.False(t, vr.Valid)
		assert.Contains(t, vr.Message(), "not in the run's resolved scopes")
	})

	t.Run("empty document text", func(t *testing.T) {
		exec, ec := analysisContext(&stubToolHandler{}, `{}`)
		ec.Document.Text = "   "
		vr := exec.Validate(context.Background(), ec)
		require.False(t, vr.Valid)
		assert.Contains(t, vr.Message(), "extracted text")
	})
}
