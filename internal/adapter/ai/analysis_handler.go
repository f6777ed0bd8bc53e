package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sdap/playbook/internal/domain"
)

// DocumentAnalysisHandler is the built-in tool handler for document
// analysis: it assembles the prompt from the action's system prompt and
// runs one model completion over the document text.
type DocumentAnalysisHandler struct {
	client ModelClient
}

// NewDocumentAnalysisHandler creates the handler.
func NewDocumentAnalysisHandler(client ModelClient) *DocumentAnalysisHandler {
	return &DocumentAnalysisHandler{client: client}
}

// analysisConfig is the tool-specific slice of the node configuration.
type analysisConfig struct {
	OutputFormat string `json:"outputFormat"`
	Model        string `json:"model"`
}

// Validate checks the tool-specific configuration without calling the model.
func (h *DocumentAnalysisHandler) Validate(_ context.Context, ec *domain.NodeExecutionContext, _ *domain.AnalysisTool) *domain.ToolResult {
	if ec.Action == nil || strings.TrimSpace(ec.Action.SystemPrompt) == "" {
		return &domain.ToolResult{
			ErrorCode:    "missing_system_prompt",
			ErrorMessage: "analysis action has no system prompt",
		}
	}
	return nil
}

// Execute runs the analysis completion and reports its own telemetry.
func (h *DocumentAnalysisHandler) Execute(ctx context.Context, ec *domain.NodeExecutionContext, tool *domain.AnalysisTool) (*domain.ToolResult, error) {
	var cfg analysisConfig
	if ec.Node.ConfigJSON != "" {
		// Unknown fields belong to the executor layer; ignore them here.
		json.Unmarshal([]byte(ec.Node.ConfigJSON), &cfg)
	}

	resp, err := h.client.Complete(ctx, &CompletionRequest{
		Model:        cfg.Model,
		SystemPrompt: buildSystemPrompt(ec.Action.SystemPrompt, cfg.OutputFormat),
		UserPrompt:   buildUserPrompt(ec.Document),
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
	}

	data, summary := splitModelOutput(resp.Content)
	return &domain.ToolResult{
		Success:    true,
		Data:       data,
		Summary:    summary,
		TokensIn:   &resp.PromptTokens,
		TokensOut:  &resp.OutputTokens,
		CacheHit:   resp.CacheHit,
		ModelCalls: 1,
		ModelName:  resp.Model,
	}, nil
}

// buildSystemPrompt combines the action prompt with an output format
// instruction section.
func buildSystemPrompt(actionPrompt, outputFormat string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(actionPrompt))
	b.WriteString("\n\n## Output Format\n\n")
	if outputFormat == "structured_json" || outputFormat == "" {
		b.WriteString("Provide your analysis as a valid JSON object with 'summary', 'key_findings', and 'details' fields.")
	} else {
		b.WriteString("Provide your analysis as well-formatted " + outputFormat + ".")
	}
	return b.String()
}

func buildUserPrompt(doc *domain.DocumentContext) string {
	if doc == nil {
		return ""
	}
	return fmt.Sprintf("Document: %s\n\n%s", doc.Name, doc.Text)
}

// splitModelOutput keeps structured JSON output as the payload and pulls
// a summary field out of it when present; free text becomes the summary.
func splitModelOutput(content string) (json.RawMessage, string) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		var fields struct {
			Summary string `json:"summary"`
		}
		json.Unmarshal([]byte(trimmed), &fields)
		return json.RawMessage(trimmed), fields.Summary
	}
	return nil, trimmed
}
