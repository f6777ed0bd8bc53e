package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sdap/playbook/internal/domain"
)

// AIAnalysisExecutor delegates to the tool handler registered for the
// node's tool, which performs the model call.
type AIAnalysisExecutor struct {
	handlers *HandlerRegistry
}

// NewAIAnalysisExecutor creates the AI analysis executor.
func NewAIAnalysisExecutor(handlers *HandlerRegistry) *AIAnalysisExecutor {
	return &AIAnalysisExecutor{handlers: handlers}
}

func (e *AIAnalysisExecutor) SupportedActionKinds() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindAIAnalysis}
}

// resolveTool finds the node's tool in the run's resolved scopes and its
// registered handler.
func (e *AIAnalysisExecutor) resolveTool(ec *domain.NodeExecutionContext) (*domain.AnalysisTool, ToolHandler, error) {
	if ec.Node.ToolID == "" {
		return nil, nil, fmt.Errorf("analysis node has no tool reference")
	}
	tool, ok := ec.Scopes.Tool(ec.Node.ToolID)
	if !ok {
		return nil, nil, fmt.Errorf("tool %s is not in the run's resolved scopes", ec.Node.ToolID)
	}
	handler, ok := e.handlers.Handler(tool.HandlerClass)
	if !ok {
		return nil, nil, fmt.Errorf("no handler registered for handler class %q", tool.HandlerClass)
	}
	return tool, handler, nil
}

func (e *AIAnalysisExecutor) Validate(ctx context.Context, ec *domain.NodeExecutionContext) ValidationResult {
	if _, _, err := e.resolveTool(ec); err != nil {
		return invalid("%v", err)
	}
	if ec.Document == nil || strings.TrimSpace(ec.Document.Text) == "" {
		return invalid("analysis requires a document with extracted text")
	}
	return valid()
}

func (e *AIAnalysisExecutor) Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput {
	return safeExecute(ctx, ec, func() domain.NodeOutput {
		if vr := e.Validate(ctx, ec); !vr.Valid {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
		}
		tool, handler, _ := e.resolveTool(ec)

		// A tool-level validation failure keeps the tool's own error code.
		if res := handler.Validate(ctx, ec, tool); res != nil {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, res.ErrorMessage, res.ErrorCode)
		}

		startedAt := time.Now()
		res, err := handler.Execute(ctx, ec, tool)
		completedAt := time.Now()
		if err != nil {
			return errOutput(ec, err)
		}

		metrics := domain.MetricsFromTool(res, startedAt, completedAt)
		if !res.Success {
			// The tool's own error code passes through unchanged.
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, res.ErrorMessage, res.ErrorCode).
				WithMetrics(metrics)
		}

		out := domain.Ok(ec.Node.NodeID, ec.Node.OutputVariable, res.Data).
			WithContent(res.Summary).
			WithMetrics(metrics)
		if res.Confidence != nil {
			out = out.WithConfidence(*res.Confidence)
		}
		return out
	})
}
