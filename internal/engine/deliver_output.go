package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/template"
)

// truncationMarker is appended verbatim when maxLength truncates output.
const truncationMarker = "...(truncated)"

type deliverOutputConfig struct {
	DeliveryType string               `json:"deliveryType"`
	Template     string               `json:"template"`
	OutputFormat *deliverOutputFormat `json:"outputFormat"`
}

type deliverOutputFormat struct {
	MaxLength       int  `json:"maxLength"`
	IncludeMetadata bool `json:"includeMetadata"`
}

// deliverResult is the structured payload of a deliver_output node.
type deliverResult struct {
	DeliveryType string `json:"deliveryType"`
	Content      string `json:"content"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// DeliverOutputExecutor renders final content through the template
// engine, or serializes the accumulated outputs directly for json
// deliveries with no template.
type DeliverOutputExecutor struct {
	templates TemplateRenderer
}

// NewDeliverOutputExecutor creates the deliver-output executor.
func NewDeliverOutputExecutor(templates TemplateRenderer) *DeliverOutputExecutor {
	return &DeliverOutputExecutor{templates: templates}
}

func (e *DeliverOutputExecutor) SupportedActionKinds() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindDeliverOutput}
}

func (e *DeliverOutputExecutor) Validate(_ context.Context, ec *domain.NodeExecutionContext) ValidationResult {
	cfg, err := parseDeliverConfig(ec.Node.ConfigJSON)
	if err != nil {
		return invalid("%v", err)
	}
	if !domain.ValidDeliveryType(cfg.DeliveryType) {
		return invalid("unknown delivery type %q", cfg.DeliveryType)
	}
	if domain.DeliveryType(cfg.DeliveryType) != domain.DeliveryTypeJSON && strings.TrimSpace(cfg.Template) == "" {
		return invalid("delivery type %s requires a template", cfg.DeliveryType)
	}
	return valid()
}

func (e *DeliverOutputExecutor) Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput {
	return safeExecute(ctx, ec, func() domain.NodeOutput {
		if vr := e.Validate(ctx, ec); !vr.Valid {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
		}
		cfg, _ := parseDeliverConfig(ec.Node.ConfigJSON)

		vars := template.BuildContext(ec.Outputs, ec.Document)
		var content string
		if domain.DeliveryType(cfg.DeliveryType) == domain.DeliveryTypeJSON {
			rendered, err := e.renderJSON(ec, cfg, vars)
			if err != nil {
				return errOutput(ec, err)
			}
			content = rendered
		} else {
			content = e.templates.Render(cfg.Template, vars)
		}

		truncated := false
		if cfg.OutputFormat != nil && cfg.OutputFormat.MaxLength > 0 && len(content) > cfg.OutputFormat.MaxLength {
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := cfg.OutputFormat.MaxLength
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + truncationMarker
			truncated = true
		}

		return domain.Ok(ec.Node.NodeID, ec.Node.OutputVariable, deliverResult{
			DeliveryType: cfg.DeliveryType,
			Content:      content,
			Truncated:    truncated,
		}).WithContent(content)
	})
}

// renderJSON produces the json delivery: a rendered template when one is
// configured, otherwise a direct serialization of the accumulated
// outputs. includeMetadata injects a _metadata field into the object.
func (e *DeliverOutputExecutor) renderJSON(ec *domain.NodeExecutionContext, cfg *deliverOutputConfig, vars map[string]any) (string, error) {
	var doc map[string]any

	if strings.TrimSpace(cfg.Template) != "" {
		rendered := e.templates.Render(cfg.Template, vars)
		if err := json.Unmarshal([]byte(rendered), &doc); err != nil {
			return "", fmt.Errorf("rendered template is not a valid json object: %w", err)
		}
	} else {
		doc = make(map[string]any, len(ec.Outputs))
		for name, out := range ec.Outputs {
			var data any
			if len(out.Data) > 0 {
				json.Unmarshal(out.Data, &data)
			}
			if data == nil && out.Content != "" {
				data = out.Content
			}
			doc[name] = data
		}
	}

	if cfg.OutputFormat != nil && cfg.OutputFormat.IncludeMetadata {
		doc["_metadata"] = map[string]any{
			"runId":       ec.RunID,
			"playbookId":  ec.PlaybookID,
			"nodeId":      ec.Node.NodeID,
			"generatedAt": time.Now().UTC().Format(time.RFC3339),
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("serialize json delivery: %w", err)
	}
	return string(b), nil
}

func parseDeliverConfig(configJSON string) (*deliverOutputConfig, error) {
	if strings.TrimSpace(configJSON) == "" {
		return nil, fmt.Errorf("deliver_output node has no configuration")
	}
	var cfg deliverOutputConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("invalid deliver_output configuration: %w", err)
	}
	return &cfg, nil
}
