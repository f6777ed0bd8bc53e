package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sdap/playbook/internal/adapter/mail"
	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/template"
)

type sendEmailConfig struct {
	To      []string `json:"to"`
	CC      []string `json:"cc"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// SendEmailExecutor sends mail through the mail collaborator as the
// caller. It requires a request-scoped identity; there is no service
// identity fallback.
type SendEmailExecutor struct {
	sender    mail.Sender
	templates TemplateRenderer
	gate      PolicyGate
}

// NewSendEmailExecutor creates the send-email executor.
func NewSendEmailExecutor(sender mail.Sender, templates TemplateRenderer, gate PolicyGate) *SendEmailExecutor {
	return &SendEmailExecutor{sender: sender, templates: templates, gate: gate}
}

func (e *SendEmailExecutor) SupportedActionKinds() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindSendEmail}
}

func (e *SendEmailExecutor) Validate(_ context.Context, ec *domain.NodeExecutionContext) ValidationResult {
	cfg, err := parseSendEmailConfig(ec.Node.ConfigJSON)
	if err != nil {
		return invalid("%v", err)
	}
	if len(cfg.To) == 0 {
		return invalid("send_email requires at least one recipient")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return invalid("send_email requires a subject")
	}
	if strings.TrimSpace(cfg.Body) == "" {
		return invalid("send_email requires a body")
	}
	return valid()
}

func (e *SendEmailExecutor) Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput {
	return safeExecute(ctx, ec, func() domain.NodeOutput {
		if vr := e.Validate(ctx, ec); !vr.Valid {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
		}
		cfg, _ := parseSendEmailConfig(ec.Node.ConfigJSON)

		if _, ok := domain.RequestIdentityFrom(ctx); !ok {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable,
				"no active request identity: send_email runs as the caller and requires request-scoped credentials",
				domain.CodeInternalError)
		}

		if blocked := authorize(ctx, e.gate, ec, map[string]any{"recipients": cfg.To}); blocked != nil {
			return *blocked
		}

		vars := template.BuildContext(ec.Outputs, ec.Document)
		msg := mail.Message{
			To:      renderAll(e.templates, cfg.To, vars),
			CC:      renderAll(e.templates, cfg.CC, vars),
			Subject: e.templates.Render(cfg.Subject, vars),
			Body:    e.templates.Render(cfg.Body, vars),
		}

		if err := e.sender.Send(ctx, msg); err != nil {
			return errOutput(ec, fmt.Errorf("send email: %w", err))
		}

		return domain.Ok(ec.Node.NodeID, ec.Node.OutputVariable, map[string]any{
			"recipients": msg.To,
			"subject":    msg.Subject,
		}).WithContent(fmt.Sprintf("email sent to %s", strings.Join(msg.To, ", ")))
	})
}

func renderAll(t TemplateRenderer, values []string, vars map[string]any) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = t.Render(v, vars)
	}
	return out
}

func parseSendEmailConfig(configJSON string) (*sendEmailConfig, error) {
	if strings.TrimSpace(configJSON) == "" {
		return nil, fmt.Errorf("send_email node has no configuration")
	}
	var cfg sendEmailConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("invalid send_email configuration: %w", err)
	}
	return &cfg, nil
}
