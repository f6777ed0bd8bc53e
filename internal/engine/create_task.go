package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sdap/playbook/internal/adapter/crm"
	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/template"
)

type createTaskConfig struct {
	Subject             string `json:"subject"`
	Description         string `json:"description"`
	RegardingObjectID   string `json:"regardingObjectId"`
	RegardingObjectType string `json:"regardingObjectType"`
	OwnerID             string `json:"ownerId"`
}

// CreateTaskExecutor creates a follow-up task record. Regarding and
// owner references are written as relationship bindings, not scalar
// fields.
type CreateTaskExecutor struct {
	api       crm.WebAPI
	templates TemplateRenderer
	gate      PolicyGate
}

// NewCreateTaskExecutor creates the create-task executor.
func NewCreateTaskExecutor(api crm.WebAPI, templates TemplateRenderer, gate PolicyGate) *CreateTaskExecutor {
	return &CreateTaskExecutor{api: api, templates: templates, gate: gate}
}

func (e *CreateTaskExecutor) SupportedActionKinds() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindCreateTask}
}

func (e *CreateTaskExecutor) Validate(_ context.Context, ec *domain.NodeExecutionContext) ValidationResult {
	cfg, err := parseCreateTaskConfig(ec.Node.ConfigJSON)
	if err != nil {
		return invalid("%v", err)
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return invalid("create_task requires a subject")
	}
	if (cfg.RegardingObjectID == "") != (cfg.RegardingObjectType == "") {
		return invalid("regardingObjectId and regardingObjectType must be provided together")
	}
	return valid()
}

func (e *CreateTaskExecutor) Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput {
	return safeExecute(ctx, ec, func() domain.NodeOutput {
		if vr := e.Validate(ctx, ec); !vr.Valid {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
		}
		cfg, _ := parseCreateTaskConfig(ec.Node.ConfigJSON)

		if blocked := authorize(ctx, e.gate, ec, map[string]any{"entity": "task"}); blocked != nil {
			return *blocked
		}

		vars := template.BuildContext(ec.Outputs, ec.Document)
		fields := map[string]any{
			"subject": e.templates.Render(cfg.Subject, vars),
		}
		if cfg.Description != "" {
			fields["description"] = e.templates.Render(cfg.Description, vars)
		}
		if cfg.RegardingObjectID != "" {
			logicalName := strings.ToLower(strings.TrimSpace(cfg.RegardingObjectType))
			id := e.templates.Render(cfg.RegardingObjectID, vars)
			fields[fmt.Sprintf("regardingobjectid_%s@odata.bind", logicalName)] =
				crm.BindLookup(crm.EntitySetName(logicalName), id)
		}
		if cfg.OwnerID != "" {
			id := e.templates.Render(cfg.OwnerID, vars)
			fields["ownerid@odata.bind"] = crm.BindLookup("systemusers", id)
		}

		taskID, err := e.api.CreateRecord(ctx, "task", fields)
		if err != nil {
			return errOutput(ec, fmt.Errorf("create task: %w", err))
		}

		return domain.Ok(ec.Node.NodeID, ec.Node.OutputVariable, map[string]any{
			"taskId":  taskID,
			"subject": fields["subject"],
		}).WithContent(fmt.Sprintf("task created: %s", fields["subject"]))
	})
}

func parseCreateTaskConfig(configJSON string) (*createTaskConfig, error) {
	if strings.TrimSpace(configJSON) == "" {
		return nil, fmt.Errorf("create_task node has no configuration")
	}
	var cfg createTaskConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("invalid create_task configuration: %w", err)
	}
	return &cfg, nil
}
