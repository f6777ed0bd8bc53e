package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sdap/playbook/internal/adapter/crm"
	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/template"
)

type lookupRef struct {
	EntitySet string `json:"entitySet"`
	RecordID  string `json:"recordId"`
}

type updateRecordConfig struct {
	EntityLogicalName string               `json:"entityLogicalName"`
	RecordID          string               `json:"recordId"`
	Fields            map[string]any       `json:"fields"`
	Lookups           map[string]lookupRef `json:"lookups"`
}

// UpdateRecordExecutor patches a CRM record's fields. Lookups become
// "@odata.bind" relationship bindings.
type UpdateRecordExecutor struct {
	api       crm.WebAPI
	templates TemplateRenderer
	gate      PolicyGate
}

// NewUpdateRecordExecutor creates the update-record executor.
func NewUpdateRecordExecutor(api crm.WebAPI, templates TemplateRenderer, gate PolicyGate) *UpdateRecordExecutor {
	return &UpdateRecordExecutor{api: api, templates: templates, gate: gate}
}

func (e *UpdateRecordExecutor) SupportedActionKinds() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindUpdateRecord}
}

func (e *UpdateRecordExecutor) Validate(_ context.Context, ec *domain.NodeExecutionContext) ValidationResult {
	cfg, err := parseUpdateRecordConfig(ec.Node.ConfigJSON)
	if err != nil {
		return invalid("%v", err)
	}
	if strings.TrimSpace(cfg.EntityLogicalName) == "" {
		return invalid("update_record requires entityLogicalName")
	}
	if strings.TrimSpace(cfg.RecordID) == "" {
		return invalid("update_record requires recordId")
	}
	if len(cfg.Fields) == 0 {
		return invalid("update_record requires a non-empty fields map")
	}
	return valid()
}

func (e *UpdateRecordExecutor) Execute(ctx context.Context, ec *domain.NodeExecutionContext) domain.NodeOutput {
	return safeExecute(ctx, ec, func() domain.NodeOutput {
		if vr := e.Validate(ctx, ec); !vr.Valid {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable, vr.Message(), domain.CodeValidationFailed)
		}
		cfg, _ := parseUpdateRecordConfig(ec.Node.ConfigJSON)

		vars := template.BuildContext(ec.Outputs, ec.Document)

		// The record id may be templated, so its format is only
		// checkable now, at execution time.
		recordID := e.templates.Render(cfg.RecordID, vars)
		if _, err := uuid.Parse(recordID); err != nil {
			return domain.Error(ec.Node.NodeID, ec.Node.OutputVariable,
				fmt.Sprintf("Invalid record ID: %q", recordID), domain.CodeInternalError)
		}

		if blocked := authorize(ctx, e.gate, ec, map[string]any{"entity": cfg.EntityLogicalName}); blocked != nil {
			return *blocked
		}

		fields := make(map[string]any, len(cfg.Fields)+len(cfg.Lookups))
		for name, value := range cfg.Fields {
			if s, ok := value.(string); ok {
				fields[name] = e.templates.Render(s, vars)
			} else {
				fields[name] = value
			}
		}
		for name, ref := range cfg.Lookups {
			id := e.templates.Render(ref.RecordID, vars)
			fields[name+"@odata.bind"] = crm.BindLookup(ref.EntitySet, id)
		}

		if err := e.api.UpdateRecord(ctx, cfg.EntityLogicalName, recordID, fields); err != nil {
			return errOutput(ec, fmt.Errorf("update %s(%s): %w", cfg.EntityLogicalName, recordID, err))
		}

		updated := make([]string, 0, len(fields))
		for name := range fields {
			updated = append(updated, name)
		}
		return domain.Ok(ec.Node.NodeID, ec.Node.OutputVariable, map[string]any{
			"entityLogicalName": cfg.EntityLogicalName,
			"recordId":          recordID,
			"updatedFields":     updated,
		}).WithContent(fmt.Sprintf("updated %d field(s) on %s(%s)", len(fields), cfg.EntityLogicalName, recordID))
	})
}

func parseUpdateRecordConfig(configJSON string) (*updateRecordConfig, error) {
	if strings.TrimSpace(configJSON) == "" {
		return nil, fmt.Errorf("update_record node has no configuration")
	}
	var cfg updateRecordConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("invalid update_record configuration: %w", err)
	}
	return &cfg, nil
}
