package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/engine"
)

// StartRun validates the request, snapshots the run's resolved scopes
// and starts node execution in the background.
func (s *Service) StartRun(ctx context.Context, playbookID string, req *domain.StartRunRequest) (*domain.StartRunResponse, error) {
	if strings.TrimSpace(playbookID) == "" {
		return nil, fmt.Errorf("%w: playbook_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Document.DocumentID) == "" {
		return nil, fmt.Errorf("%w: document.document_id is required", ErrInvalidRequest)
	}

	playbook, err := s.store.GetPlaybook(ctx, playbookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playbook: %w", err)
	}
	if playbook == nil {
		return nil, ErrPlaybookNotFound
	}

	nodes, err := s.store.ListNodes(ctx, playbookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: playbook %s has no nodes", ErrInvalidRequest, playbookID)
	}

	actions := make(map[string]domain.AnalysisAction, len(nodes))
	for _, n := range nodes {
		if _, ok := actions[n.ActionID]; ok {
			continue
		}
		action, err := s.store.GetAction(ctx, n.ActionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get action %s: %w", n.ActionID, err)
		}
		if action == nil {
			return nil, fmt.Errorf("node %s references unknown action %s", n.NodeID, n.ActionID)
		}
		actions[n.ActionID] = *action
	}

	// Scopes are computed once, before any node runs, and stay fixed
	// for the run's duration.
	tools, err := s.store.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	scopes := &domain.ResolvedScopes{Tools: tools}

	runID := "run_" + uuid.New().String()[:8]
	now := time.Now()
	run := &domain.Run{
		RunID:      runID,
		PlaybookID: playbookID,
		TenantID:   playbook.TenantID,
		DocumentID: req.Document.DocumentID,
		Status:     domain.RunStatusCreated,
		StartedAt:  now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := s.recordEvent(ctx, runID, domain.EventTypeRunStarted, map[string]any{
		"playbook_id": playbookID,
		"document_id": req.Document.DocumentID,
		"node_count":  len(nodes),
	}); err != nil {
		log.Printf("ERROR: failed to record run_started event: %v", err)
	}

	doc := req.Document
	in := &engine.RunInput{
		RunID:      runID,
		PlaybookID: playbookID,
		TenantID:   playbook.TenantID,
		Nodes:      nodes,
		Actions:    actions,
		Scopes:     scopes,
		Document:   &doc,
	}

	// The request identity must survive the HTTP request: executors
	// that act as the caller read it from the run's own context.
	bg := context.Background()
	if token, ok := domain.RequestIdentityFrom(ctx); ok {
		bg = domain.WithRequestIdentity(bg, token)
	}
	go s.processRun(bg, in)

	return &domain.StartRunResponse{
		RunID:      runID,
		PlaybookID: playbookID,
		Status:     domain.RunStatusCreated,
	}, nil
}

// processRun drives the run to a terminal status.
func (s *Service) processRun(ctx context.Context, in *engine.RunInput) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	if err := s.store.UpdateRunStatus(ctx, in.RunID, domain.RunStatusRunning, ""); err != nil {
		log.Printf("ERROR: failed to update run status: %v", err)
	}

	in.OnNodeStarted = func(node *domain.PlaybookNode) {
		if err := s.recordEvent(ctx, in.RunID, domain.EventTypeNodeStarted, map[string]any{
			"node_id": node.NodeID,
			"name":    node.Name,
		}); err != nil {
			log.Printf("ERROR: failed to record node_started event: %v", err)
		}
	}
	in.OnNodeCompleted = func(node *domain.PlaybookNode, out domain.NodeOutput) {
		if err := s.store.SaveNodeResult(ctx, in.RunID, &out); err != nil {
			log.Printf("ERROR: failed to save node result for %s: %v", node.NodeID, err)
		}
		if err := s.recordEvent(ctx, in.RunID, domain.EventTypeNodeCompleted, map[string]any{
			"node_id":         node.NodeID,
			"output_variable": node.OutputVariable,
			"success":         out.Success,
			"error_code":      out.ErrorCode,
		}); err != nil {
			log.Printf("ERROR: failed to record node_completed event: %v", err)
		}
		// Branch routing is visible in the event log as its own entry.
		if cr, err := domain.DecodeData[domain.ConditionResult](out); err == nil &&
			out.Success && cr.SelectedBranch != "" {
			if err := s.recordEvent(ctx, in.RunID, domain.EventTypeBranchTaken, map[string]any{
				"node_id": node.NodeID,
				"branch":  cr.SelectedBranch,
			}); err != nil {
				log.Printf("ERROR: failed to record branch_taken event: %v", err)
			}
		}
	}

	result, err := s.runner.Run(ctx, in)
	if err != nil {
		// A run-level error here is cancellation or timeout; persistence
		// must not use the dead context.
		bg, bgCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer bgCancel()
		status := domain.RunStatusFailed
		eventType := domain.EventTypeRunFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = domain.RunStatusCancelled
			eventType = domain.EventTypeRunCancelled
		}
		if uerr := s.store.UpdateRunStatus(bg, in.RunID, status, err.Error()); uerr != nil {
			log.Printf("ERROR: failed to update run status: %v", uerr)
		}
		if eerr := s.recordEvent(bg, in.RunID, eventType, map[string]any{"error": err.Error()}); eerr != nil {
			log.Printf("ERROR: failed to record run event: %v", eerr)
		}
		return
	}

	status := domain.RunStatusDone
	eventType := domain.EventTypeRunDone
	errMsg := ""
	if result.Failed {
		status = domain.RunStatusFailed
		eventType = domain.EventTypeRunFailed
		errMsg = "one or more nodes failed"
	}
	if err := s.store.UpdateRunStatus(ctx, in.RunID, status, errMsg); err != nil {
		log.Printf("ERROR: failed to update run status: %v", err)
	}
	if err := s.recordEvent(ctx, in.RunID, eventType, map[string]any{
		"node_count": len(result.Outputs),
	}); err != nil {
		log.Printf("ERROR: failed to record run event: %v", err)
	}
}
