package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sdap/playbook/internal/domain"
)

// ErrPlaybookNotFound and ErrRunNotFound distinguish missing resources
// from storage failures at the transport layer.
var (
	ErrPlaybookNotFound = errors.New("playbook not found")
	ErrRunNotFound      = errors.New("run not found")

	// ErrInvalidRequest marks caller mistakes (missing or malformed
	// fields) as opposed to engine failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// GetRun retrieves one run.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// GetRunResults retrieves a run and its node outputs so far.
func (s *Service) GetRunResults(ctx context.Context, runID string) (*domain.RunResultsResponse, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.GetNodeResults(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node results: %w", err)
	}
	return &domain.RunResultsResponse{Run: run, Results: results}, nil
}

// GetRunEvents retrieves a run's event log.
func (s *Service) GetRunEvents(ctx context.Context, runID string) ([]domain.RunEvent, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
