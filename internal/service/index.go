package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sdap/playbook/internal/domain"
)

// IndexDocument runs the indexing pipeline for one parsed document.
func (s *Service) IndexDocument(ctx context.Context, documentID string, req *domain.IndexDocumentRequest) (*domain.IndexingResult, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.IndexTimeout)
	defer cancel()

	parsed := &domain.ParsedDocument{
		Text:        req.Text,
		PageCount:   req.PageCount,
		Parser:      req.Parser,
		ExtractedAt: time.Now().UTC(),
	}
	return s.pipeline.IndexDocument(ctx, documentID, req.TenantID, req.DocumentName, parsed)
}
