// Package search provides clients for the two per-document search
// indexes: the fine-grained knowledge index and the coarse-grained
// discovery index.
package search

import (
	"context"

	"github.com/sdap/playbook/internal/domain"
)

// KnowledgeIndex is the fine-grained index. It supports deleting all of
// a document's chunks directly by source.
type KnowledgeIndex interface {
	// UploadBatch writes records with merge-or-upload semantics: an
	// existing chunk id is overwritten, never duplicated.
	UploadBatch(ctx context.Context, records []domain.IndexedChunkRecord) error

	// DeleteBySource removes every chunk for (documentID, tenantID).
	DeleteBySource(ctx context.Context, documentID, tenantID string) error
}

// DiscoveryIndex is the coarse-grained index. It has no delete-by-source
// primitive: stale chunks must be found by query and deleted by id.
type DiscoveryIndex interface {
	UploadBatch(ctx context.Context, records []domain.IndexedChunkRecord) error

	// FindChunkIDs returns the ids of chunks belonging to
	// (documentID, tenantID).
	FindChunkIDs(ctx context.Context, documentID, tenantID string) ([]string, error)

	// DeleteByIDs batch-deletes the given chunk ids.
	DeleteByIDs(ctx context.Context, ids []string) error
}
