package indexing

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdap/playbook/internal/adapter/ai"
	"github.com/sdap/playbook/internal/adapter/search"
	"github.com/sdap/playbook/internal/domain"
)

// Chunk id suffixes distinguish the two granularities of one document.
const (
	knowledgeSuffix = "k"
	discoverySuffix = "d"
)

// Pipeline indexes one parsed document into both search indexes:
// delete stale chunks, chunk at two granularities, embed, batch write.
// Re-running it for the same document always converges on the chunk
// set of the latest run.
type Pipeline struct {
	embedder  ai.Embedder
	knowledge search.KnowledgeIndex
	discovery search.DiscoveryIndex

	knowledgeOpts ChunkOptions
	discoveryOpts ChunkOptions
}

// NewPipeline creates an indexing pipeline over the given collaborators.
func NewPipeline(embedder ai.Embedder, knowledge search.KnowledgeIndex, discovery search.DiscoveryIndex, knowledgeOpts, discoveryOpts ChunkOptions) *Pipeline {
	return &Pipeline{
		embedder:      embedder,
		knowledge:     knowledge,
		discovery:     discovery,
		knowledgeOpts: knowledgeOpts,
		discoveryOpts: discoveryOpts,
	}
}

// IndexDocument runs the full pipeline for one document. Stale chunks
// are always deleted before any new write. Cancellation surfaces as an
// error; the caller never receives a partial result.
func (p *Pipeline) IndexDocument(ctx context.Context, documentID, tenantID, documentName string, doc *domain.ParsedDocument) (*domain.IndexingResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("parsed document is required")
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	startedAt := time.Now()

	if err := p.deleteStale(ctx, documentID, tenantID); err != nil {
		return nil, fmt.Errorf("delete stale chunks for %s: %w", documentID, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	knowledgeChunks := ChunkText(doc.Text, p.knowledgeOpts)
	discoveryChunks := ChunkText(doc.Text, p.discoveryOpts)

	indexedAt := time.Now().UTC()
	g, gctx := errgroup.WithContext(ctx)

	var knowledgeRecords, discoveryRecords []domain.IndexedChunkRecord
	g.Go(func() error {
		var err error
		knowledgeRecords, err = p.buildRecords(gctx, documentID, tenantID, documentName, knowledgeSuffix, knowledgeChunks, indexedAt)
		return err
	})
	g.Go(func() error {
		var err error
		discoveryRecords, err = p.buildRecords(gctx, documentID, tenantID, documentName, discoverySuffix, discoveryChunks, indexedAt)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(knowledgeRecords) == 0 {
			return nil
		}
		return p.knowledge.UploadBatch(gctx, knowledgeRecords)
	})
	g.Go(func() error {
		if len(discoveryRecords) == 0 {
			return nil
		}
		return p.discovery.UploadBatch(gctx, discoveryRecords)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("write chunks for %s: %w", documentID, err)
	}

	result := &domain.IndexingResult{
		DocumentID:      documentID,
		KnowledgeChunks: len(knowledgeRecords),
		DiscoveryChunks: len(discoveryRecords),
		Duration:        time.Since(startedAt),
	}
	log.Printf("indexed document %s: %d knowledge, %d discovery chunks in %s",
		documentID, result.KnowledgeChunks, result.DiscoveryChunks, result.Duration)
	return result, nil
}

// deleteStale removes both indexes' existing chunks for the document.
// The knowledge index deletes by source directly; the discovery index
// has no such primitive, so stale ids are found by query first.
func (p *Pipeline) deleteStale(ctx context.Context, documentID, tenantID string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.knowledge.DeleteBySource(gctx, documentID, tenantID)
	})
	g.Go(func() error {
		ids, err := p.discovery.FindChunkIDs(gctx, documentID, tenantID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return p.discovery.DeleteByIDs(gctx, ids)
	})

	return g.Wait()
}

// buildRecords embeds one granularity's chunks and shapes them into
// index records. Embedding is on the critical path: any failure aborts
// the document's indexing.
func (p *Pipeline) buildRecords(ctx context.Context, documentID, tenantID, documentName, suffix string, chunks []domain.TextChunk, indexedAt time.Time) ([]domain.IndexedChunkRecord, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s chunks: %w", suffix, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	records := make([]domain.IndexedChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.IndexedChunkRecord{
			ChunkID:      ChunkID(documentID, suffix, c.Index),
			DocumentID:   documentID,
			TenantID:     tenantID,
			Content:      c.Content,
			Embedding:    embeddings[i],
			DocumentName: documentName,
			ChunkIndex:   c.Index,
			IndexedAt:    indexedAt,
		}
	}
	return records, nil
}

// ChunkID is the deterministic id for one chunk: document id, a
// granularity suffix and the chunk's ordinal. Determinism is what makes
// merge-or-upload writes idempotent.
func ChunkID(documentID, suffix string, ordinal int) string {
	return fmt.Sprintf("%s-%s-%d", documentID, suffix, ordinal)
}
