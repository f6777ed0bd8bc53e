package indexing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdap/playbook/internal/adapter/ai"
	"github.com/sdap/playbook/internal/adapter/search"
	"github.com/sdap/playbook/internal/domain"
)

func testPipeline(t *testing.T) (*Pipeline, *search.MemoryIndex, *search.MemoryIndex) {
	t.Helper()
	knowledge := search.NewMemoryIndex()
	discovery := search.NewMemoryIndex()
	p := NewPipeline(ai.NewMockClient(), knowledge, discovery,
		ChunkOptions{Size: 80, Overlap: 10},
		ChunkOptions{Size: 200, Overlap: 20})
	return p, knowledge, discovery
}

func parsedDoc(text string) *domain.ParsedDocument {
	return &domain.ParsedDocument{Text: text, PageCount: 1, Parser: "test", ExtractedAt: time.Now()}
}

func TestIndexDocumentWritesBothIndexes(t *testing.T) {
	p, knowledge, discovery := testPipeline(t)
	text := strings.Repeat("clause one applies to all parties hereto ", 20)

	res, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "contract.pdf", parsedDoc(text))
	require.NoError(t, err)

	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, res.KnowledgeChunks, knowledge.Count())
	assert.Equal(t, res.DiscoveryChunks, discovery.Count())
	// Finer granularity yields more chunks.
	assert.Greater(t, res.KnowledgeChunks, res.DiscoveryChunks)
	assert.Greater(t, res.Duration, time.Duration(0))

	for _, r := range knowledge.Records() {
		assert.True(t, strings.HasPrefix(r.ChunkID, "doc-1-k-"), r.ChunkID)
		assert.NotEmpty(t, r.Embedding)
		assert.Equal(t, "contract.pdf", r.DocumentName)
	}
	for _, r := range discovery.Records() {
		assert.True(t, strings.HasPrefix(r.ChunkID, "doc-1-d-"), r.ChunkID)
	}
}

func TestIndexDocumentIdempotentReindex(t *testing.T) {
	p, knowledge, discovery := testPipeline(t)
	long := strings.Repeat("the first revision of this document is long ", 40)
	short := "the second revision is much shorter than the first one was"

	_, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "contract.pdf", parsedDoc(long))
	require.NoError(t, err)
	firstKnowledge := knowledge.Count()
	require.Greater(t, firstKnowledge, 1)

	res, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "contract.pdf", parsedDoc(short))
	require.NoError(t, err)

	// Only the second run's chunks remain; nothing from the first run
	// survives as an orphan.
	assert.Equal(t, res.KnowledgeChunks, knowledge.Count())
	assert.Equal(t, res.DiscoveryChunks, discovery.Count())
	assert.Less(t, knowledge.Count(), firstKnowledge)
	for _, r := range knowledge.Records() {
		assert.Contains(t, r.Content, "second revision")
	}
}

func TestIndexDocumentTenantIsolation(t *testing.T) {
	p, knowledge, discovery := testPipeline(t)

	_, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "a.pdf", parsedDoc("tenant a's private document content"))
	require.NoError(t, err)
	_, err = p.IndexDocument(context.Background(), "doc-2", "tenant-b", "b.pdf", parsedDoc("tenant b's separate document content"))
	require.NoError(t, err)

	// Every record carries its tenant id.
	tenants := map[string]bool{}
	for _, r := range append(knowledge.Records(), discovery.Records()...) {
		require.NotEmpty(t, r.TenantID)
		tenants[r.TenantID] = true
	}
	assert.True(t, tenants["tenant-a"])
	assert.True(t, tenants["tenant-b"])

	// Re-indexing tenant a's document must not disturb tenant b's chunks.
	_, err = p.IndexDocument(context.Background(), "doc-1", "tenant-a", "a.pdf", parsedDoc("tenant a revised"))
	require.NoError(t, err)
	var bChunks int
	for _, r := range knowledge.Records() {
		if r.TenantID == "tenant-b" {
			bChunks++
		}
	}
	assert.Greater(t, bChunks, 0)
}

func TestIndexDocumentArgValidation(t *testing.T) {
	p, knowledge, _ := testPipeline(t)

	_, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "x", nil)
	assert.ErrorContains(t, err, "parsed document is required")

	_, err = p.IndexDocument(context.Background(), " ", "tenant-a", "x", parsedDoc("text"))
	assert.ErrorContains(t, err, "document id is required")

	_, err = p.IndexDocument(context.Background(), "doc-1", "", "x", parsedDoc("text"))
	assert.ErrorContains(t, err, "tenant id is required")

	assert.Zero(t, knowledge.Count(), "validation failures must precede any index call")
}

func TestIndexDocumentCancelled(t *testing.T) {
	p, knowledge, discovery := testPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.IndexDocument(ctx, "doc-1", "tenant-a", "x", parsedDoc("some text"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, knowledge.Count())
	assert.Zero(t, discovery.Count())
}

func TestIndexDocumentEmbedFailureAbortsWrite(t *testing.T) {
	knowledge := search.NewMemoryIndex()
	discovery := search.NewMemoryIndex()
	p := NewPipeline(failingEmbedder{}, knowledge, discovery,
		ChunkOptions{Size: 80}, ChunkOptions{Size: 200})

	_, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "x", parsedDoc("some document text"))
	require.Error(t, err)
	assert.Zero(t, knowledge.Count(), "no chunk may be written when embedding fails")
	assert.Zero(t, discovery.Count())
}

func TestIndexDocumentEmptyText(t *testing.T) {
	p, knowledge, discovery := testPipeline(t)

	res, err := p.IndexDocument(context.Background(), "doc-1", "tenant-a", "x", parsedDoc("   "))
	require.NoError(t, err)
	assert.Zero(t, res.KnowledgeChunks)
	assert.Zero(t, res.DiscoveryChunks)
	assert.Zero(t, knowledge.Count())
	assert.Zero(t, discovery.Count())
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1-k-0", ChunkID("doc-1", knowledgeSuffix, 0))
	assert.Equal(t, "doc-1-d-12", ChunkID("doc-1", discoverySuffix, 12))
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}
