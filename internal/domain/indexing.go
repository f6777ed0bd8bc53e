package domain

import "time"

// ParsedDocument is the indexing pipeline's input, produced by the
// document parser collaborator.
type ParsedDocument struct {
	Text        string    `json:"text"`
	PageCount   int       `json:"page_count"`
	Parser      string    `json:"parser"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// TextChunk is one slice of document text produced by chunking.
type TextChunk struct {
	Content   string `json:"content"`
	Index     int    `json:"index"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// IndexedChunkRecord is one row in either search index. Every record
// carries its owning tenant id; a write without one is a correctness
// violation.
type IndexedChunkRecord struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	TenantID     string    `json:"tenant_id"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding"`
	DocumentName string    `json:"document_name,omitempty"`
	ChunkIndex   int       `json:"chunk_index"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// IndexingResult is the pipeline outcome returned to the caller.
type IndexingResult struct {
	DocumentID      string        `json:"document_id"`
	KnowledgeChunks int           `json:"knowledge_chunks"`
	DiscoveryChunks int           `json:"discovery_chunks"`
	Duration        time.Duration `json:"duration"`
}
