package search

import (
	"context"
	"sync"

	"github.com/sdap/playbook/internal/domain"
)

// MemoryIndex is an in-memory index implementing both index contracts,
// used in tests and local runs.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]domain.IndexedChunkRecord
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]domain.IndexedChunkRecord)}
}

var (
	_ KnowledgeIndex = (*MemoryIndex)(nil)
	_ DiscoveryIndex = (*MemoryIndex)(nil)
)

func (m *MemoryIndex) UploadBatch(ctx context.Context, records []domain.IndexedChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ChunkID] = r
	}
	return nil
}

func (m *MemoryIndex) DeleteBySource(ctx context.Context, documentID, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.DocumentID == documentID && r.TenantID == tenantID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *MemoryIndex) FindChunkIDs(ctx context.Context, documentID, tenantID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, r := range m.records {
		if r.DocumentID == documentID && r.TenantID == tenantID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

// Records returns a snapshot of all stored records.
func (m *MemoryIndex) Records() []domain.IndexedChunkRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.IndexedChunkRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

// Count returns the number of stored records.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
