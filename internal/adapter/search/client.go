package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sdap/playbook/internal/domain"
)

// Client talks to one named search index over its REST document API.
// It implements both index contracts; the pipeline wires one instance
// per index name.
type Client struct {
	endpoint   string
	indexName  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a search index client.
func NewClient(endpoint, indexName, apiKey string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		indexName:  indexName,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var (
	_ KnowledgeIndex = (*Client)(nil)
	_ DiscoveryIndex = (*Client)(nil)
)

type indexAction struct {
	Action       string    `json:"@search.action"`
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Content      string    `json:"content,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	DocumentName string    `json:"document_name,omitempty"`
	ChunkIndex   int       `json:"chunk_index,omitempty"`
	IndexedAt    string    `json:"indexed_at,omitempty"`
}

type indexBatch struct {
	Value []indexAction `json:"value"`
}

// UploadBatch writes all records in one mergeOrUpload batch.
func (c *Client) UploadBatch(ctx context.Context, records []domain.IndexedChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := indexBatch{Value: make([]indexAction, len(records))}
	for i, r := range records {
		batch.Value[i] = indexAction{
			Action:       "mergeOrUpload",
			ChunkID:      r.ChunkID,
			DocumentID:   r.DocumentID,
			TenantID:     r.TenantID,
			Content:      r.Content,
			Embedding:    r.Embedding,
			DocumentName: r.DocumentName,
			ChunkIndex:   r.ChunkIndex,
			IndexedAt:    r.IndexedAt.UTC().Format(time.RFC3339),
		}
	}
	return c.postIndexBatch(ctx, batch)
}

// DeleteBySource removes every chunk of a document for one tenant via
// the index's delete-by-source operation.
func (c *Client) DeleteBySource(ctx context.Context, documentID, tenantID string) error {
	payload := map[string]string{
		"document_id": documentID,
		"tenant_id":   tenantID,
	}
	url := fmt.Sprintf("%s/indexes/%s/docs/deleteBySource?api-version=2024-07-01", c.endpoint, c.indexName)
	return c.post(ctx, url, payload, nil)
}

// FindChunkIDs queries for chunk ids scoped by document and tenant.
func (c *Client) FindChunkIDs(ctx context.Context, documentID, tenantID string) ([]string, error) {
	query := map[string]any{
		"filter": fmt.Sprintf("document_id eq '%s' and tenant_id eq '%s'", documentID, tenantID),
		"select": "chunk_id",
		"top":    1000,
	}
	var out struct {
		Value []struct {
			ChunkID string `json:"chunk_id"`
		} `json:"value"`
	}
	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=2024-07-01", c.endpoint, c.indexName)
	if err := c.post(ctx, url, query, &out); err != nil {
		return nil, err
	}
	ids := make([]string, len(out.Value))
	for i, v := range out.Value {
		ids[i] = v.ChunkID
	}
	return ids, nil
}

// DeleteByIDs batch-deletes chunks by id.
func (c *Client) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := indexBatch{Value: make([]indexAction, len(ids))}
	for i, id := range ids {
		batch.Value[i] = indexAction{Action: "delete", ChunkID: id}
	}
	return c.postIndexBatch(ctx, batch)
}

func (c *Client) postIndexBatch(ctx context.Context, batch indexBatch) error {
	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=2024-07-01", c.endpoint, c.indexName)
	return c.post(ctx, url, batch, nil)
}

func (c *Client) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search index %s: %w", c.indexName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("search index %s returned status %d: %s", c.indexName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
