package ai

import (
	"context"
	"fmt"
	"hash/fnv"
)

// MockClient is a deterministic ModelClient for tests and local runs.
type MockClient struct{}

// NewMockClient creates a new mock model client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ ModelClient = (*MockClient)(nil)

// Complete returns a canned analysis response sized from the input.
func (m *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := fmt.Sprintf(`{"summary":"[MOCK] analysis of %d chars","key_findings":[],"details":""}`, len(req.UserPrompt))
	return &CompletionResponse{
		Content:      content,
		Model:        "mock-analysis-model",
		PromptTokens: (len(req.SystemPrompt) + len(req.UserPrompt)) / 4,
		OutputTokens: len(content) / 4,
	}, nil
}

// Embed derives a stable 8-dimension vector from the text hash so that
// identical chunks always embed identically.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec, nil
}

func (m *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
