// Package ai provides an abstraction for the AI model client used for
// document analysis completions and embeddings.
package ai

import "context"

// CompletionRequest is one analysis completion call.
type CompletionRequest struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// CompletionResponse carries the model output and its usage telemetry.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	PromptTokens int    `json:"prompt_tokens"`
	OutputTokens int    `json:"output_tokens"`
	CacheHit     bool   `json:"cache_hit"`
}

// ModelClient defines the AI model operations the engine depends on.
type ModelClient interface {
	// Complete runs one analysis completion.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Embed generates a vector embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder is the narrow slice of ModelClient the indexing pipeline uses.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
