// Package indexing chunks parsed document text, embeds the chunks and
// maintains the knowledge and discovery search indexes per document.
package indexing

import (
	"strings"

	"github.com/sdap/playbook/internal/domain"
)

// ChunkOptions controls one chunking pass. Size and overlap are in
// characters.
type ChunkOptions struct {
	Size    int
	Overlap int
}

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

func (o ChunkOptions) normalized() ChunkOptions {
	if o.Size <= 0 {
		o.Size = defaultChunkSize
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = defaultChunkOverlap
		if o.Overlap >= o.Size {
			o.Overlap = 0
		}
	}
	return o
}

// ChunkText splits text into overlapping chunks, preferring word
// boundaries. It is a pure function of its inputs.
func ChunkText(text string, opts ChunkOptions) []domain.TextChunk {
	opts = opts.normalized()
	content := strings.TrimSpace(text)
	if len(content) == 0 {
		return nil
	}

	var chunks []domain.TextChunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + opts.Size
		if end > len(content) {
			end = len(content)
		}

		// Break at the last word boundary inside the window so a word
		// is never split across chunks.
		if end < len(content) {
			lastSpace := strings.LastIndex(content[start:end], " ")
			if lastSpace > 0 {
				end = start + lastSpace
			}
		}

		chunkContent := strings.TrimSpace(content[start:end])
		if len(chunkContent) > 0 {
			chunks = append(chunks, domain.TextChunk{
				Content:   chunkContent,
				Index:     index,
				StartChar: start,
				EndChar:   end,
			})
			index++
		}

		if end >= len(content) {
			break
		}
		next := end - opts.Overlap
		if next <= start {
			// Overlap must never stall the scan.
			next = start + 1
		}
		start = next
	}

	return chunks
}
