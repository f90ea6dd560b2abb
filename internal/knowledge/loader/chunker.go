package loader

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Split cuts a document into overlapping chunks with zero-based monotonic
// indices. Embeddings are filled in later by the graph builder.
func Split(doc knowledge.Document, chunkSize, overlap int) []knowledge.Chunk {
	parts := splitText(doc.Text, chunkSize, overlap)
	if len(parts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	out := make([]knowledge.Chunk, 0, len(parts))
	for i, text := range parts {
		out = append(out, knowledge.Chunk{
			ID:        uuid.NewString(),
			Source:    doc.Path,
			Filename:  doc.Filename,
			Index:     i,
			Text:      text,
			CreatedAt: now,
		})
	}
	return out
}

// splitText works in runes so a window never cuts a UTF-8 sequence in half.
func splitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	r := []rune(text)

	if chunkSize < 200 {
		chunkSize = 200
	}
	if overlap < 0 {
		overlap = 0
	}
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	out := make([]string, 0, (len(r)/step)+1)
	for start := 0; start < len(r); start += step {
		end := start + chunkSize
		if end > len(r) {
			end = len(r)
		}

		p := strings.TrimSpace(string(r[start:end]))
		if p != "" {
			out = append(out, p)
		}

		if end == len(r) {
			break
		}
	}

	return out
}
