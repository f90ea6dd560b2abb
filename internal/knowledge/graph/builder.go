package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

// Builder owns chunk nodes and their NEXT_CHUNK ordering edges. A source's
// chunks are always replaced wholesale: delete, insert, link, one write
// transaction, so the edge set can never drift from the chunk sequence.
type Builder struct {
	log      *logger.Logger
	embedder knowledge.Embedder
}

func NewBuilder(log *logger.Logger, embedder knowledge.Embedder) *Builder {
	return &Builder{
		log:      log.With("component", "GraphBuilder"),
		embedder: embedder,
	}
}

// ReplaceSource embeds the chunks and swaps them in for whatever the graph
// currently holds for this path. Deleting first is idempotent when the
// source was never indexed. Interruption rolls the transaction back, so the
// graph holds either the old chunk set or the new one, never a mix.
func (b *Builder) ReplaceSource(ctx context.Context, sess conn.Session, path string, chunks []knowledge.Chunk) error {
	if len(chunks) == 0 {
		return b.DeleteSource(ctx, sess, path)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", kberr.ErrEmbeddingProvider, path, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %s: got %d vectors for %d chunks", kberr.ErrEmbeddingProvider, path, len(vectors), len(chunks))
	}

	rows := make([]map[string]any, 0, len(chunks))
	for i, ch := range chunks {
		rows = append(rows, map[string]any{
			"id":          ch.ID,
			"source":      ch.Source,
			"filename":    ch.Filename,
			"chunk_index": int64(ch.Index),
			"text":        ch.Text,
			"embedding":   toFloat64(vectors[i]),
			"created_at":  ch.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	statements := []conn.Statement{
		{
			Cypher: `MATCH (c:Chunk {source: $source}) DETACH DELETE c`,
			Params: map[string]any{"source": path},
		},
		{
			Cypher: `
UNWIND $chunks AS ch
CREATE (c:Chunk {
  id: ch.id,
  source: ch.source,
  filename: ch.filename,
  chunk_index: ch.chunk_index,
  text: ch.text,
  embedding: ch.embedding,
  created_at: ch.created_at
})`,
			Params: map[string]any{"chunks": rows},
		},
		{
			Cypher: `
MATCH (a:Chunk {source: $source})
MATCH (b:Chunk {source: $source})
WHERE b.chunk_index = a.chunk_index + 1
MERGE (a)-[:NEXT_CHUNK]->(b)`,
			Params: map[string]any{"source": path},
		},
	}

	if err := sess.RunBatch(ctx, statements); err != nil {
		return fmt.Errorf("%w: replace %s: %v", kberr.ErrGraphWrite, path, err)
	}

	b.log.Debug("Source replaced", "source", path, "chunks", len(chunks))
	return nil
}

// DeleteSource removes every chunk and edge for a path. No-op when the path
// was never indexed.
func (b *Builder) DeleteSource(ctx context.Context, sess conn.Session, path string) error {
	_, err := sess.Run(ctx, `MATCH (c:Chunk {source: $source}) DETACH DELETE c`, map[string]any{"source": path})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", kberr.ErrGraphWrite, path, err)
	}
	b.log.Debug("Source deleted", "source", path)
	return nil
}

// toFloat64 widens embeddings for the wire; the driver round-trips float
// lists as float64.
func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
