package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

const (
	DefaultTopK          = 5
	DefaultExpansionHops = 2
	maxExpansionHops     = 8
)

// Retriever answers similarity queries against the chunk graph: a vector
// search picks seed chunks, then NEXT_CHUNK edges pull in surrounding
// context from the same documents.
type Retriever struct {
	log       *logger.Logger
	embedder  knowledge.Embedder
	indexName string
}

func NewRetriever(log *logger.Logger, embedder knowledge.Embedder, indexName string) *Retriever {
	if indexName == "" {
		indexName = DefaultVectorIndexName
	}
	return &Retriever{
		log:       log.With("component", "GraphRetriever"),
		embedder:  embedder,
		indexName: indexName,
	}
}

// Query embeds the text, finds the k nearest chunks, and expands each match
// along NEXT_CHUNK edges in both directions up to hops steps. An empty graph
// or a missing vector index yields an empty result, not an error.
func (r *Retriever) Query(ctx context.Context, sess conn.Session, text string, k, hops int) ([]knowledge.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if hops < 0 {
		hops = 0
	}
	if hops > maxExpansionHops {
		hops = maxExpansionHops
	}

	vectors, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", kberr.ErrEmbeddingProvider, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: query: got %d vectors for one input", kberr.ErrEmbeddingProvider, len(vectors))
	}

	rows, err := sess.Run(ctx, `
CALL db.index.vector.queryNodes($index_name, $k, $query_vector)
YIELD node, score
RETURN node.id AS id,
       node.source AS source,
       node.filename AS filename,
       node.chunk_index AS chunk_index,
       node.text AS text,
       score AS score
ORDER BY score DESC`, map[string]any{
		"index_name":   r.indexName,
		"k":            int64(k),
		"query_vector": toFloat64(vectors[0]),
	})
	if err != nil {
		if isMissingIndex(err) {
			r.log.Warn("Vector index missing, returning empty result", "index", r.indexName)
			return nil, nil
		}
		return nil, fmt.Errorf("vector query: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	matches := make([]knowledge.Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, knowledge.Match{
			Chunk: rowToChunk(row),
			Score: asFloat(row["score"]),
		})
	}

	if hops > 0 {
		// Seen spans the whole result: a chunk surfaces once, either as a
		// match or as the neighbor of the best-scoring match that reached it.
		seen := make(map[string]struct{}, len(matches))
		for _, m := range matches {
			seen[m.Chunk.ID] = struct{}{}
		}
		for i := range matches {
			neighbors, err := r.expand(ctx, sess, matches[i].Chunk.ID, hops)
			if err != nil {
				return nil, err
			}
			matches[i].Neighbors = dedupNeighbors(neighbors, seen)
		}
	}

	return matches, nil
}

// expand walks NEXT_CHUNK edges away from a seed chunk in both directions.
// Cypher cannot parameterize variable-length bounds, so the clamped hop
// count is spliced as a literal; everything else stays a parameter.
func (r *Retriever) expand(ctx context.Context, sess conn.Session, id string, hops int) ([]knowledge.RetrievedChunk, error) {
	cypher := fmt.Sprintf(`
MATCH (seed:Chunk {id: $id})
MATCH (seed)-[:NEXT_CHUNK*1..%d]-(n:Chunk)
RETURN DISTINCT n.id AS id,
       n.source AS source,
       n.filename AS filename,
       n.chunk_index AS chunk_index,
       n.text AS text
ORDER BY chunk_index`, hops)

	rows, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("neighbor expansion: %w", err)
	}

	out := make([]knowledge.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToChunk(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// dedupNeighbors drops chunks already claimed elsewhere in the result and
// claims the rest, so callers never see the same chunk text twice.
func dedupNeighbors(neighbors []knowledge.RetrievedChunk, seen map[string]struct{}) []knowledge.RetrievedChunk {
	out := neighbors[:0]
	for _, n := range neighbors {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func rowToChunk(row map[string]any) knowledge.RetrievedChunk {
	return knowledge.RetrievedChunk{
		ID:       asString(row["id"]),
		Source:   asString(row["source"]),
		Filename: asString(row["filename"]),
		Index:    int(asInt(row["chunk_index"])),
		Text:     asString(row["text"]),
	}
}

func isMissingIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such index") ||
		strings.Contains(msg, "index does not exist") ||
		strings.Contains(msg, "there is no such vector schema index")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
