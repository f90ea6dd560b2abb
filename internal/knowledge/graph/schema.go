package graph

import (
	"context"
	"fmt"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

const (
	// DefaultVectorIndexName matches the index the original deployment
	// created, so an existing graph keeps serving queries.
	DefaultVectorIndexName = "document_embeddings"
	DefaultEmbeddingDims   = 1536
)

// EnsureSchema creates the chunk constraint, the composite (source,
// chunk_index) index that keeps replacement and traversal cheap, and the
// vector index. Index names and dimensions cannot be parameterized in
// Cypher; both come from config, never from request input. Failures are
// logged and tolerated (restricted users may lack schema privileges).
func EnsureSchema(ctx context.Context, sess conn.Session, log *logger.Logger, indexName string, dims int) {
	if indexName == "" {
		indexName = DefaultVectorIndexName
	}
	if dims <= 0 {
		dims = DefaultEmbeddingDims
	}

	statements := []string{
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE INDEX chunk_sequence_index IF NOT EXISTS FOR (c:Chunk) ON (c.source, c.chunk_index)`,
		fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS
FOR (c:Chunk)
ON c.embedding
OPTIONS {indexConfig: {
  `+"`vector.dimensions`"+`: %d,
  `+"`vector.similarity_function`"+`: 'cosine'
}}`, indexName, dims),
	}

	for _, stmt := range statements {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		}
	}
}
