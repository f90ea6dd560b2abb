package knowledge

import (
	"context"
	"time"
)

// FileRecord is the persisted ledger entry for one corpus file. It is the
// authority on what has been indexed; a file with no record (or a stale
// checksum) gets reprocessed.
type FileRecord struct {
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modified_at"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// IndexState is the full path -> FileRecord ledger. An empty state means
// first run: every corpus file classifies as new.
type IndexState map[string]FileRecord

// Chunk is one ordered text segment of a source document, stored as a
// (:Chunk) node with its embedding.
type Chunk struct {
	ID        string
	Source    string
	Filename  string
	Index     int
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Document is the extracted text of one corpus file before splitting.
type Document struct {
	Path     string
	Filename string
	Format   string // markdown|pdf|text
	Text     string
	Pages    int // pdf only
}

// Classification buckets corpus paths by what the ledger says about them.
type Classification struct {
	New       []string
	Modified  []string
	Unchanged []string
	Deleted   []string
}

// FileError is one per-file failure inside a reindex cycle.
type FileError struct {
	Path  string `json:"path"`
	Stage string `json:"stage"` // load|embed|write|delete
	Err   string `json:"error"`
}

// ReindexResult summarizes one reindex cycle for the caller.
type ReindexResult struct {
	FilesProcessed int         `json:"files_processed"`
	FilesSkipped   int         `json:"files_skipped"`
	FilesFailed    int         `json:"files_failed"`
	Errors         []FileError `json:"errors,omitempty"`
}

// Match is one retrieval hit: the similarity-matched chunk plus the
// graph-adjacent neighbors pulled in for continuity.
type Match struct {
	Chunk     RetrievedChunk   `json:"chunk"`
	Score     float64          `json:"score"`
	Neighbors []RetrievedChunk `json:"neighbors,omitempty"`
}

// RetrievedChunk carries provenance so callers can cite the source.
type RetrievedChunk struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Filename string `json:"filename"`
	Index    int    `json:"chunk_index"`
	Text     string `json:"text"`
}

// Embedder turns text into fixed-length vectors. The provider client owns
// its own bounded retry policy, independent of graph-store reconnects.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}
