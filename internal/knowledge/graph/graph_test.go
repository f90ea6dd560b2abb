package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

type runCall struct {
	cypher string
	params map[string]any
}

// fakeSession records every Run/RunBatch and replays scripted rows keyed by
// a substring of the Cypher text.
type fakeSession struct {
	runs    []runCall
	batches [][]conn.Statement

	rowsFor  map[string][]map[string]any
	runErr   error
	batchErr error
}

func (f *fakeSession) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.runs = append(f.runs, runCall{cypher: cypher, params: params})
	if f.runErr != nil {
		return nil, f.runErr
	}
	for key, rows := range f.rowsFor {
		if strings.Contains(cypher, key) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeSession) RunBatch(ctx context.Context, statements []conn.Statement) error {
	f.batches = append(f.batches, statements)
	return f.batchErr
}

func (f *fakeSession) Ping(ctx context.Context) error  { return nil }
func (f *fakeSession) Close(ctx context.Context) error { return nil }

type fakeEmbedder struct {
	calls [][]string
	err   error
	dims  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls = append(f.calls, inputs)
	if f.err != nil {
		return nil, f.err
	}
	dims := f.dims
	if dims == 0 {
		dims = 4
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		v := make([]float32, dims)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func testChunks(source string, n int) []knowledge.Chunk {
	now := time.Now().UTC()
	out := make([]knowledge.Chunk, n)
	for i := range out {
		out[i] = knowledge.Chunk{
			ID:        source + "-" + string(rune('a'+i)),
			Source:    source,
			Filename:  "doc.md",
			Index:     i,
			Text:      "chunk " + string(rune('a'+i)),
			CreatedAt: now,
		}
	}
	return out
}

func TestReplaceSourceSingleTransaction(t *testing.T) {
	sess := &fakeSession{}
	emb := &fakeEmbedder{}
	b := NewBuilder(testLogger(t), emb)

	chunks := testChunks("kb/doc.md", 3)
	if err := b.ReplaceSource(context.Background(), sess, "kb/doc.md", chunks); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}

	if len(emb.calls) != 1 || len(emb.calls[0]) != 3 {
		t.Fatalf("expected one embed call with 3 texts, got %v", emb.calls)
	}
	if len(sess.batches) != 1 {
		t.Fatalf("expected one write transaction, got %d", len(sess.batches))
	}
	stmts := sess.batches[0]
	if len(stmts) != 3 {
		t.Fatalf("expected delete+create+link, got %d statements", len(stmts))
	}
	if !strings.Contains(stmts[0].Cypher, "DETACH DELETE") {
		t.Fatalf("first statement should delete: %s", stmts[0].Cypher)
	}
	if !strings.Contains(stmts[1].Cypher, "UNWIND $chunks") || !strings.Contains(stmts[1].Cypher, "CREATE") {
		t.Fatalf("second statement should create chunks: %s", stmts[1].Cypher)
	}
	if !strings.Contains(stmts[2].Cypher, "NEXT_CHUNK") || !strings.Contains(stmts[2].Cypher, "MERGE") {
		t.Fatalf("third statement should link chunks: %s", stmts[2].Cypher)
	}
	// Edges only between consecutive indices, so n chunks yield n-1 edges.
	if !strings.Contains(stmts[2].Cypher, "chunk_index + 1") {
		t.Fatalf("link statement must match consecutive indices: %s", stmts[2].Cypher)
	}

	rows, ok := stmts[1].Params["chunks"].([]map[string]any)
	if !ok || len(rows) != 3 {
		t.Fatalf("chunk rows missing: %v", stmts[1].Params)
	}
	for i, row := range rows {
		if row["chunk_index"] != int64(i) {
			t.Fatalf("row %d chunk_index = %v", i, row["chunk_index"])
		}
		vec, ok := row["embedding"].([]float64)
		if !ok || len(vec) != 4 {
			t.Fatalf("row %d embedding not widened: %T", i, row["embedding"])
		}
		if vec[0] != float64(i+1) {
			t.Fatalf("row %d got the wrong vector", i)
		}
	}
	if stmts[0].Params["source"] != "kb/doc.md" || stmts[2].Params["source"] != "kb/doc.md" {
		t.Fatalf("delete/link must be scoped to the source")
	}
}

func TestReplaceSourceEmbedFailure(t *testing.T) {
	sess := &fakeSession{}
	emb := &fakeEmbedder{err: errors.New("quota")}
	b := NewBuilder(testLogger(t), emb)

	err := b.ReplaceSource(context.Background(), sess, "kb/doc.md", testChunks("kb/doc.md", 2))
	if !errors.Is(err, kberr.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
	if len(sess.batches) != 0 {
		t.Fatalf("embed failure must not touch the graph")
	}
}

func TestReplaceSourceWriteFailure(t *testing.T) {
	sess := &fakeSession{batchErr: errors.New("deadlock")}
	b := NewBuilder(testLogger(t), &fakeEmbedder{})

	err := b.ReplaceSource(context.Background(), sess, "kb/doc.md", testChunks("kb/doc.md", 2))
	if !errors.Is(err, kberr.ErrGraphWrite) {
		t.Fatalf("expected ErrGraphWrite, got %v", err)
	}
}

func TestReplaceSourceEmptyChunksDeletes(t *testing.T) {
	sess := &fakeSession{}
	emb := &fakeEmbedder{}
	b := NewBuilder(testLogger(t), emb)

	if err := b.ReplaceSource(context.Background(), sess, "kb/doc.md", nil); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if len(emb.calls) != 0 {
		t.Fatalf("no chunks means no embed calls")
	}
	if len(sess.runs) != 1 || !strings.Contains(sess.runs[0].cypher, "DETACH DELETE") {
		t.Fatalf("expected a bare delete, got %v", sess.runs)
	}
}

func TestDeleteSource(t *testing.T) {
	sess := &fakeSession{}
	b := NewBuilder(testLogger(t), &fakeEmbedder{})

	if err := b.DeleteSource(context.Background(), sess, "kb/gone.md"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if len(sess.runs) != 1 {
		t.Fatalf("expected one delete run, got %d", len(sess.runs))
	}
	if sess.runs[0].params["source"] != "kb/gone.md" {
		t.Fatalf("delete must be parameterized by source")
	}

	sess.runErr = errors.New("down")
	if err := b.DeleteSource(context.Background(), sess, "kb/gone.md"); !errors.Is(err, kberr.ErrGraphWrite) {
		t.Fatalf("expected ErrGraphWrite, got %v", err)
	}
}

func TestEnsureSchemaIssuesAllStatements(t *testing.T) {
	sess := &fakeSession{}
	EnsureSchema(context.Background(), sess, testLogger(t), "document_embeddings", 1536)

	if len(sess.runs) != 3 {
		t.Fatalf("expected 3 schema statements, got %d", len(sess.runs))
	}
	joined := ""
	for _, r := range sess.runs {
		joined += r.cypher + "\n"
	}
	for _, want := range []string{"CONSTRAINT", "chunk_index", "VECTOR INDEX", "1536", "document_embeddings", "cosine"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("schema statements missing %q:\n%s", want, joined)
		}
	}
}

func TestEnsureSchemaToleratesFailures(t *testing.T) {
	sess := &fakeSession{runErr: errors.New("not supported in this edition")}
	// Must not panic or abort; callers treat schema setup as best effort.
	EnsureSchema(context.Background(), sess, testLogger(t), "document_embeddings", 1536)
	if len(sess.runs) != 3 {
		t.Fatalf("expected all statements attempted, got %d", len(sess.runs))
	}
}

func seedRow(id string, index int, score float64) map[string]any {
	return map[string]any{
		"id":          id,
		"source":      "kb/doc.md",
		"filename":    "doc.md",
		"chunk_index": int64(index),
		"text":        "text " + id,
		"score":       score,
	}
}

func TestQueryRanksAndExpands(t *testing.T) {
	sess := &fakeSession{
		rowsFor: map[string][]map[string]any{
			"db.index.vector.queryNodes": {
				seedRow("m1", 5, 0.93),
				seedRow("m2", 9, 0.81),
			},
			"NEXT_CHUNK*1..2": {
				{"id": "n4", "source": "kb/doc.md", "filename": "doc.md", "chunk_index": int64(4), "text": "text n4"},
				{"id": "n6", "source": "kb/doc.md", "filename": "doc.md", "chunk_index": int64(6), "text": "text n6"},
			},
		},
	}
	emb := &fakeEmbedder{}
	r := NewRetriever(testLogger(t), emb, "document_embeddings")

	matches, err := r.Query(context.Background(), sess, "where is the loot", 2, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Chunk.ID != "m1" || matches[0].Score != 0.93 {
		t.Fatalf("top match wrong: %+v", matches[0])
	}
	if len(matches[0].Neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %+v", matches[0].Neighbors)
	}
	if matches[0].Neighbors[0].Index != 4 || matches[0].Neighbors[1].Index != 6 {
		t.Fatalf("neighbors out of order: %+v", matches[0].Neighbors)
	}

	v := sess.runs[0]
	if v.params["index_name"] != "document_embeddings" {
		t.Fatalf("index name not passed: %v", v.params)
	}
	if v.params["k"] != int64(2) {
		t.Fatalf("k not passed: %v", v.params)
	}
	if _, ok := v.params["query_vector"].([]float64); !ok {
		t.Fatalf("query vector must be widened: %T", v.params["query_vector"])
	}
}

func TestQueryDedupsMatchesFromNeighbors(t *testing.T) {
	sess := &fakeSession{
		rowsFor: map[string][]map[string]any{
			"db.index.vector.queryNodes": {
				seedRow("m1", 5, 0.9),
				seedRow("m2", 6, 0.8),
			},
			"NEXT_CHUNK*1..1": {
				// m2 comes back as m1's neighbor and must be dropped.
				{"id": "m2", "source": "kb/doc.md", "filename": "doc.md", "chunk_index": int64(6), "text": "text m2"},
				{"id": "n7", "source": "kb/doc.md", "filename": "doc.md", "chunk_index": int64(7), "text": "text n7"},
			},
		},
	}
	r := NewRetriever(testLogger(t), &fakeEmbedder{}, "")

	matches, err := r.Query(context.Background(), sess, "query", 2, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, m := range matches {
		for _, n := range m.Neighbors {
			if n.ID == "m1" || n.ID == "m2" {
				t.Fatalf("match leaked into neighbors: %+v", m.Neighbors)
			}
		}
	}
	if len(matches[0].Neighbors) != 1 || matches[0].Neighbors[0].ID != "n7" {
		t.Fatalf("expected only n7 as neighbor, got %+v", matches[0].Neighbors)
	}
	// n7 was claimed by the higher-scoring match already.
	if matches[1].Neighbors != nil {
		t.Fatalf("expected no neighbors for the second match, got %+v", matches[1].Neighbors)
	}
}

func TestQueryEmptyGraph(t *testing.T) {
	sess := &fakeSession{}
	r := NewRetriever(testLogger(t), &fakeEmbedder{}, "")

	matches, err := r.Query(context.Background(), sess, "anything", 5, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if matches != nil {
		t.Fatalf("expected no matches, got %v", matches)
	}
}

func TestQueryMissingIndexIsEmptyNotError(t *testing.T) {
	sess := &fakeSession{runErr: errors.New("There is no such vector schema index: document_embeddings")}
	r := NewRetriever(testLogger(t), &fakeEmbedder{}, "")

	matches, err := r.Query(context.Background(), sess, "anything", 5, 2)
	if err != nil {
		t.Fatalf("missing index should not error: %v", err)
	}
	if matches != nil {
		t.Fatalf("expected empty result, got %v", matches)
	}
}

func TestQueryBlankTextShortCircuits(t *testing.T) {
	sess := &fakeSession{}
	emb := &fakeEmbedder{}
	r := NewRetriever(testLogger(t), emb, "")

	matches, err := r.Query(context.Background(), sess, "   ", 5, 2)
	if err != nil || matches != nil {
		t.Fatalf("blank query should be a no-op, got %v / %v", matches, err)
	}
	if len(emb.calls) != 0 || len(sess.runs) != 0 {
		t.Fatalf("blank query must not reach the embedder or store")
	}
}

func TestQueryClampsHops(t *testing.T) {
	sess := &fakeSession{
		rowsFor: map[string][]map[string]any{
			"db.index.vector.queryNodes": {seedRow("m1", 0, 0.9)},
		},
	}
	r := NewRetriever(testLogger(t), &fakeEmbedder{}, "")

	if _, err := r.Query(context.Background(), sess, "query", 1, 50); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(sess.runs) != 2 {
		t.Fatalf("expected vector query plus one expansion, got %d runs", len(sess.runs))
	}
	if !strings.Contains(sess.runs[1].cypher, "NEXT_CHUNK*1..8") {
		t.Fatalf("hops not clamped: %s", sess.runs[1].cypher)
	}
}
