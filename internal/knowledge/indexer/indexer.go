package indexer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/graph"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/ledger"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/loader"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/tracker"
	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

const (
	DefaultConcurrency = 4
	DefaultFileTimeout = 5 * time.Minute
)

// Options tunes one Indexer. Zero values fall back to defaults.
type Options struct {
	CorpusDir    string
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
	FileTimeout  time.Duration
}

// Indexer drives a full incremental cycle: enumerate the corpus, classify
// against the ledger, rebuild what changed, prune what disappeared, persist
// the new ledger. One cycle runs at a time; a second Reindex call blocks
// until the first finishes.
type Indexer struct {
	log     *logger.Logger
	mgr     *conn.Manager
	builder *graph.Builder
	ledger  *ledger.Store
	opts    Options

	indexName string
	dims      int

	mu sync.Mutex
}

func New(log *logger.Logger, mgr *conn.Manager, builder *graph.Builder, led *ledger.Store, indexName string, dims int, opts Options) *Indexer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = loader.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = loader.DefaultChunkOverlap
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = DefaultFileTimeout
	}
	if indexName == "" {
		indexName = graph.DefaultVectorIndexName
	}
	if dims <= 0 {
		dims = graph.DefaultEmbeddingDims
	}
	return &Indexer{
		log:       log.With("component", "Indexer"),
		mgr:       mgr,
		builder:   builder,
		ledger:    led,
		opts:      opts,
		indexName: indexName,
		dims:      dims,
	}
}

// Reindex runs one incremental cycle. force rebuilds every present file
// regardless of checksums. Per-file failures are collected, not fatal: the
// cycle continues, the failed file keeps its old ledger record (or none) so
// the next cycle retries it. Only an unreachable graph store or a ledger
// persistence failure aborts the cycle.
func (ix *Indexer) Reindex(ctx context.Context, force bool) (knowledge.ReindexResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var result knowledge.ReindexResult
	start := time.Now()

	sess, err := ix.mgr.Ensure(ctx)
	if err != nil {
		return result, err
	}
	graph.EnsureSchema(ctx, sess, ix.log, ix.indexName, ix.dims)

	paths, err := ix.listCorpus()
	if err != nil {
		return result, err
	}

	state, err := ix.ledger.Load(ctx)
	if err != nil {
		return result, err
	}

	cls := tracker.Classify(paths, state, force)

	ix.log.Info("Reindex starting",
		"corpus_dir", ix.opts.CorpusDir,
		"force", force,
		"new", len(cls.New),
		"modified", len(cls.Modified),
		"unchanged", len(cls.Unchanged),
		"deleted", len(cls.Deleted),
	)

	result.FilesSkipped = len(cls.Unchanged)

	var resMu sync.Mutex
	fail := func(path, stage string, err error) {
		resMu.Lock()
		defer resMu.Unlock()
		result.FilesFailed++
		result.Errors = append(result.Errors, knowledge.FileError{Path: path, Stage: stage, Err: err.Error()})
	}
	succeed := func(path string, rec knowledge.FileRecord) {
		resMu.Lock()
		defer resMu.Unlock()
		result.FilesProcessed++
		state[path] = rec
	}

	for _, path := range cls.Deleted {
		if err := ix.builder.DeleteSource(ctx, sess, path); err != nil {
			fail(path, "delete", err)
			continue
		}
		delete(state, path)
		resMu.Lock()
		result.FilesProcessed++
		resMu.Unlock()
	}

	pending := append(append([]string{}, cls.New...), cls.Modified...)
	sort.Strings(pending)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)
	for _, path := range pending {
		path := path
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, ix.opts.FileTimeout)
			defer cancel()

			rec, err := ix.indexFile(fctx, sess, path)
			if err != nil {
				// An exhausted store connection means every remaining file
				// would fail the same way; stop the cycle instead.
				if errors.Is(err, kberr.ErrConnectionExhausted) {
					return err
				}
				fail(path, stageOf(err), err)
				ix.log.Error("File indexing failed", "path", path, "error", err.Error())
				return nil
			}
			succeed(path, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	if err := ix.ledger.Save(ctx, state); err != nil {
		return result, err
	}

	ix.log.Info("Reindex finished",
		"processed", result.FilesProcessed,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"elapsed", time.Since(start).String(),
	)
	return result, nil
}

// indexFile loads, chunks, embeds and writes a single corpus file, then
// returns the fresh ledger record for it.
func (ix *Indexer) indexFile(ctx context.Context, sess conn.Session, path string) (knowledge.FileRecord, error) {
	var rec knowledge.FileRecord

	sum, err := tracker.Fingerprint(path)
	if err != nil {
		return rec, err
	}

	doc, err := loader.Load(path)
	if err != nil {
		return rec, err
	}

	chunks := loader.Split(doc, ix.opts.ChunkSize, ix.opts.ChunkOverlap)
	if err := ix.builder.ReplaceSource(ctx, sess, path, chunks); err != nil {
		return rec, err
	}

	ix.log.Debug("File indexed", "path", path, "chunks", len(chunks))
	return knowledge.FileRecord{
		Path:       path,
		Checksum:   sum,
		ModifiedAt: modTime(path),
		IndexedAt:  time.Now().UTC(),
	}, nil
}

// listCorpus walks the corpus directory for supported files. Hidden files
// and directories are skipped; subdirectories are included.
func (ix *Indexer) listCorpus() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(ix.opts.CorpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name != "." && len(name) > 0 && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if len(name) > 0 && name[0] == '.' {
			return nil
		}
		if !loader.Supported(path) {
			ix.log.Warn("Skipping unsupported file", "path", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func stageOf(err error) string {
	switch {
	case errors.Is(err, kberr.ErrEmbeddingProvider):
		return "embed"
	case errors.Is(err, kberr.ErrGraphWrite):
		return "write"
	default:
		return "load"
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}
