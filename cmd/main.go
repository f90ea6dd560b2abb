package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jasonroberts79/cyberpunk-looter/internal/handlers"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/graph"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/indexer"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/ledger"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/envutil"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/gcs"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/neo4jdb"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/openai"
	"github.com/jasonroberts79/cyberpunk-looter/internal/server"
)

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Env
	log.Info("Loading environment variables from main...")
	corpusDir := envutil.Str("KNOWLEDGE_CORPUS_DIR", "knowledge_base")
	indexName := envutil.Str("VECTOR_INDEX_NAME", graph.DefaultVectorIndexName)
	dims := envutil.Int("EMBEDDING_DIMENSIONS", graph.DefaultEmbeddingDims)
	ledgerKey := envutil.Str("TRACKING_OBJECT_KEY", ledger.DefaultObjectKey)

	// Object storage for the tracking ledger
	log.Info("Setting up blob store from main...")
	blob, err := gcs.NewFromConfig(ctx, gcs.ConfigFromEnv(), log)
	if err != nil {
		log.Error("Could not init blob store", "error", err)
		os.Exit(1)
	}
	ledgerStore := ledger.NewStore(log, blob, ledgerKey)

	// Embedding provider
	log.Info("Setting up embedding client from main...")
	embedder, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init embedding client", "error", err)
		os.Exit(1)
	}

	// Graph store connection manager
	log.Info("Setting up graph connection from main...")
	policy := conn.DefaultRetryPolicy()
	policy.MaxAttempts = envutil.Int("NEO4J_RETRY_MAX_ATTEMPTS", policy.MaxAttempts)
	policy.BaseDelay = envutil.Seconds("NEO4J_RETRY_BASE_SECONDS", policy.BaseDelay)
	policy.Multiplier = envutil.Float("NEO4J_RETRY_MULTIPLIER", policy.Multiplier)
	policy.MaxDelay = envutil.Seconds("NEO4J_RETRY_MAX_DELAY_SECONDS", policy.MaxDelay)
	mgr := conn.NewManager(log, neo4jdb.Dialer(neo4jdb.ConfigFromEnv(), log), policy)
	defer mgr.Close(ctx)

	// Knowledge components
	builder := graph.NewBuilder(log, embedder)
	retriever := graph.NewRetriever(log, embedder, indexName)
	ix := indexer.New(log, mgr, builder, ledgerStore, indexName, dims, indexer.Options{
		CorpusDir:    corpusDir,
		ChunkSize:    envutil.Int("CHUNK_SIZE", 0),
		ChunkOverlap: envutil.Int("CHUNK_OVERLAP", -1),
		Concurrency:  envutil.Int("INDEX_CONCURRENCY", 0),
		FileTimeout:  envutil.Seconds("INDEX_FILE_TIMEOUT_SECONDS", 0),
	})

	if envutil.Bool("REINDEX_ON_START", true) {
		go func() {
			if _, err := ix.Reindex(ctx, envutil.Bool("REINDEX_FORCE", false)); err != nil {
				log.Error("Startup reindex failed", "error", err)
			}
		}()
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	knowledgeHandler := handlers.NewKnowledgeHandler(log, mgr, ix, retriever)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: knowledgeHandler,
		AllowOrigins:     splitOrigins(envutil.Str("CORS_ALLOW_ORIGINS", "")),
	})

	port := envutil.Str("PORT", "8080")
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}

func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
