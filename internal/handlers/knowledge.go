package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/graph"
	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/indexer"
	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

type KnowledgeHandler struct {
	log       *logger.Logger
	mgr       *conn.Manager
	indexer   *indexer.Indexer
	retriever *graph.Retriever
}

func NewKnowledgeHandler(log *logger.Logger, mgr *conn.Manager, ix *indexer.Indexer, rt *graph.Retriever) *KnowledgeHandler {
	return &KnowledgeHandler{
		log:       log.With("handler", "KnowledgeHandler"),
		mgr:       mgr,
		indexer:   ix,
		retriever: rt,
	}
}

type reindexRequest struct {
	Force bool `json:"force"`
}

// Reindex runs one incremental cycle synchronously and returns its summary.
// Concurrent calls queue behind the indexer's cycle lock.
func (h *KnowledgeHandler) Reindex(c *gin.Context) {
	var req reindexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	result, err := h.indexer.Reindex(c.Request.Context(), req.Force)
	if err != nil {
		h.log.Error("Reindex failed", "error", err, "force", req.Force)
		status := http.StatusInternalServerError
		if errors.Is(err, kberr.ErrConnectionExhausted) {
			status = http.StatusServiceUnavailable
		}
		RespondError(c, status, "reindex_failed", err)
		return
	}
	RespondOK(c, result)
}

type queryRequest struct {
	Text          string `json:"text" binding:"required"`
	K             int    `json:"k"`
	ExpansionHops *int   `json:"expansion_hops"`
}

func (h *KnowledgeHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	hops := graph.DefaultExpansionHops
	if req.ExpansionHops != nil {
		hops = *req.ExpansionHops
	}

	sess, err := h.mgr.Ensure(c.Request.Context())
	if err != nil {
		h.log.Error("Query could not reach graph store", "error", err)
		RespondError(c, http.StatusServiceUnavailable, "store_unavailable", err)
		return
	}

	matches, err := h.retriever.Query(c.Request.Context(), sess, req.Text, req.K, hops)
	if err != nil {
		h.log.Error("Query failed", "error", err)
		// An embedding failure says nothing about the graph session; only
		// store errors warrant a redial.
		if !errors.Is(err, kberr.ErrEmbeddingProvider) {
			h.mgr.Invalidate(c.Request.Context())
		}
		RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	if matches == nil {
		matches = []knowledge.Match{}
	}
	RespondOK(c, gin.H{"matches": matches})
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
