package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/retrieval"
)

type RetrievalHandler struct {
	retriever retrieval.Service
}

func NewRetrievalHandler(retriever retrieval.Service) *RetrievalHandler {
	return &RetrievalHandler{retriever: retriever}
}

func (h *RetrievalHandler) Search(c *gin.Context) {
	var req struct {
		Query                string      `json:"query"`
		DocumentSetIDs       []uuid.UUID `json:"document_set_ids"`
		TopK                 int         `json:"top_k"`
		RerankTopN           int         `json:"rerank_top_n"`
		MinScore             float64     `json:"min_score"`
		IncludeParentContext bool        `json:"include_parent_context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if len(req.DocumentSetIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one document_set_id is required"})
		return
	}
	hits, err := h.retriever.Search(c.Request.Context(), req.Query, req.DocumentSetIDs, retrieval.Options{
		TopK:                 req.TopK,
		RerankTopN:           req.RerankTopN,
		MinScore:             req.MinScore,
		IncludeParentContext: req.IncludeParentContext,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits, "count": len(hits)})
}
