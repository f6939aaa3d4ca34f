package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/compact"
	"github.com/armchr/codeindex/internal/query"
)

// QueryHandler serves the single Query operation spec.md §6 names.
type QueryHandler struct {
	orchestrator *query.Orchestrator
	compactCfg   compact.Config
	logger       *zap.Logger
}

func NewQueryHandler(orchestrator *query.Orchestrator, compactCfg compact.Config, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{orchestrator: orchestrator, compactCfg: compactCfg, logger: logger}
}

// QueryRequestBody is the wire shape of a Query call.
type QueryRequestBody struct {
	Repository string `json:"repository" binding:"required"`
	Query      string `json:"query" binding:"required"`
	Branch     string `json:"branch"`
	MaxResults int    `json:"max_results"`
	Profile    string `json:"profile"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var body QueryRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("invalid query request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request payload",
			"details": err.Error(),
		})
		return
	}

	h.logger.Info("processing query",
		zap.String("repository", body.Repository),
		zap.String("branch", body.Branch),
		zap.String("query", body.Query))

	resp := h.orchestrator.Query(c.Request.Context(), query.Request{
		Repository: body.Repository,
		Query:      body.Query,
		Branch:     body.Branch,
		MaxResults: body.MaxResults,
		Profile:    body.Profile,
	})

	compacted := compact.Compact(resp, h.compactCfg)
	c.JSON(http.StatusOK, compacted)
}
