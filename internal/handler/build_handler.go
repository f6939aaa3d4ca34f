package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/config"
	"github.com/armchr/codeindex/internal/gittrack"
	"github.com/armchr/codeindex/internal/index"
	"github.com/armchr/codeindex/internal/store"
)

// BuildHandler serves the indexing trigger endpoint (spec.md §4.I):
// resolve the configured repository, ensure it's cloned, and run one
// incremental index pass against the requested branch.
//
// Grounded on the teacher's internal/controller/repo_controller.go's
// BuildIndex: bind-validate-log-call-respond, with the same
// config-lookup-then-404 step for an unconfigured repository name.
type BuildHandler struct {
	cfg          *config.Config
	mysql        *store.MySQLStore
	tracker      *gittrack.Tracker
	orchestrator *index.Orchestrator
	logger       *zap.Logger
}

func NewBuildHandler(cfg *config.Config, mysql *store.MySQLStore, tracker *gittrack.Tracker, orchestrator *index.Orchestrator, logger *zap.Logger) *BuildHandler {
	return &BuildHandler{cfg: cfg, mysql: mysql, tracker: tracker, orchestrator: orchestrator, logger: logger}
}

type BuildIndexRequestBody struct {
	RepoName string `json:"repo_name" binding:"required"`
	Branch   string `json:"branch"`
}

type BuildIndexResponseBody struct {
	RepoName string `json:"repo_name"`
	Branch   string `json:"branch"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

func (h *BuildHandler) BuildIndex(c *gin.Context) {
	var body BuildIndexRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("invalid buildIndex request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request payload",
			"details": err.Error(),
		})
		return
	}

	cfgRepo, err := h.cfg.GetRepository(body.RepoName)
	if err != nil {
		h.logger.Error("repository not found in configuration", zap.String("repo_name", body.RepoName), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "repository not found in configuration",
			"details": err.Error(),
		})
		return
	}

	branch := body.Branch
	if branch == "" {
		branch = cfgRepo.DefaultBranch
	}

	h.logger.Info("processing build index request",
		zap.String("repo_name", body.RepoName),
		zap.String("branch", branch))

	repo, err := h.mysql.GetOrCreateRepository(cfgRepo.Name, cfgRepo.RemoteURL, cfgRepo.DefaultBranch)
	if err != nil {
		h.logger.Error("failed to register repository", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register repository", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.tracker.EnsureClone(ctx, cfgRepo.Name, cfgRepo.RemoteURL); err != nil {
		h.logger.Error("failed to clone repository", zap.String("repo_name", body.RepoName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clone repository", "details": err.Error()})
		return
	}

	if err := h.orchestrator.IndexBranch(ctx, repo, branch); err != nil {
		h.logger.Error("failed to index branch",
			zap.String("repo_name", body.RepoName), zap.String("branch", branch), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to index branch",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, BuildIndexResponseBody{
		RepoName: body.RepoName, Branch: branch, Status: "indexed",
	})
}
