package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/store"
)

// RepoHandler serves the read-only repository/branch management
// endpoints: list tracked repositories and, per repository, the
// branches this index has seen along with their index_state. Additive
// to the Query path — nothing here is consulted by Query itself.
//
// Grounded on the teacher's codeAPI.ListRepos route (internal/handler/
// router.go's codeAPI group) and BuildHandler's own bind-log-call-
// respond shape; unlike raw Cypher passthrough (dropped, see DESIGN.md),
// these endpoints only read through the existing Store interface.
type RepoHandler struct {
	mysql  *store.MySQLStore
	logger *zap.Logger
}

func NewRepoHandler(mysql *store.MySQLStore, logger *zap.Logger) *RepoHandler {
	return &RepoHandler{mysql: mysql, logger: logger}
}

type RepoSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RemoteURL     string `json:"remote_url"`
	DefaultBranch string `json:"default_branch"`
}

type BranchSummary struct {
	Name             string `json:"name"`
	HeadCommitSHA    string `json:"head_commit_sha"`
	IndexedCommitSHA string `json:"indexed_commit_sha,omitempty"`
	IndexState       string `json:"index_state"`
}

// ListRepos returns every repository this index has registered, via
// GetOrCreateRepository calls made by prior buildIndex requests.
func (h *RepoHandler) ListRepos(c *gin.Context) {
	repos, err := h.mysql.ListRepositories()
	if err != nil {
		h.logger.Error("failed to list repositories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list repositories", "details": err.Error()})
		return
	}

	out := make([]RepoSummary, 0, len(repos))
	for _, r := range repos {
		out = append(out, RepoSummary{ID: r.ID, Name: r.Name, RemoteURL: r.RemoteURL, DefaultBranch: r.DefaultBranch})
	}
	c.JSON(http.StatusOK, gin.H{"repositories": out})
}

// ListBranches returns every branch this index has tracked for the
// named repository along with its indexing lifecycle state.
func (h *RepoHandler) ListBranches(c *gin.Context) {
	repoName := c.Param("name")

	repos, err := h.mysql.ListRepositories()
	if err != nil {
		h.logger.Error("failed to list repositories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list repositories", "details": err.Error()})
		return
	}

	var repoID string
	found := false
	for _, r := range repos {
		if r.Name == repoName {
			repoID = r.ID
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not tracked", "repo_name": repoName})
		return
	}

	branches, err := h.mysql.ListBranches(repoID)
	if err != nil {
		h.logger.Error("failed to list branches", zap.String("repo_name", repoName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list branches", "details": err.Error()})
		return
	}

	out := make([]BranchSummary, 0, len(branches))
	for _, b := range branches {
		out = append(out, BranchSummary{
			Name: b.Name, HeadCommitSHA: b.HeadCommitSHA,
			IndexedCommitSHA: b.IndexedCommitSHA, IndexState: string(b.IndexState),
		})
	}
	c.JSON(http.StatusOK, gin.H{"repo_name": repoName, "branches": out})
}
