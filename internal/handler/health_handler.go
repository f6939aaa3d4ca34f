package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/armchr/codeindex/internal/store"
)

// HealthHandler serves liveness and readiness, matching the teacher's
// plain "status: healthy" health endpoint, with readiness additionally
// pinging the store adapters the way component P's Health methods allow.
type HealthHandler struct {
	mysql  *store.MySQLStore
	qdrant *store.QdrantStore
}

func NewHealthHandler(mysql *store.MySQLStore, qdrant *store.QdrantStore) *HealthHandler {
	return &HealthHandler{mysql: mysql, qdrant: qdrant}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.mysql.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "mysql: " + err.Error()})
		return
	}
	if err := h.qdrant.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "qdrant: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
