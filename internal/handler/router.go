// Package handler implements the HTTP surface spec.md §6 names: a single
// Query endpoint plus the indexing trigger and health/readiness probes.
//
// Grounded directly on the teacher's internal/handler/router.go: the
// same gin.New()-plus-two-middleware setup, the same /api/v1 route
// group, and LoggerMiddleware/CustomRecoveryMiddleware kept verbatim —
// only the route table changed to match this domain's operations.
package handler

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// responseWriter wraps gin.ResponseWriter to capture the response body
// for debug logging.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func SetupRouter(queryHandler *QueryHandler, buildHandler *BuildHandler, healthHandler *HealthHandler, repoHandler *RepoHandler, debugHTTP bool, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(debugHTTP, logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", queryHandler.Query)
		v1.POST("/buildIndex", buildHandler.BuildIndex)
		v1.GET("/health", healthHandler.Health)
		v1.GET("/ready", healthHandler.Ready)
		v1.GET("/repos", repoHandler.ListRepos)
		v1.GET("/repos/:name/branches", repoHandler.ListBranches)
	}

	return router
}

func LoggerMiddleware(debugHTTP bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestBody []byte
		var responseBody *bytes.Buffer

		if debugHTTP {
			if c.Request.Body != nil {
				requestBody, _ = io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			}

			requestFields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			}
			if len(requestBody) > 0 && len(requestBody) <= 10000 {
				requestFields = append(requestFields, zap.String("request_body", string(requestBody)))
			} else if len(requestBody) > 10000 {
				requestFields = append(requestFields, zap.String("request_body", string(requestBody[:10000])+"... (truncated)"))
			}
			logger.Info("HTTP Request", requestFields...)

			responseBody = &bytes.Buffer{}
			writer := &responseWriter{ResponseWriter: c.Writer, body: responseBody}
			c.Writer = writer
		} else {
			logger.Info("HTTP Request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
		}

		c.Next()

		duration := time.Since(start)

		if debugHTTP {
			responseFields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("duration", duration),
			}
			if responseBody != nil && responseBody.Len() > 0 && responseBody.Len() <= 10000 {
				responseFields = append(responseFields, zap.String("response_body", responseBody.String()))
			} else if responseBody != nil && responseBody.Len() > 10000 {
				responseFields = append(responseFields, zap.String("response_body", responseBody.String()[:10000]+"... (truncated)"))
			}
			logger.Info("HTTP Response", responseFields...)
		} else {
			logger.Info("HTTP Response",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("duration", duration),
			)
		}
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
