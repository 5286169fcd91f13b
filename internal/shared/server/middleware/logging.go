package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	ProjectIDKey  = "projectId"
	DocumentIDKey = "documentId"
	JobIDKey      = "jobId"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		addTaggedIDs(c, fields)
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		metrics.ObserveRequest(c.FullPath(), c.Request.Method, c.Writer.Status())
		telemetry.Info("request.complete", fields)
	}
}

// addTaggedIDs copies the resource ids a handler tagged into log fields.
func addTaggedIDs(c *gin.Context, fields map[string]any) {
	for key, field := range map[string]string{
		ProjectIDKey:  "project_id",
		DocumentIDKey: "document_id",
		JobIDKey:      "job_id",
	} {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
}
