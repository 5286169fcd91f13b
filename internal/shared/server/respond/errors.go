package respond

import (
	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/telemetry"
)

// Error codes used in the envelope.
const (
	CodeValidation      = "validation_error"
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeFileTooLarge    = "file_too_large"
	CodeNotRetryable    = "not_retryable"
	CodeJobInProgress   = "job_in_progress"
	CodeDocumentDeleted = "document_deleted"
	CodeInternal        = "internal_error"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// logged maps gin context keys set by handlers to log field names.
var logged = map[string]string{
	"requestId":  "request_id",
	"userId":     "user_id",
	"projectId":  "project_id",
	"documentId": "document_id",
	"jobId":      "job_id",
}

// Error aborts with the {error:{code,message,details}} envelope and logs an
// http.error line: warn for client errors, error for 5xx.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":  status,
		"code":    code,
		"message": message,
		"route":   c.FullPath(),
		"path":    c.Request.URL.Path,
		"method":  c.Request.Method,
	}
	for key, field := range logged {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}
