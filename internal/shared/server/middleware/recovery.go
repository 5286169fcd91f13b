package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/server/respond"
	"docvault-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. The log line carries
// the project, document and job ids the handler had tagged before panicking.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.IncPanic()
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"user_id":    UserIDFromContext(c),
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
			}
			addTaggedIDs(c, fields)
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "unexpected server error", nil)
		}()
		c.Next()
	}
}
