package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.Configure("info", false, &buf)
	t.Cleanup(func() { telemetry.Configure("info", false, nil) })

	router := gin.New()
	router.Use(RequestID(), Auth("dev", []byte("secret")), Logging())
	router.GET("/test", func(c *gin.Context) {
		c.Set(DocumentIDKey, "doc-1")
		c.Set(JobIDKey, "job-1")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "user_id", "document_id", "job_id", "duration_ms", "status"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["user_id"] != "user-1" {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["document_id"] != "doc-1" {
		t.Fatalf("unexpected document_id: %v", payload["document_id"])
	}
	if payload["job_id"] != "job-1" {
		t.Fatalf("unexpected job_id: %v", payload["job_id"])
	}
	if payload["message"] != "request.complete" {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
}
