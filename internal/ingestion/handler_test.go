package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault-backend/internal/categorize"
)

func newTestRouter(p *testPipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(p.svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHandlerGetJob(t *testing.T) {
	p := newTestPipeline(t)
	router := newTestRouter(p)
	doc, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")

	resp := serve(router, http.MethodGet, "/api/v1/ingestion/jobs/"+jobID)
	require.Equal(t, http.StatusOK, resp.Code)

	var body JobResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, jobID, body.JobID)
	assert.Equal(t, doc.ID, body.DocumentID)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, 1, body.Attempt)

	resp = serve(router, http.MethodGet, "/api/v1/ingestion/jobs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandlerMalformedIDs(t *testing.T) {
	p := newTestPipeline(t)
	router := newTestRouter(p)

	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/api/v1/ingestion/jobs/abc", http.StatusNotFound},
		{http.MethodPost, "/api/v1/ingestion/jobs/abc/retry", http.StatusNotFound},
		{http.MethodGet, "/api/v1/documents/abc/jobs", http.StatusNotFound},
		{http.MethodGet, "/api/v1/ingestion/jobs?projectId=abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := serve(router, tc.method, tc.path)
		assert.Equal(t, tc.status, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHandlerRetry(t *testing.T) {
	p := newTestPipeline(t)
	router := newTestRouter(p)
	p.categorizer.CategorizeFunc = func(context.Context, categorize.Input) (categorize.Category, error) {
		return "", categorize.ErrCategorizerUnavailable
	}
	_, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")

	resp := serve(router, http.MethodPost, "/api/v1/ingestion/jobs/"+jobID+"/retry")
	assert.Equal(t, http.StatusConflict, resp.Code, "pending job is not retryable")

	p.run(t, jobID)
	resp = serve(router, http.MethodPost, "/api/v1/ingestion/jobs/"+jobID+"/retry")
	require.Equal(t, http.StatusAccepted, resp.Code)

	var body JobResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Attempt)
	assert.Equal(t, jobID, body.RetryOf)
	assert.Equal(t, "pending", body.Status)

	resp = serve(router, http.MethodPost, "/api/v1/ingestion/jobs/"+jobID+"/retry")
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = serve(router, http.MethodPost, "/api/v1/ingestion/jobs/"+uuid.NewString()+"/retry")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandlerListJobs(t *testing.T) {
	p := newTestPipeline(t)
	router := newTestRouter(p)
	projectA, projectB := uuid.NewString(), uuid.NewString()
	p.upload(t, projectA, "a.txt", "text/plain", "a")
	p.upload(t, projectB, "b.txt", "text/plain", "b")

	resp := serve(router, http.MethodGet, "/api/v1/ingestion/jobs?status=pending&projectId="+projectA)
	require.Equal(t, http.StatusOK, resp.Code)
	var page struct {
		Items []JobResponse `json:"items"`
		Limit int           `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, projectA, page.Items[0].ProjectID)
	assert.Equal(t, 20, page.Limit)

	resp = serve(router, http.MethodGet, "/api/v1/ingestion/jobs?status=exploded")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandlerListDocumentJobs(t *testing.T) {
	p := newTestPipeline(t)
	router := newTestRouter(p)
	doc, jobID := p.upload(t, "42", "a.txt", "text/plain", "a")

	resp := serve(router, http.MethodGet, "/api/v1/documents/"+doc.ID+"/jobs")
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Items []JobResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, jobID, body.Items[0].JobID)

	resp = serve(router, http.MethodGet, "/api/v1/documents/"+uuid.NewString()+"/jobs")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
