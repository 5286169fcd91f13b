package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestRouter(t *testing.T, ingest *fakeIngestor) (*gin.Engine, *Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, projectID := newTestService(t, ingest)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userId", "user-1") })
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc, projectID
}

func multipartUpload(t *testing.T, field, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestHandlerUploadAccepted(t *testing.T) {
	ingest := &fakeIngestor{}
	r, _, projectID := newTestRouter(t, ingest)

	body, contentType := multipartUpload(t, "file", "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+projectID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var got UploadResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DocumentID == "" || got.JobID != "job-"+got.DocumentID || got.Status != "pending" {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestHandlerUploadRequiresFile(t *testing.T) {
	r, _, projectID := newTestRouter(t, &fakeIngestor{})

	body, contentType := multipartUpload(t, "attachment", "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+projectID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHandlerUploadUnknownProject(t *testing.T) {
	r, _, _ := newTestRouter(t, &fakeIngestor{})

	body, contentType := multipartUpload(t, "file", "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+uuid.NewString()+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerListRejectsUnknownCategory(t *testing.T) {
	r, _, projectID := newTestRouter(t, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+projectID+"/documents?category=Marketing", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Finance") {
		t.Fatalf("expected allowed categories in body: %s", resp.Body.String())
	}
}

func TestHandlerGetShowsPendingDocument(t *testing.T) {
	ingest := &fakeIngestor{latest: map[string]JobSummary{}}
	r, svc, projectID := newTestRouter(t, ingest)

	res, err := svc.Upload(context.Background(), UploadInput{
		ProjectID:  projectID,
		UploadedBy: "user-1",
		FileName:   "notes.txt",
		Body:       strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	ingest.latest[res.Document.ID] = JobSummary{ID: res.JobID, Status: "embedding", Attempt: 1}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+res.Document.ID, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got DocumentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Category != nil || got.StorageKey != nil {
		t.Fatalf("expected unset category and key, got %+v", got)
	}
	if got.LatestJob == nil || got.LatestJob.Status != "embedding" {
		t.Fatalf("unexpected latest job %+v", got.LatestJob)
	}
}

func TestHandlerDeleteMissing(t *testing.T) {
	r, _, _ := newTestRouter(t, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerMalformedIDs(t *testing.T) {
	r, _, _ := newTestRouter(t, &fakeIngestor{})

	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/documents/abc"},
		{http.MethodGet, "/api/v1/documents/abc/download"},
		{http.MethodGet, "/api/v1/documents/abc/chunks"},
		{http.MethodDelete, "/api/v1/documents/abc"},
		{http.MethodGet, "/api/v1/projects/abc/documents"},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, resp.Code)
		}
	}

	body, contentType := multipartUpload(t, "file", "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/abc/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("upload to malformed project: expected 404, got %d", resp.Code)
	}
}

func TestHandlerListChunks(t *testing.T) {
	r, svc, projectID := newTestRouter(t, &fakeIngestor{})

	res, err := svc.Upload(context.Background(), UploadInput{
		ProjectID:  projectID,
		UploadedBy: "user-1",
		FileName:   "notes.txt",
		Body:       strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+res.Document.ID+"/chunks", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got ChunksResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ChunkCount != 0 || got.Chunks == nil {
		t.Fatalf("expected an empty chunk list before ingestion, got %+v", got)
	}

	repo := svc.Chunks.(*MemoryRepo)
	err = repo.ReplaceChunks(context.Background(), res.Document.ID, []Chunk{
		{Index: 1, Content: "second", WordCount: 1, Embedding: []float32{0, 1}},
		{Index: 0, Content: "first", WordCount: 1, Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+res.Document.ID+"/chunks", nil))
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ChunkCount != 2 || got.Chunks[0].Content != "first" || got.Chunks[1].EmbeddingDimension != 2 {
		t.Fatalf("unexpected chunks %+v", got)
	}

	if err := svc.Delete(context.Background(), res.Document.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+res.Document.ID+"/chunks", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted document, got %d", resp.Code)
	}
}
