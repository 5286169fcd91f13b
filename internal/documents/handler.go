package documents

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

const maxUploadSize = 25 << 20 // 25MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:id/documents", h.upload)
	rg.GET("/projects/:id/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download", h.download)
	rg.GET("/documents/:id/chunks", h.chunks)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	projectID, ok := respond.PathID(c, "id", "project not found")
	if !ok {
		return
	}
	c.Set(middleware.ProjectIDKey, projectID)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeFileTooLarge, "file exceeds upload limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unable to read file", nil)
		return
	}
	defer file.Close()

	uploadedBy := strings.TrimSpace(c.PostForm("uploaded_by"))
	if uploadedBy == "" {
		uploadedBy = middleware.UserIDFromContext(c)
	}

	result, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		ProjectID:   projectID,
		UploadedBy:  uploadedBy,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
		case errors.Is(err, ErrProjectNotFound):
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "project not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to upload document", nil)
		}
		return
	}

	c.Set(middleware.DocumentIDKey, result.Document.ID)
	c.Set(middleware.JobIDKey, result.JobID)
	respond.Accepted(c, UploadResponse{
		DocumentID: result.Document.ID,
		JobID:      result.JobID,
		Status:     result.Status,
	})
}

func (h *Handler) list(c *gin.Context) {
	projectID, ok := respond.PathID(c, "id", "project not found")
	if !ok {
		return
	}
	c.Set(middleware.ProjectIDKey, projectID)
	limit, offset := respond.PageParams(c, 20, 100)
	filter := ListFilter{Limit: limit, Offset: offset}

	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		if strings.EqualFold(raw, "uncategorized") {
			filter.Uncategorized = true
		} else {
			category, err := categorize.ParseCategory(raw)
			if err != nil {
				respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unknown category", gin.H{"allowed": categorize.All})
				return
			}
			filter.Category = category
		}
	}

	docs, err := h.Svc.List(c.Request.Context(), projectID, filter)
	if err != nil {
		switch {
		case errors.Is(err, ErrProjectNotFound):
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "project not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list documents", nil)
		}
		return
	}

	items := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toResponse(doc, nil))
	}
	respond.OK(c, respond.NewPage(items, limit, offset))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "document not found")
	if !ok {
		return
	}
	c.Set(middleware.DocumentIDKey, id)

	doc, job, err := h.Svc.Detail(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, err, "failed to fetch document")
		return
	}
	respond.OK(c, toResponse(doc, job))
}

func (h *Handler) download(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "document not found")
	if !ok {
		return
	}
	c.Set(middleware.DocumentIDKey, id)

	dl, err := h.Svc.Download(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, err, "failed to download document")
		return
	}
	if dl.URL != "" {
		respond.OK(c, gin.H{"url": dl.URL, "expiresIn": int(DownloadURLTTL.Seconds())})
		return
	}
	defer dl.Body.Close()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(dl.FileName, `"`, "")+`"`)
	c.Header("Content-Type", contentType)
	if dl.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(dl.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, dl.Body)
}

func (h *Handler) chunks(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "document not found")
	if !ok {
		return
	}
	c.Set(middleware.DocumentIDKey, id)

	chunks, err := h.Svc.ListChunks(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, err, "failed to list chunks")
		return
	}
	respond.OK(c, toChunksResponse(id, chunks))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "document not found")
	if !ok {
		return
	}
	c.Set(middleware.DocumentIDKey, id)

	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		h.writeLookupError(c, err, "failed to delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) writeLookupError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "document not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, message, nil)
	}
}
