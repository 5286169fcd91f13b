package ingestion

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// Handler exposes job status and retry over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches ingestion routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ingestion/jobs", h.list)
	rg.GET("/ingestion/jobs/:id", h.get)
	rg.POST("/ingestion/jobs/:id/retry", h.retry)
	rg.GET("/documents/:id/jobs", h.listByDocument)
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := respond.PageParams(c, 20, 100)
	projectID, ok := respond.QueryID(c, "projectId")
	if !ok {
		return
	}
	filter := ListFilter{
		Status:    Status(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		ProjectID: projectID,
		Limit:     limit,
		Offset:    offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unknown status", nil)
		return
	}

	jobs, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list jobs", nil)
		return
	}
	respond.OK(c, respond.NewPage(toResponses(jobs), limit, offset))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "job not found")
	if !ok {
		return
	}
	c.Set(middleware.JobIDKey, id)

	job, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to fetch job")
		return
	}
	respond.OK(c, toResponse(job))
}

func (h *Handler) retry(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "job not found")
	if !ok {
		return
	}
	c.Set(middleware.JobIDKey, id)

	job, err := h.Svc.Retry(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to retry job")
		return
	}
	c.Set(middleware.DocumentIDKey, job.DocumentID)
	respond.Accepted(c, toResponse(job))
}

func (h *Handler) listByDocument(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "document not found")
	if !ok {
		return
	}
	c.Set(middleware.DocumentIDKey, id)

	jobs, err := h.Svc.ListByDocument(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list jobs", nil)
		return
	}
	respond.OK(c, gin.H{"items": toResponses(jobs)})
}

func (h *Handler) writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "job not found", nil)
	case errors.Is(err, ErrNotRetryable):
		respond.Error(c, http.StatusConflict, respond.CodeNotRetryable, err.Error(), nil)
	case errors.Is(err, ErrJobInProgress):
		respond.Error(c, http.StatusConflict, respond.CodeJobInProgress, "document already has an active job", nil)
	case errors.Is(err, ErrDocumentDeleted):
		respond.Error(c, http.StatusConflict, respond.CodeDocumentDeleted, "document was deleted", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, message, nil)
	}
}
