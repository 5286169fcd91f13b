package projects

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches project routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects", h.create)
	rg.GET("/projects", h.list)
	rg.GET("/projects/:id", h.get)
}

type createRequest struct {
	Name string `json:"name"`
}

// ProjectResponse is the outward-facing representation of a project.
type ProjectResponse struct {
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func toResponse(p Project) ProjectResponse {
	return ProjectResponse{ProjectID: p.ID, Name: p.Name, CreatedBy: p.CreatedBy, CreatedAt: p.CreatedAt}
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}
	p, err := h.Svc.Create(c.Request.Context(), req.Name, middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to create project", nil)
		}
		return
	}
	c.Set(middleware.ProjectIDKey, p.ID)
	respond.Created(c, toResponse(p))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := respond.PathID(c, "id", "project not found")
	if !ok {
		return
	}
	c.Set(middleware.ProjectIDKey, id)
	p, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "project not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch project", nil)
		}
		return
	}
	respond.OK(c, toResponse(p))
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := respond.PageParams(c, 20, 100)
	items, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list projects", nil)
		return
	}
	resp := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		resp = append(resp, toResponse(p))
	}
	respond.OK(c, respond.NewPage(resp, limit, offset))
}
