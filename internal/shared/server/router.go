package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/projects"
	"docvault-backend/internal/services/health"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// RouterDeps is everything the HTTP surface needs.
type RouterDeps struct {
	Config           config.Config
	JWTSecret        []byte
	Health           *health.Service
	ProjectHandler   *projects.Handler
	DocumentHandler  *documents.Handler
	IngestionHandler *ingestion.Handler
}

// Rate limit groups.
const (
	groupUpload = "UPLOAD"
	groupRetry  = "RETRY"
	groupRead   = "DEFAULT"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env, deps.JWTSecret),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				groupUpload: {Rate: 2, Burst: 10},
				groupRetry:  {Rate: 1, Burst: 5},
				groupRead:   {Rate: 20, Burst: 40},
			},
			DefaultGroup: groupRead,
			GroupFor:     rateLimitGroup,
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)

	if deps.ProjectHandler != nil {
		deps.ProjectHandler.RegisterRoutes(api)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.IngestionHandler != nil {
		deps.IngestionHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return groupRead
	}
	switch c.FullPath() {
	case "/api/v1/projects/:id/documents":
		return groupUpload
	case "/api/v1/ingestion/jobs/:id/retry":
		return groupRetry
	}
	return groupRead
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
