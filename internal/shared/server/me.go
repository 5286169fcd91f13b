package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches /me, which echoes the identity uploads are
// attributed to when uploaded_by is omitted.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		resp := gin.H{"userId": userID, "authMode": "token"}
		if middleware.IsDevUser(c) {
			resp["authMode"] = "dev-header"
		}
		if email := middleware.UserEmailFromContext(c); email != "" {
			resp["email"] = email
		}
		respond.OK(c, resp)
	})
}
