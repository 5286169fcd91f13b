package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/auth"
	"docvault-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	devUserKey   = "devUser"
)

var publicPaths = map[string]struct{}{
	"/api/v1/health":  {},
	"/api/v1/metrics": {},
}

// Auth validates bearer JWTs and stores identity in context.
// In dev-like environments an X-User-Id header is accepted instead of a token.
func Auth(env string, secret []byte) gin.HandlerFunc {
	devLike := env == "dev" || env == "local"
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := publicPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			claims, err := auth.VerifyJWT(secret, token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			c.Set(userIDKey, claims.Subject)
			if claims.Email != "" {
				c.Set(userEmailKey, claims.Email)
			}
			c.Set(devUserKey, false)
			c.Next()
			return
		}

		if devLike {
			if devUser := strings.TrimSpace(c.GetHeader("X-User-Id")); devUser != "" {
				c.Set(userIDKey, devUser)
				c.Set(devUserKey, true)
				c.Next()
				return
			}
		}

		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Missing identity", nil)
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}

// IsDevUser reports whether the identity came from the dev X-User-Id header.
func IsDevUser(c *gin.Context) bool {
	if c == nil {
		return false
	}
	return c.GetBool(devUserKey)
}
