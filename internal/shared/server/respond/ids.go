package respond

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PathID reads a UUID path parameter in canonical form. A malformed id cannot
// name a stored row, so it is answered with 404 and notFound as the message.
func PathID(c *gin.Context, name, notFound string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		Error(c, http.StatusNotFound, CodeNotFound, notFound, nil)
		return "", false
	}
	return id.String(), true
}

// QueryID reads an optional UUID query parameter. An empty value is returned
// as "", a malformed one is answered with 400.
func QueryID(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return "", true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		Error(c, http.StatusBadRequest, CodeValidation, name+" must be a UUID", nil)
		return "", false
	}
	return id.String(), true
}
