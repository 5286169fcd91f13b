package respond

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageParams reads limit and offset query params. Invalid or non-positive
// limits fall back to def; limits above max are clamped.
func PageParams(c *gin.Context, def, max int) (int, int) {
	limit := def
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
