package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created writes a 201 response for a newly stored resource.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// Accepted writes a 202 response for work that continues in the background,
// such as an upload whose ingestion job has only been queued.
func Accepted(c *gin.Context, payload any) {
	JSON(c, http.StatusAccepted, payload)
}

// Page is one window of a list. Items is never null in the JSON output.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage builds a Page, replacing a nil slice with an empty one.
func NewPage[T any](items []T, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Limit: limit, Offset: offset}
}
