package documents

import "errors"

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrProjectNotFound = errors.New("project not found")
)
