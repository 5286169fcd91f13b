package categorize

import "errors"

var (
	// ErrInvalidCategoryResponse means the service answered with something outside the closed set.
	ErrInvalidCategoryResponse = errors.New("invalid category response")
	// ErrCategorizerUnavailable covers timeouts, transport errors and an open circuit.
	ErrCategorizerUnavailable = errors.New("categorizer unavailable")
)
