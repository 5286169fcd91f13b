package embedding

import "errors"

// ErrEmbeddingUnavailable covers timeouts, transport and service errors, open
// circuits, and responses that are empty or have the wrong dimension.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
