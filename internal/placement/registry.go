package placement

import (
	"context"
	"sync"
)

// KeyRegistry records which document owns each storage key.
type KeyRegistry interface {
	// Claim assigns key to documentID unless another document already holds it.
	// It returns the owner after the call, which is documentID on success.
	Claim(ctx context.Context, key, documentID string) (string, error)
	// Release drops the claim if documentID still holds it.
	Release(ctx context.Context, key, documentID string) error
}

// MemoryRegistry is an in-process KeyRegistry.
type MemoryRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{owners: make(map[string]string)}
}

func (r *MemoryRegistry) Claim(_ context.Context, key, documentID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owners[key]; ok {
		return owner, nil
	}
	r.owners[key] = documentID
	return documentID, nil
}

func (r *MemoryRegistry) Release(_ context.Context, key, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[key] == documentID {
		delete(r.owners, key)
	}
	return nil
}
