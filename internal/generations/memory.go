package generations

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRepository struct {
	mu    sync.RWMutex
	trees map[string]*VideoGenerations
}

// NewMemoryRepository creates a new in-memory generations repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		trees: make(map[string]*VideoGenerations),
	}
}

// Save persists a generation tree to the in-memory storage.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, gens *VideoGenerations) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trees[gens.ProjectID] = gens.Clone()
	return nil
}

// FindByProjectID retrieves a generation tree by project ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByProjectID(_ context.Context, projectID string) (*VideoGenerations, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gens, ok := r.trees[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return gens.Clone(), nil
}

// List returns all generation trees in the repository.
// Returns clones to prevent external mutations.
func (r *MemoryRepository) List(_ context.Context) ([]*VideoGenerations, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*VideoGenerations, 0, len(r.trees))
	for _, gens := range r.trees {
		result = append(result, gens.Clone())
	}
	return result, nil
}

// Delete removes a generation tree from storage.
func (r *MemoryRepository) Delete(_ context.Context, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trees[projectID]; !ok {
		return ErrNotFound
	}
	delete(r.trees, projectID)
	return nil
}
