package generations

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a generation tree cannot be found by
// project ID.
var ErrNotFound = errors.New("video generations not found")

// Repository defines the interface for generation tree persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists a generation tree keyed by its project ID.
	// If a tree already exists for the project, it is replaced.
	Save(ctx context.Context, gens *VideoGenerations) error

	// FindByProjectID retrieves a generation tree by project ID.
	// Returns ErrNotFound if no tree exists for the project.
	FindByProjectID(ctx context.Context, projectID string) (*VideoGenerations, error)

	// List returns all stored generation trees.
	List(ctx context.Context) ([]*VideoGenerations, error)

	// Delete removes a generation tree.
	// Returns ErrNotFound if no tree exists for the project.
	Delete(ctx context.Context, projectID string) error
}
