package run

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for run persistence operations.
type Store interface {
	// Create creates a new run in the store.
	Create(ctx context.Context, r *Run) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// Update updates a run with the given setters.
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error

	// List retrieves runs, newest first.
	List(ctx context.Context, limit, offset int) ([]*Run, error)

	// Count returns the total number of runs.
	Count(ctx context.Context) (int, error)

	// Start marks a run as started.
	Start(ctx context.Context, id uuid.UUID) error

	// Complete marks a run as finished with a final status.
	Complete(ctx context.Context, id uuid.UUID, status Status, message string) error

	// AddResults stores comparison results for a run.
	AddResults(ctx context.Context, id uuid.UUID, results []*Result) error

	// ListResults returns the results of a run ordered by label and size.
	ListResults(ctx context.Context, id uuid.UUID) ([]*Result, error)
}

// UpdateSetter is a function that updates a run field.
type UpdateSetter func(*Run) error
