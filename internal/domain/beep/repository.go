package beep

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for ride history access
type Repository interface {
	// Create persists a new record
	Create(ctx context.Context, r *Record) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// List returns records newest-first, paginated
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// ListByBeeper returns a beeper's records newest-first, paginated
	ListByBeeper(ctx context.Context, beeperID uuid.UUID, limit, offset int) ([]*Record, error)
}
