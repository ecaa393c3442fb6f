package queue

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for queue entry data access
type Repository interface {
	// Create persists a new entry
	Create(ctx context.Context, entry *Entry) error

	// GetByID retrieves an entry by ID, locking the row for the
	// duration of the surrounding transaction where the store
	// supports it
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// GetActiveByRider retrieves the rider's non-terminal entry, if any
	GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*Entry, error)

	// ListByBeeper returns all of a beeper's entries ordered by
	// (enqueued_at, id) ascending, including cancelled ones
	ListByBeeper(ctx context.Context, beeperID uuid.UUID) ([]*Entry, error)

	// Update persists entry mutations
	Update(ctx context.Context, entry *Entry) error

	// Delete removes an entry
	Delete(ctx context.Context, id uuid.UUID) error

	// CountAhead returns the number of non-cancelled entries for the
	// same beeper ordered before the given entry
	CountAhead(ctx context.Context, entry *Entry) (int, error)

	// CountAcceptedActive returns the number of accepted non-terminal
	// entries for a beeper (the value queue_size must agree with)
	CountAcceptedActive(ctx context.Context, beeperID uuid.UUID) (int, error)
}
