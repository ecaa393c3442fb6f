package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for identity store access
type Repository interface {
	// Create persists a new user
	Create(ctx context.Context, u *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Update persists user mutations
	Update(ctx context.Context, u *User) error

	// AdjustQueueSize applies a delta to the beeper's queue_size
	// counter; callers run it in the same transaction as the entry
	// mutation that justifies the delta
	AdjustQueueSize(ctx context.Context, id uuid.UUID, delta int) error

	// SetQueueSize overwrites the counter; used by reconciliation only
	SetQueueSize(ctx context.Context, id uuid.UUID, size int) error

	// ListBeepers returns all users currently beeping
	ListBeepers(ctx context.Context) ([]*User, error)
}
