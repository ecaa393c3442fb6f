package beep

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outcome records how a ride ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeDenied    Outcome = "denied"
	OutcomeCancelled Outcome = "cancelled"
)

// Record is an immutable snapshot of a queue entry taken at its
// terminal transition. Records are write-once: nothing mutates them
// after creation.
type Record struct {
	ID          uuid.UUID `json:"id"`
	BeeperID    uuid.UUID `json:"beeper_id"`
	RiderID     uuid.UUID `json:"rider_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	GroupSize   int       `json:"group_size"`
	Outcome     Outcome   `json:"outcome"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// IsValid validates the outcome value
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeCompleted, OutcomeDenied, OutcomeCancelled:
		return true
	}
	return false
}

var (
	ErrRecordNotFound = errors.New("ride record not found")
	ErrInvalidOutcome = errors.New("invalid ride outcome")
)
