package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the beeper-relevant projection of an account held by the
// identity store. QueueSize is a derived counter: it must always equal
// the number of the beeper's accepted, non-terminal queue entries.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsBeeping bool      `json:"is_beeping"`
	QueueSize int       `json:"queue_size"`
	Capacity  int       `json:"capacity"`
	PushToken string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanAdmit reports whether the beeper is taking new riders for a
// group of the given size
func (u *User) CanAdmit(groupSize int) error {
	if !u.IsBeeping {
		return ErrBeeperUnavailable
	}
	if u.Capacity > 0 && groupSize > u.Capacity {
		return ErrGroupTooLarge
	}
	return nil
}
