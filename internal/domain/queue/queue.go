package queue

import (
	"time"

	"github.com/google/uuid"
)

// Progress represents the stage of a ride request
type Progress string

const (
	ProgressWaiting   Progress = "waiting"
	ProgressAccepted  Progress = "accepted"
	ProgressEnRoute   Progress = "en_route"
	ProgressArrived   Progress = "arrived"
	ProgressComplete  Progress = "complete"
	ProgressDenied    Progress = "denied"
	ProgressCancelled Progress = "cancelled"
)

// Command is a transition issued by the beeper against a queue entry
type Command string

const (
	CommandAccept   Command = "accept"
	CommandDeny     Command = "deny"
	CommandAdvance  Command = "advance"
	CommandComplete Command = "complete"
)

// Entry represents one outstanding or recently-active ride request.
// EnqueuedAt is set once at creation and is the sole ordering key;
// ties are broken by ID for determinism.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	BeeperID    uuid.UUID `json:"beeper_id"`
	RiderID     uuid.UUID `json:"rider_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	GroupSize   int       `json:"group_size"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	Accepted    bool      `json:"accepted"`
	Progress    Progress  `json:"progress"`
}

// IsValid validates the progress value
func (p Progress) IsValid() bool {
	switch p {
	case ProgressWaiting, ProgressAccepted, ProgressEnRoute, ProgressArrived,
		ProgressComplete, ProgressDenied, ProgressCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted
func (p Progress) IsTerminal() bool {
	switch p {
	case ProgressComplete, ProgressDenied, ProgressCancelled:
		return true
	}
	return false
}

// Next returns the stage an Advance moves to. Advancing from Arrived
// reaches Complete, the terminal stage.
func (p Progress) Next() (Progress, bool) {
	switch p {
	case ProgressAccepted:
		return ProgressEnRoute, true
	case ProgressEnRoute:
		return ProgressArrived, true
	case ProgressArrived:
		return ProgressComplete, true
	}
	return p, false
}

// IsValid validates the command value
func (c Command) IsValid() bool {
	switch c {
	case CommandAccept, CommandDeny, CommandAdvance, CommandComplete:
		return true
	}
	return false
}

// IsTerminal reports whether the entry can no longer transition
func (e *Entry) IsTerminal() bool {
	return e.Progress.IsTerminal()
}

// IsActive reports whether the entry still occupies a place in the queue.
// Cancelled entries linger as rows until the next queue read sweeps them,
// but they no longer count toward ordering or positions.
func (e *Entry) IsActive() bool {
	return !e.Progress.IsTerminal()
}

// Before reports whether e is ordered ahead of other in the same
// beeper's queue: earlier EnqueuedAt first, entry ID as tie-break.
func (e *Entry) Before(other *Entry) bool {
	if e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.ID.String() < other.ID.String()
	}
	return e.EnqueuedAt.Before(other.EnqueuedAt)
}

// CanAccept checks if the beeper can accept this entry
func (e *Entry) CanAccept() bool {
	return e.Progress == ProgressWaiting && !e.Accepted
}

// CanDeny checks if the beeper can deny this entry
func (e *Entry) CanDeny() bool {
	return e.Progress == ProgressWaiting && !e.Accepted
}

// CanAdvance checks if the entry can move to its next stage
func (e *Entry) CanAdvance() bool {
	_, ok := e.Progress.Next()
	return e.Accepted && ok
}
