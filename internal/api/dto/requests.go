package dto

import (
	"time"

	"github.com/google/uuid"
)

// RequestRideRequest represents a rider asking a beeper for a ride
type RequestRideRequest struct {
	BeeperID    string `json:"beeper_id" binding:"required,uuid"`
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	GroupSize   int    `json:"group_size" binding:"required,min=1"`
}

// ApplyCommandRequest represents a beeper driving an entry forward
type ApplyCommandRequest struct {
	Command string `json:"command" binding:"required,oneof=accept deny advance complete"`
}

// UpdateSettingsRequest represents a beeper toggling availability.
// IsBeeping is a pointer so "false" survives binding.
type UpdateSettingsRequest struct {
	IsBeeping *bool `json:"is_beeping" binding:"required"`
	Capacity  int   `json:"capacity" binding:"min=0"`
}

// EntryResponse is a queue entry with its derived position
type EntryResponse struct {
	ID          uuid.UUID `json:"id"`
	BeeperID    uuid.UUID `json:"beeper_id"`
	RiderID     uuid.UUID `json:"rider_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	GroupSize   int       `json:"group_size"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	Accepted    bool      `json:"accepted"`
	Progress    string    `json:"progress"`
	Position    int       `json:"position"`
}

// QueueResponse is a beeper's live queue in arrival order
type QueueResponse struct {
	BeeperID string          `json:"beeper_id"`
	Entries  []EntryResponse `json:"entries"`
}

// RecordResponse is one historical ride
type RecordResponse struct {
	ID          uuid.UUID `json:"id"`
	BeeperID    uuid.UUID `json:"beeper_id"`
	RiderID     uuid.UUID `json:"rider_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	GroupSize   int       `json:"group_size"`
	Outcome     string    `json:"outcome"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ErrorResponse is the error envelope
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
