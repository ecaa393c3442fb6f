package queue

import "errors"

var (
	ErrEntryNotFound      = errors.New("queue entry not found")
	ErrRiderAlreadyQueued = errors.New("rider already has an active entry")
	ErrOutOfOrder         = errors.New("an earlier entry must be resolved first")
	ErrAlreadyTerminal    = errors.New("entry is already in a terminal state")
	ErrInvalidCommand     = errors.New("invalid queue command")
	ErrInvalidGroupSize   = errors.New("group size must be positive")
)
