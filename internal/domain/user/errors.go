package user

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBeeperUnavailable = errors.New("beeper is not beeping")
	ErrGroupTooLarge     = errors.New("group size exceeds beeper capacity")
	ErrQueueNotEmpty     = errors.New("queue is not empty")
)
