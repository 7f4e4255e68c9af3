package entity

import "errors"

var (
	// ErrDuplicateSlot is returned when a task already exists for (user_id, date, time)
	ErrDuplicateSlot = errors.New("task already exists for slot")

	// ErrTaskNotFound is returned for an unknown task id
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyTerminal is returned when a task is already done, skipped or timed out
	ErrAlreadyTerminal = errors.New("task already in terminal state")

	// ErrWindowExpired is returned when a response arrives at or after timeout_at
	ErrWindowExpired = errors.New("response window expired")

	// ErrSnoozeLimit is returned when a snoozed task is snoozed again
	ErrSnoozeLimit = errors.New("task already snoozed")

	// ErrInvalidResponse is returned for a response other than done, skip or snoozed
	ErrInvalidResponse = errors.New("invalid response")

	// ErrConflict is returned by a store when a compare-and-swap loses to a concurrent update
	ErrConflict = errors.New("task was modified concurrently")
)
