package entity

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a reminder task
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusSkip    Status = "skip"
	StatusSnoozed Status = "snoozed"
	StatusTimeout Status = "timeout"
)

// Statuses lists every status in report order
var Statuses = []Status{StatusDone, StatusSkip, StatusSnoozed, StatusTimeout, StatusPending}

var transitions = map[Status][]Status{
	StatusPending: {StatusDone, StatusSkip, StatusSnoozed, StatusTimeout},
	StatusSnoozed: {StatusDone, StatusSkip, StatusTimeout},
}

// IsTerminal returns true for done, skip and timeout
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusSkip || s == StatusTimeout
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDone, StatusSkip, StatusSnoozed, StatusTimeout:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SlotKey identifies a single scheduled reminder occurrence
type SlotKey struct {
	UserID string
	Date   string // YYYY-MM-DD in the configured timezone
	Time   string // HH:MM
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.Date, k.Time)
}

// Task represents one reminder sent to a user for a slot
type Task struct {
	ID     string
	UserID string
	Date   string
	Time   string
	SlotID string

	Status    Status
	CreatedAt time.Time
	TimeoutAt time.Time

	// Set only for done and skip
	ClickedAt *time.Time
	// Set once when the single snooze is used
	SnoozedAt *time.Time
}

// NewTask creates a pending task whose deadline is createdAt + window
func NewTask(id string, key SlotKey, slotID string, createdAt time.Time, window time.Duration) *Task {
	return &Task{
		ID:        id,
		UserID:    key.UserID,
		Date:      key.Date,
		Time:      key.Time,
		SlotID:    slotID,
		Status:    StatusPending,
		CreatedAt: createdAt,
		TimeoutAt: createdAt.Add(window),
	}
}

// Key returns the slot key of the task
func (t *Task) Key() SlotKey {
	return SlotKey{UserID: t.UserID, Date: t.Date, Time: t.Time}
}

// Expired reports whether a non-terminal task has reached its deadline at now
func (t *Task) Expired(now time.Time) bool {
	return !t.Status.IsTerminal() && !now.Before(t.TimeoutAt)
}

// Apply returns a copy of the task moved to status `to` at time `at`.
// The receiver is not modified.
func (t *Task) Apply(to Status, at time.Time, snooze time.Duration) (*Task, error) {
	if t.Status.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}
	if t.Status == StatusSnoozed && to == StatusSnoozed {
		return nil, ErrSnoozeLimit
	}
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidResponse, t.Status, to)
	}
	if to == StatusSnoozed && snooze <= 0 {
		return nil, fmt.Errorf("%w: snoozing is disabled", ErrSnoozeLimit)
	}

	next := *t
	next.Status = to

	switch to {
	case StatusDone, StatusSkip:
		clicked := at
		next.ClickedAt = &clicked
	case StatusSnoozed:
		snoozed := at
		next.SnoozedAt = &snoozed
		next.TimeoutAt = t.TimeoutAt.Add(snooze)
	}

	return &next, nil
}

// Response is a user's answer to a reminder
type Response string

const (
	ResponseDone    Response = "done"
	ResponseSkip    Response = "skip"
	ResponseSnoozed Response = "snoozed"
)

// ParseResponse maps a callback action to a Response
func ParseResponse(action string) (Response, error) {
	switch action {
	case "done":
		return ResponseDone, nil
	case "skip":
		return ResponseSkip, nil
	case "snooze", "snoozed", "snooze10":
		return ResponseSnoozed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidResponse, action)
}

// Status returns the status a response moves a task to
func (r Response) Status() Status {
	return Status(r)
}

// Valid reports whether r is one of done, skip or snoozed
func (r Response) Valid() bool {
	return r == ResponseDone || r == ResponseSkip || r == ResponseSnoozed
}
