package entity

import "time"

// EventType represents the kind of lifecycle change recorded in the event log
type EventType string

const (
	EventCreated EventType = "created"
	EventDone    EventType = "done"
	EventSkip    EventType = "skip"
	EventSnoozed EventType = "snoozed"
	EventTimeout EventType = "timeout"
)

// Event is an append-only audit record of a task status change
type Event struct {
	ID         int64
	TaskID     string
	UserID     string
	Type       EventType
	FromStatus Status // empty for EventCreated
	CreatedAt  time.Time
	Meta       map[string]string
}

// NewCreatedEvent records the creation of a task
func NewCreatedEvent(task *Task) *Event {
	return &Event{
		TaskID:    task.ID,
		UserID:    task.UserID,
		Type:      EventCreated,
		CreatedAt: task.CreatedAt,
		Meta: map[string]string{
			"slot_id":    task.SlotID,
			"timeout_at": task.TimeoutAt.Format(time.RFC3339),
		},
	}
}

// NewTransitionEvent records the move of a task from one status to its current one
func NewTransitionEvent(from Status, task *Task, at time.Time) *Event {
	event := &Event{
		TaskID:     task.ID,
		UserID:     task.UserID,
		Type:       EventType(task.Status),
		FromStatus: from,
		CreatedAt:  at,
		Meta:       map[string]string{},
	}
	if task.Status == StatusSnoozed {
		event.Meta["timeout_at"] = task.TimeoutAt.Format(time.RFC3339)
	}
	return event
}
