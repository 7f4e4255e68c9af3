package repository

import (
	"context"
	"time"

	"reminder-service/internal/domain/entity"
)

// TaskRepository defines the interface for task persistence
type TaskRepository interface {
	// Create stores a new task together with its creation event.
	// Returns entity.ErrDuplicateSlot if a task exists for the same (user_id, date, time).
	Create(ctx context.Context, task *entity.Task, event *entity.Event) error

	// GetByID retrieves a task by ID. Returns entity.ErrTaskNotFound if it does not exist.
	GetByID(ctx context.Context, taskID string) (*entity.Task, error)

	// UpdateStatus replaces the task's mutable fields only if its stored status still equals
	// expected, and appends the event in the same transaction.
	// Returns entity.ErrConflict if the stored status differs.
	UpdateStatus(ctx context.Context, task *entity.Task, expected entity.Status, event *entity.Event) error

	// ListExpired retrieves pending and snoozed tasks with timeout_at <= now, oldest deadline first
	ListExpired(ctx context.Context, now time.Time) ([]*entity.Task, error)

	// ListByUser retrieves a user's tasks with weekStart <= date <= weekEnd (YYYY-MM-DD),
	// ordered by date and time
	ListByUser(ctx context.Context, userID, weekStart, weekEnd string) ([]*entity.Task, error)
}

// EventRepository defines read access to the append-only event log
type EventRepository interface {
	// ListEventsByTask retrieves all events of a task in insertion order
	ListEventsByTask(ctx context.Context, taskID string) ([]*entity.Event, error)

	// ListEventsByUser retrieves a user's events with from <= created_at < to
	ListEventsByUser(ctx context.Context, userID string, from, to time.Time) ([]*entity.Event, error)
}
