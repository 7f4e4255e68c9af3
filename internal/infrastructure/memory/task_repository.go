package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"reminder-service/internal/domain/entity"
)

// TaskRepository keeps tasks and events in process memory.
// It implements both repository.TaskRepository and repository.EventRepository.
type TaskRepository struct {
	mu     sync.RWMutex
	tasks  map[string]*entity.Task
	slots  map[entity.SlotKey]string
	events []*entity.Event
}

// NewTaskRepository creates an empty in-memory repository
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string]*entity.Task),
		slots: make(map[entity.SlotKey]string),
	}
}

func (r *TaskRepository) Create(_ context.Context, task *entity.Task, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[task.Key()]; exists {
		return fmt.Errorf("%w: %s", entity.ErrDuplicateSlot, task.Key())
	}
	if _, exists := r.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	r.tasks[task.ID] = cloneTask(task)
	r.slots[task.Key()] = task.ID
	r.appendEvent(event)
	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, taskID string) (*entity.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrTaskNotFound, taskID)
	}
	return cloneTask(task), nil
}

func (r *TaskRepository) UpdateStatus(_ context.Context, task *entity.Task, expected entity.Status, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[task.ID]
	if !ok {
		return fmt.Errorf("%w: %s", entity.ErrTaskNotFound, task.ID)
	}
	if stored.Status != expected {
		return entity.ErrConflict
	}

	stored.Status = task.Status
	stored.TimeoutAt = task.TimeoutAt
	stored.ClickedAt = cloneTime(task.ClickedAt)
	stored.SnoozedAt = cloneTime(task.SnoozedAt)
	r.appendEvent(event)
	return nil
}

func (r *TaskRepository) ListExpired(_ context.Context, now time.Time) ([]*entity.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*entity.Task
	for _, task := range r.tasks {
		if task.Expired(now) {
			expired = append(expired, cloneTask(task))
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].TimeoutAt.Before(expired[j].TimeoutAt)
	})
	return expired, nil
}

func (r *TaskRepository) ListByUser(_ context.Context, userID, weekStart, weekEnd string) ([]*entity.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []*entity.Task
	for _, task := range r.tasks {
		if task.UserID == userID && task.Date >= weekStart && task.Date <= weekEnd {
			tasks = append(tasks, cloneTask(task))
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Date != tasks[j].Date {
			return tasks[i].Date < tasks[j].Date
		}
		return tasks[i].Time < tasks[j].Time
	})
	return tasks, nil
}

func (r *TaskRepository) ListEventsByTask(_ context.Context, taskID string) ([]*entity.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []*entity.Event
	for _, event := range r.events {
		if event.TaskID == taskID {
			events = append(events, cloneEvent(event))
		}
	}
	return events, nil
}

func (r *TaskRepository) ListEventsByUser(_ context.Context, userID string, from, to time.Time) ([]*entity.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []*entity.Event
	for _, event := range r.events {
		if event.UserID == userID && !event.CreatedAt.Before(from) && event.CreatedAt.Before(to) {
			events = append(events, cloneEvent(event))
		}
	}
	return events, nil
}

// appendEvent must be called with r.mu held
func (r *TaskRepository) appendEvent(event *entity.Event) {
	if event == nil {
		return
	}
	stored := cloneEvent(event)
	stored.ID = int64(len(r.events) + 1)
	event.ID = stored.ID
	r.events = append(r.events, stored)
}

func cloneTask(t *entity.Task) *entity.Task {
	c := *t
	c.ClickedAt = cloneTime(t.ClickedAt)
	c.SnoozedAt = cloneTime(t.SnoozedAt)
	return &c
}

func cloneEvent(e *entity.Event) *entity.Event {
	c := *e
	c.Meta = maps.Clone(e.Meta)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
