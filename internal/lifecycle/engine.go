// Package lifecycle implements the reminder task state machine and its timeout sweep.
//
// The engine persists transitions through a repository.TaskRepository and returns the
// messaging side effects as a list of Effect values for a separate layer to execute.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/repository"

	"github.com/google/uuid"
)

// Policy holds the timing rules of the lifecycle
type Policy struct {
	TimeoutWindow   time.Duration
	SnoozeDuration  time.Duration
	NotifyOnTimeout bool
}

// DefaultPolicy returns a 60 minute window with a single 10 minute snooze
func DefaultPolicy() Policy {
	return Policy{
		TimeoutWindow:  60 * time.Minute,
		SnoozeDuration: 10 * time.Minute,
	}
}

// Engine decides task transitions
type Engine struct {
	policy Policy
	tasks  repository.TaskRepository
	locker Locker
	newID  func() string
}

// Option configures an Engine
type Option func(*Engine)

// WithIDGenerator replaces the uuid task id generator
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine creates a new lifecycle engine. A nil locker falls back to an in-process one.
func NewEngine(policy Policy, tasks repository.TaskRepository, locker Locker, opts ...Option) *Engine {
	if locker == nil {
		locker = NewMemoryLocker()
	}

	e := &Engine{
		policy: policy,
		tasks:  tasks,
		locker: locker,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's timing rules
func (e *Engine) Policy() Policy {
	return e.policy
}

// CreateTask creates a pending task for a slot
func (e *Engine) CreateTask(ctx context.Context, key entity.SlotKey, slotID string, now time.Time) (*Outcome, error) {
	task := entity.NewTask(e.newID(), key, slotID, now, e.policy.TimeoutWindow)
	event := entity.NewCreatedEvent(task)

	if err := e.tasks.Create(ctx, task, event); err != nil {
		return nil, fmt.Errorf("failed to create task for slot %s: %w", key, err)
	}

	return &Outcome{
		Task: task,
		Effects: []Effect{
			{Kind: EffectSendReminder, Task: task},
			{Kind: EffectPublishEvent, Task: task, Event: event},
		},
	}, nil
}

// RecordResponse applies a user's response to a task.
//
// When the response arrives at or after the deadline the task is moved to timeout and
// the returned Outcome describes that transition alongside entity.ErrWindowExpired.
func (e *Engine) RecordResponse(ctx context.Context, taskID string, response entity.Response, at time.Time) (*Outcome, error) {
	if !response.Valid() {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidResponse, response)
	}

	unlock, err := e.locker.Lock(ctx, lockKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock task %s: %w", taskID, err)
	}
	defer unlock()

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: task %s is %s", entity.ErrAlreadyTerminal, taskID, task.Status)
	}

	if task.Expired(at) {
		outcome, err := e.transition(ctx, task, entity.StatusTimeout, at)
		if err != nil {
			return nil, err
		}
		return outcome, entity.ErrWindowExpired
	}

	return e.transition(ctx, task, response.Status(), at)
}

// SweepTimeouts moves every expired pending or snoozed task to timeout.
// Running it again with the same now changes nothing.
func (e *Engine) SweepTimeouts(ctx context.Context, now time.Time) (*SweepResult, error) {
	expired, err := e.tasks.ListExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired tasks: %w", err)
	}

	result := &SweepResult{}
	var errs []error

	for _, candidate := range expired {
		outcome, err := e.expire(ctx, candidate.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", candidate.ID, err))
			continue
		}
		if outcome == nil {
			continue
		}
		result.Tasks = append(result.Tasks, outcome.Task)
		result.Effects = append(result.Effects, outcome.Effects...)
	}

	return result, errors.Join(errs...)
}

// expire re-reads the task under its lock; a nil outcome means it was answered meanwhile
func (e *Engine) expire(ctx context.Context, taskID string, now time.Time) (*Outcome, error) {
	unlock, err := e.locker.Lock(ctx, lockKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}
	defer unlock()

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Expired(now) {
		return nil, nil
	}

	outcome, err := e.transition(ctx, task, entity.StatusTimeout, now)
	if errors.Is(err, entity.ErrAlreadyTerminal) {
		return nil, nil
	}
	return outcome, err
}

func (e *Engine) transition(ctx context.Context, task *entity.Task, to entity.Status, at time.Time) (*Outcome, error) {
	next, err := task.Apply(to, at, e.policy.SnoozeDuration)
	if err != nil {
		return nil, err
	}

	event := entity.NewTransitionEvent(task.Status, next, at)
	if err := e.tasks.UpdateStatus(ctx, next, task.Status, event); err != nil {
		if errors.Is(err, entity.ErrConflict) {
			return nil, e.resolveConflict(ctx, task.ID, err)
		}
		return nil, fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}

	return &Outcome{Task: next, Effects: e.effectsFor(next, event, at)}, nil
}

// resolveConflict reports a lost compare-and-swap as AlreadyTerminal when the winner finished the task
func (e *Engine) resolveConflict(ctx context.Context, taskID string, cause error) error {
	current, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to reload task after conflict: %w", err)
	}
	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: task %s is %s", entity.ErrAlreadyTerminal, taskID, current.Status)
	}
	return cause
}

func (e *Engine) effectsFor(task *entity.Task, event *entity.Event, at time.Time) []Effect {
	var effects []Effect

	switch task.Status {
	case entity.StatusDone, entity.StatusSkip:
		effects = append(effects, Effect{Kind: EffectSendAck, Task: task})
	case entity.StatusSnoozed:
		effects = append(effects,
			Effect{Kind: EffectSendAck, Task: task},
			Effect{Kind: EffectScheduleResend, Task: task, At: at.Add(e.policy.SnoozeDuration)},
		)
	case entity.StatusTimeout:
		if e.policy.NotifyOnTimeout {
			effects = append(effects, Effect{Kind: EffectSendTimeoutNotice, Task: task})
		}
	}

	return append(effects, Effect{Kind: EffectPublishEvent, Task: task, Event: event})
}

func lockKey(taskID string) string {
	return "task:" + taskID
}
