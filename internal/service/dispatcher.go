package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/repository"
	"reminder-service/internal/domain/service"
	"reminder-service/internal/lifecycle"
)

const resendTimeout = 30 * time.Second

// Scheduler runs a callback once at a given time
type Scheduler interface {
	Schedule(at time.Time, fn func())
}

// Dispatcher performs the side effects the lifecycle engine asks for
type Dispatcher struct {
	notifier  service.Notifier
	publisher service.EventPublisher
	scheduler Scheduler
	tasks     repository.TaskRepository
	slots     map[string]entity.Slot
	policy    lifecycle.Policy
	log       *slog.Logger
}

// NewDispatcher creates a new dispatcher. publisher and scheduler may be nil.
func NewDispatcher(
	notifier service.Notifier,
	publisher service.EventPublisher,
	scheduler Scheduler,
	tasks repository.TaskRepository,
	slots map[string]entity.Slot,
	policy lifecycle.Policy,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifier:  notifier,
		publisher: publisher,
		scheduler: scheduler,
		tasks:     tasks,
		slots:     slots,
		policy:    policy,
		log:       log,
	}
}

// Execute runs every effect in order. A failed effect does not stop the rest.
func (d *Dispatcher) Execute(ctx context.Context, effects []lifecycle.Effect) error {
	var errs []error
	for _, effect := range effects {
		if err := d.execute(ctx, effect); err != nil {
			d.log.Error("effect failed", "kind", effect.Kind, "task_id", effect.Task.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s for task %s: %w", effect.Kind, effect.Task.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) execute(ctx context.Context, effect lifecycle.Effect) error {
	task := effect.Task

	switch effect.Kind {
	case lifecycle.EffectSendReminder:
		msg := ReminderMessage(task, d.slots[task.SlotID], d.policy.TimeoutWindow, d.policy.SnoozeDuration, false)
		return d.notifier.Send(ctx, task.UserID, msg)

	case lifecycle.EffectSendAck:
		return d.notifier.Send(ctx, task.UserID, &service.Message{Text: AckText(task, d.policy.SnoozeDuration)})

	case lifecycle.EffectSendTimeoutNotice:
		return d.notifier.Send(ctx, task.UserID, &service.Message{Text: TimeoutText(task, d.slots[task.SlotID])})

	case lifecycle.EffectScheduleResend:
		if d.scheduler == nil {
			return nil
		}
		taskID := task.ID
		d.scheduler.Schedule(effect.At, func() { d.resend(taskID) })
		return nil

	case lifecycle.EffectPublishEvent:
		if d.publisher == nil || effect.Event == nil {
			return nil
		}
		return d.publisher.Publish(ctx, effect.Event)
	}

	return fmt.Errorf("unknown effect %q", effect.Kind)
}

// resend repeats the reminder of a snoozed task that is still unanswered
func (d *Dispatcher) resend(taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resendTimeout)
	defer cancel()

	task, err := d.tasks.GetByID(ctx, taskID)
	if err != nil {
		d.log.Error("resend: failed to load task", "task_id", taskID, "error", err)
		return
	}
	if task.Status != entity.StatusSnoozed {
		d.log.Debug("resend skipped, task already answered", "task_id", taskID, "status", task.Status)
		return
	}

	msg := ReminderMessage(task, d.slots[task.SlotID], d.policy.TimeoutWindow, d.policy.SnoozeDuration, true)
	if err := d.notifier.Send(ctx, task.UserID, msg); err != nil {
		d.log.Error("resend failed", "task_id", taskID, "error", err)
	}
}
