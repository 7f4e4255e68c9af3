package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/repository"
	"reminder-service/internal/domain/service"
	"reminder-service/internal/lifecycle"
	"reminder-service/internal/report"
)

// Deps holds the collaborators of the reminder service. Mailer may be nil.
type Deps struct {
	Engine     *lifecycle.Engine
	Tasks      repository.TaskRepository
	Events     repository.EventRepository
	Reports    *report.Generator
	Dispatcher *Dispatcher
	Notifier   service.Notifier
	Dedup      service.Deduplicator
	Mailer     service.ReportMailer
	Users      []entity.User
	Slots      map[string]entity.Slot
	Location   *time.Location
	Now        func() time.Time
	Log        *slog.Logger
}

type reminderService struct {
	Deps
}

// NewReminderService creates a new reminder service
func NewReminderService(deps Deps) service.ReminderService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &reminderService{Deps: deps}
}

func (s *reminderService) SendSlotReminders(ctx context.Context, slotTime, slotID string) error {
	if _, ok := s.Slots[slotID]; !ok {
		return fmt.Errorf("unknown slot %q", slotID)
	}

	now := s.Now()
	date := now.In(s.Location).Format("2006-01-02")

	var errs []error
	for _, user := range s.Users {
		key := entity.SlotKey{UserID: user.ChatID, Date: date, Time: slotTime}

		outcome, err := s.Engine.CreateTask(ctx, key, slotID, now)
		if err != nil {
			if errors.Is(err, entity.ErrDuplicateSlot) {
				s.Log.Warn("reminder already sent for slot", "slot", key.String())
				continue
			}
			errs = append(errs, err)
			continue
		}

		s.Log.Info("reminder task created", "task_id", outcome.Task.ID, "user_id", user.ChatID, "slot_id", slotID)
		if err := s.Dispatcher.Execute(ctx, outcome.Effects); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *reminderService) HandleCallback(ctx context.Context, callback *entity.Callback) (string, error) {
	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, deliveryKey(callback))
		if err != nil {
			s.Log.Warn("callback dedupe unavailable", "error", err)
		} else if !first {
			s.Log.Debug("duplicate callback delivery ignored", "update_id", callback.UpdateID)
			return "", nil
		}
	}

	text, outcome, err := s.respond(ctx, callback)

	// the button spinner stays until the answer, so it goes out before the effects are dispatched
	if answerErr := s.Notifier.AnswerCallback(ctx, callback.CallbackID, text); answerErr != nil {
		s.Log.Warn("failed to answer callback", "callback_id", callback.CallbackID, "error", answerErr)
	}

	if outcome != nil {
		if dispatchErr := s.Dispatcher.Execute(ctx, outcome.Effects); dispatchErr != nil {
			s.Log.Error("callback effects failed", "task_id", outcome.Task.ID, "error", dispatchErr)
		}
	}

	return text, err
}

// respond records the answer and picks the toast text. Only unexpected failures are returned as errors.
func (s *reminderService) respond(ctx context.Context, callback *entity.Callback) (string, *lifecycle.Outcome, error) {
	action, taskID, ok := callback.ParseData()
	if !ok {
		return textUnknownButton, nil, nil
	}

	response, err := entity.ParseResponse(action)
	if err != nil {
		s.Log.Warn("unknown callback action", "action", action, "task_id", taskID)
		return textUnknownButton, nil, nil
	}

	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, entity.ErrTaskNotFound) {
			return textUnknownButton, nil, nil
		}
		return textFailed, nil, err
	}
	if task.UserID != callback.ChatID {
		s.Log.Warn("callback for another chat's task", "task_id", taskID, "chat_id", callback.ChatID)
		return textUnknownButton, nil, nil
	}

	outcome, err := s.Engine.RecordResponse(ctx, taskID, response, s.Now())
	switch {
	case err == nil:
		s.Log.Info("response recorded", "task_id", taskID, "status", outcome.Task.Status)
		return AckText(outcome.Task, s.Engine.Policy().SnoozeDuration), outcome, nil
	case errors.Is(err, entity.ErrWindowExpired):
		s.Log.Info("late response, task timed out", "task_id", taskID)
		return textExpired, outcome, nil
	case errors.Is(err, entity.ErrAlreadyTerminal):
		return textAlreadyDone, nil, nil
	case errors.Is(err, entity.ErrSnoozeLimit):
		if s.Engine.Policy().SnoozeDuration <= 0 {
			return textSnoozeDisabled, nil, nil
		}
		return textSnoozeLimit, nil, nil
	case errors.Is(err, entity.ErrTaskNotFound):
		return textUnknownButton, nil, nil
	}
	return textFailed, nil, err
}

func (s *reminderService) SweepTimeouts(ctx context.Context) error {
	result, err := s.Engine.SweepTimeouts(ctx, s.Now())
	if result != nil {
		if len(result.Tasks) > 0 {
			s.Log.Info("tasks timed out", "count", len(result.Tasks))
		}
		if dispatchErr := s.Dispatcher.Execute(ctx, result.Effects); dispatchErr != nil {
			err = errors.Join(err, dispatchErr)
		}
	}
	return err
}

func (s *reminderService) SendWeeklyReports(ctx context.Context) error {
	now := s.Now()

	var errs []error
	for _, user := range s.Users {
		summary, err := s.Reports.Build(ctx, user.ChatID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("report for %s: %w", user.ChatID, err))
			continue
		}

		if err := s.Notifier.Send(ctx, user.ChatID, &service.Message{Text: summary.Text()}); err != nil {
			errs = append(errs, fmt.Errorf("send report to %s: %w", user.ChatID, err))
		}

		if s.Mailer != nil && user.Email != "" {
			if err := s.Mailer.SendWeeklyReport(ctx, user.Email, &user, summary); err != nil {
				errs = append(errs, fmt.Errorf("email report to %s: %w", user.Email, err))
			}
		}

		s.Log.Info("weekly report sent", "user_id", user.ChatID, "total", summary.Total, "done", summary.Done)
	}

	return errors.Join(errs...)
}

func (s *reminderService) WeeklyReport(ctx context.Context, userID string, day time.Time) (*report.Summary, error) {
	return s.Reports.Build(ctx, userID, day)
}

func (s *reminderService) TaskEvents(ctx context.Context, taskID string) ([]*entity.Event, error) {
	if _, err := s.Tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.Events.ListEventsByTask(ctx, taskID)
}

// deliveryKey identifies one delivery of a button press
func deliveryKey(callback *entity.Callback) string {
	if callback.CallbackID != "" {
		return "cb:" + callback.CallbackID
	}
	return "update:" + strconv.FormatInt(callback.UpdateID, 10)
}
