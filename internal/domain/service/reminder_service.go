package service

import (
	"context"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/report"
)

// ReminderService defines the interface for reminder business logic
type ReminderService interface {
	// SendSlotReminders creates a task and sends the reminder for every configured user
	SendSlotReminders(ctx context.Context, slotTime, slotID string) error

	// HandleCallback records a button press and returns the text shown to the user
	HandleCallback(ctx context.Context, callback *entity.Callback) (string, error)

	// SweepTimeouts marks every expired task as timed out
	SweepTimeouts(ctx context.Context) error

	// SendWeeklyReports sends the weekly summary to every configured user
	SendWeeklyReports(ctx context.Context) error

	// WeeklyReport builds the summary for the week ending on day
	WeeklyReport(ctx context.Context, userID string, day time.Time) (*report.Summary, error)

	// TaskEvents retrieves the event log of a task
	TaskEvents(ctx context.Context, taskID string) ([]*entity.Event, error)
}

// Button is an inline keyboard button
type Button struct {
	Text string
	Data string
}

// Message is an outbound chat message, optionally with a photo and a row of buttons
type Message struct {
	Text    string
	Image   string
	Buttons []Button
}

// Notifier defines the interface of the messaging client
type Notifier interface {
	// Send delivers a message to a chat
	Send(ctx context.Context, chatID string, msg *Message) error

	// AnswerCallback acknowledges a button press with a short toast
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// EventPublisher defines the interface for streaming lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event *entity.Event) error
	Close() error
}

// Deduplicator remembers delivery ids so a redelivered callback is handled once
type Deduplicator interface {
	// FirstSeen returns true the first time key is seen within the retention window
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// ReportMailer defines the interface for emailing weekly summaries
type ReportMailer interface {
	SendWeeklyReport(ctx context.Context, to string, user *entity.User, summary *report.Summary) error
}
