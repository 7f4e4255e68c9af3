package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/service"
)

// Texts shown in the callback toast
const (
	textExpired        = "Too late, this reminder already timed out ⌛"
	textAlreadyDone    = "Already recorded"
	textSnoozeLimit    = "You can only snooze once"
	textSnoozeDisabled = "Snoozing is turned off"
	textUnknownButton  = "This button is no longer valid"
	textFailed         = "Something went wrong, please try again"
)

// ReminderMessage builds the reminder with its answer buttons.
// A resend after a snooze offers no second snooze.
func ReminderMessage(task *entity.Task, slot entity.Slot, window, snooze time.Duration, resend bool) *service.Message {
	var b strings.Builder
	if resend {
		b.WriteString("🔁 Snoozed reminder\n")
	}
	fmt.Fprintf(&b, "⏰ %s workout reminder (%s)\n", task.Time, html.EscapeString(slot.Name))
	fmt.Fprintf(&b, "Exercise: %s\n", html.EscapeString(slot.Exercise))
	fmt.Fprintf(&b, "Target: %s\n", html.EscapeString(slot.Reps))
	if resend {
		fmt.Fprintf(&b, "\n⏳ Answer by %s or it counts as missed", task.TimeoutAt.Format("15:04"))
	} else {
		fmt.Fprintf(&b, "\n⏳ No answer within %d minutes = marked as missed", int(window.Minutes()))
	}

	buttons := []service.Button{
		{Text: "✅ Done", Data: callbackData(entity.ResponseDone, task.ID)},
		{Text: "⏭️ Skip", Data: callbackData(entity.ResponseSkip, task.ID)},
	}
	if !resend && snooze > 0 && task.Status == entity.StatusPending {
		buttons = append(buttons, service.Button{
			Text: fmt.Sprintf("🕒 Snooze %d min", int(snooze.Minutes())),
			Data: "snooze:" + task.ID,
		})
	}

	return &service.Message{
		Text:    b.String(),
		Image:   slot.Image,
		Buttons: buttons,
	}
}

// AckText confirms a recorded answer
func AckText(task *entity.Task, snooze time.Duration) string {
	switch task.Status {
	case entity.StatusDone:
		return "Recorded: done ✅"
	case entity.StatusSkip:
		return "Recorded: skipped ⏭️"
	case entity.StatusSnoozed:
		return fmt.Sprintf("Snoozed for %d minutes 🕒", int(snooze.Minutes()))
	case entity.StatusTimeout:
		return textExpired
	}
	return textAlreadyDone
}

// TimeoutText tells the user a reminder went unanswered
func TimeoutText(task *entity.Task, slot entity.Slot) string {
	return fmt.Sprintf("⌛ The %s reminder (%s) got no answer and was marked as missed", task.Time, html.EscapeString(slot.Name))
}

func callbackData(response entity.Response, taskID string) string {
	return string(response) + ":" + taskID
}
