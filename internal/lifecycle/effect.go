package lifecycle

import (
	"time"

	"reminder-service/internal/domain/entity"
)

// EffectKind names a side effect requested by the engine
type EffectKind string

const (
	EffectSendReminder      EffectKind = "send_reminder"
	EffectSendAck           EffectKind = "send_ack"
	EffectScheduleResend    EffectKind = "schedule_resend"
	EffectSendTimeoutNotice EffectKind = "send_timeout_notice"
	EffectPublishEvent      EffectKind = "publish_event"
)

// Effect is an I/O request produced by a transition. The engine never performs it.
type Effect struct {
	Kind  EffectKind
	Task  *entity.Task
	Event *entity.Event
	At    time.Time // when a scheduled resend is due
}

// Outcome is the result of a single-task operation
type Outcome struct {
	Task    *entity.Task
	Effects []Effect
}

// SweepResult is the result of a timeout sweep
type SweepResult struct {
	Tasks   []*entity.Task
	Effects []Effect
}

// Kinds returns the effect kinds in order, mostly for logging and tests
func Kinds(effects []Effect) []EffectKind {
	kinds := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
