package report

import (
	"context"
	"testing"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekRange(t *testing.T) {
	start, end := WeekRange(time.Date(2024, 1, 14, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-01-08", start)
	assert.Equal(t, "2024-01-14", end)

	start, end = WeekRange(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-26", start, "crosses a leap-year month boundary")
	assert.Equal(t, "2024-03-03", end)
}

func TestSummarize(t *testing.T) {
	tasks := []*entity.Task{
		{Status: entity.StatusDone},
		{Status: entity.StatusDone},
		{Status: entity.StatusSkip},
		{Status: entity.StatusTimeout},
	}
	events := []*entity.Event{
		{Type: entity.EventCreated},
		{Type: entity.EventSnoozed},
		{Type: entity.EventDone},
	}

	s := Summarize("u1", "2024-01-08", "2024-01-14", tasks, events)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Done)
	assert.InDelta(t, 0.5, s.Completion, 1e-9)
	assert.Equal(t, 50, s.CompletionPercent())
	assert.Equal(t, 1, s.SnoozesUsed)
	assert.Equal(t, 0, s.Counts[entity.StatusPending])
	assert.Len(t, s.Counts, len(entity.Statuses))

	text := s.Text()
	assert.Contains(t, text, "Completion: 50%")
	assert.Contains(t, text, "Done: 2")
	assert.Contains(t, text, "Snoozes used: 1")
	assert.NotContains(t, text, "Still open")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("u1", "2024-01-08", "2024-01-14", nil, nil)
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.Completion)
	assert.Contains(t, s.Text(), "Completion: 0%")
}

func TestGenerator_Build(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+8", 8*3600)
	repo := memory.NewTaskRepository()

	create := func(id, date, hhmm string, created time.Time) *entity.Task {
		task := entity.NewTask(id, entity.SlotKey{UserID: "u1", Date: date, Time: hhmm}, "push", created, time.Hour)
		require.NoError(t, repo.Create(ctx, task, entity.NewCreatedEvent(task)))
		return task
	}
	update := func(task *entity.Task, to entity.Status, at time.Time) {
		next, err := task.Apply(to, at, 10*time.Minute)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(ctx, next, task.Status, entity.NewTransitionEvent(task.Status, next, at)))
	}

	// outside the week
	old := create("old", "2024-01-07", "10:00", time.Date(2024, 1, 7, 10, 0, 0, 0, loc))
	update(old, entity.StatusSnoozed, time.Date(2024, 1, 7, 10, 1, 0, 0, loc))

	first := create("first", "2024-01-08", "10:00", time.Date(2024, 1, 8, 10, 0, 0, 0, loc))
	update(first, entity.StatusDone, time.Date(2024, 1, 8, 10, 5, 0, 0, loc))

	second := create("second", "2024-01-14", "10:00", time.Date(2024, 1, 14, 10, 0, 0, 0, loc))
	update(second, entity.StatusSnoozed, time.Date(2024, 1, 14, 10, 2, 0, 0, loc))

	gen := NewGenerator(repo, repo, loc)

	// 2024-01-14 20:00 local is still 12:00 UTC on the same day
	s, err := gen.Build(ctx, "u1", time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-08", s.WeekStart)
	assert.Equal(t, "2024-01-14", s.WeekEnd)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 1, s.Counts[entity.StatusSnoozed])
	assert.Equal(t, 1, s.SnoozesUsed, "the snooze on 2024-01-07 is outside the week")
	assert.Contains(t, s.Text(), "Still open: 1")
}
