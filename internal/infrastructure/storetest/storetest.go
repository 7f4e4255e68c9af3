// Package storetest holds the behaviour every task store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store is a task store together with its event log
type Store interface {
	repository.TaskRepository
	repository.EventRepository
}

var base = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

func newTask(id string, key entity.SlotKey, created time.Time) (*entity.Task, *entity.Event) {
	task := entity.NewTask(id, key, "push", created, time.Hour)
	return task, entity.NewCreatedEvent(task)
}

// Run executes the store contract against stores built by newStore.
// Every subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task, event := newTask("t1", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}, base)
		require.NoError(t, store.Create(ctx, task, event))
		assert.NotZero(t, event.ID)

		got, err := store.GetByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "2024-01-08", got.Date)
		assert.Equal(t, "10:00", got.Time)
		assert.Equal(t, "push", got.SlotID)
		assert.Equal(t, entity.StatusPending, got.Status)
		assert.True(t, got.CreatedAt.Equal(base))
		assert.True(t, got.TimeoutAt.Equal(base.Add(time.Hour)))
		assert.Nil(t, got.ClickedAt)
		assert.Nil(t, got.SnoozedAt)
	})

	t.Run("unknown task", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, entity.ErrTaskNotFound)
	})

	t.Run("duplicate slot", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}

		first, event := newTask("t1", key, base)
		require.NoError(t, store.Create(ctx, first, event))

		second, event := newTask("t2", key, base.Add(time.Minute))
		err := store.Create(ctx, second, event)
		assert.ErrorIs(t, err, entity.ErrDuplicateSlot)

		events, err := store.ListEventsByTask(ctx, "t2")
		require.NoError(t, err)
		assert.Empty(t, events, "a rejected create must not leave an event behind")
	})

	t.Run("compare and swap", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task, event := newTask("t1", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}, base)
		require.NoError(t, store.Create(ctx, task, event))

		clicked := base.Add(5 * time.Minute)
		done, err := task.Apply(entity.StatusDone, clicked, 0)
		require.NoError(t, err)

		require.NoError(t, store.UpdateStatus(ctx, done, entity.StatusPending, entity.NewTransitionEvent(entity.StatusPending, done, clicked)))

		got, err := store.GetByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusDone, got.Status)
		require.NotNil(t, got.ClickedAt)
		assert.True(t, got.ClickedAt.Equal(clicked))

		skip, err := task.Apply(entity.StatusSkip, clicked, 0)
		require.NoError(t, err)
		err = store.UpdateStatus(ctx, skip, entity.StatusPending, entity.NewTransitionEvent(entity.StatusPending, skip, clicked))
		assert.ErrorIs(t, err, entity.ErrConflict)

		events, err := store.ListEventsByTask(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, events, 2, "the losing update must not append an event")
		assert.Equal(t, entity.EventCreated, events[0].Type)
		assert.Equal(t, entity.EventDone, events[1].Type)
		assert.Equal(t, entity.StatusPending, events[1].FromStatus)
	})

	t.Run("update unknown task", func(t *testing.T) {
		store := newStore(t)

		task, _ := newTask("ghost", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}, base)
		err := store.UpdateStatus(context.Background(), task, entity.StatusPending, nil)
		assert.ErrorIs(t, err, entity.ErrTaskNotFound)
	})

	t.Run("list expired", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		early, event := newTask("early", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "09:00"}, base.Add(-time.Hour))
		require.NoError(t, store.Create(ctx, early, event))
		late, event := newTask("late", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}, base)
		require.NoError(t, store.Create(ctx, late, event))
		answered, event := newTask("answered", entity.SlotKey{UserID: "u2", Date: "2024-01-08", Time: "09:00"}, base.Add(-time.Hour))
		require.NoError(t, store.Create(ctx, answered, event))

		skip, err := answered.Apply(entity.StatusSkip, base, 0)
		require.NoError(t, err)
		require.NoError(t, store.UpdateStatus(ctx, skip, entity.StatusPending, entity.NewTransitionEvent(entity.StatusPending, skip, base)))

		// early's deadline is exactly base: inclusive
		expired, err := store.ListExpired(ctx, base)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "early", expired[0].ID)

		expired, err = store.ListExpired(ctx, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.Equal(t, "early", expired[0].ID)
		assert.Equal(t, "late", expired[1].ID)
	})

	t.Run("list expired includes snoozed", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task, event := newTask("t1", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}, base)
		require.NoError(t, store.Create(ctx, task, event))

		snoozed, err := task.Apply(entity.StatusSnoozed, base.Add(time.Minute), 10*time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.UpdateStatus(ctx, snoozed, entity.StatusPending, entity.NewTransitionEvent(entity.StatusPending, snoozed, base.Add(time.Minute))))

		expired, err := store.ListExpired(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, expired, "the snooze extended the deadline")

		expired, err = store.ListExpired(ctx, base.Add(70*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, entity.StatusSnoozed, expired[0].Status)
		require.NotNil(t, expired[0].SnoozedAt)
	})

	t.Run("list by user", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		keys := []entity.SlotKey{
			{UserID: "u1", Date: "2024-01-09", Time: "09:00"},
			{UserID: "u1", Date: "2024-01-08", Time: "15:00"},
			{UserID: "u1", Date: "2024-01-08", Time: "10:00"},
			{UserID: "u1", Date: "2024-01-15", Time: "10:00"},
			{UserID: "u2", Date: "2024-01-08", Time: "10:00"},
		}
		for i, key := range keys {
			task, event := newTask(string(rune('a'+i)), key, base)
			require.NoError(t, store.Create(ctx, task, event))
		}

		tasks, err := store.ListByUser(ctx, "u1", "2024-01-08", "2024-01-14")
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "c", tasks[0].ID)
		assert.Equal(t, "b", tasks[1].ID)
		assert.Equal(t, "a", tasks[2].ID)
	})

	t.Run("list events by user", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task, event := newTask("t1", entity.SlotKey{UserID: "u1", Date: "2024-01-08", Time: "10:00"}, base)
		require.NoError(t, store.Create(ctx, task, event))

		snoozedAt := base.Add(30 * time.Minute)
		snoozed, err := task.Apply(entity.StatusSnoozed, snoozedAt, 10*time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.UpdateStatus(ctx, snoozed, entity.StatusPending, entity.NewTransitionEvent(entity.StatusPending, snoozed, snoozedAt)))

		events, err := store.ListEventsByUser(ctx, "u1", base, snoozedAt)
		require.NoError(t, err)
		require.Len(t, events, 1, "to is exclusive")
		assert.Equal(t, entity.EventCreated, events[0].Type)
		assert.Equal(t, "push", events[0].Meta["slot_id"])

		events, err = store.ListEventsByUser(ctx, "u1", base, snoozedAt.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, entity.EventSnoozed, events[1].Type)
		assert.NotEmpty(t, events[1].Meta["timeout_at"])

		events, err = store.ListEventsByUser(ctx, "u2", base, snoozedAt.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
