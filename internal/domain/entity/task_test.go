package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

func newPending() *Task {
	return NewTask("t1", SlotKey{UserID: "42", Date: "2024-01-08", Time: "09:00"}, "push_a", created, time.Hour)
}

func TestNewTask_ComputesDeadline(t *testing.T) {
	task := newPending()

	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, created.Add(time.Hour), task.TimeoutAt)
	assert.Nil(t, task.ClickedAt)
	assert.Nil(t, task.SnoozedAt)
}

func TestApply_ClickedAtOnlyForDoneAndSkip(t *testing.T) {
	at := created.Add(30 * time.Minute)

	for _, to := range []Status{StatusDone, StatusSkip, StatusSnoozed, StatusTimeout} {
		next, err := newPending().Apply(to, at, 10*time.Minute)
		require.NoError(t, err, to)

		if to == StatusDone || to == StatusSkip {
			require.NotNil(t, next.ClickedAt, to)
			assert.Equal(t, at, *next.ClickedAt)
		} else {
			assert.Nil(t, next.ClickedAt, to)
		}
	}
}

func TestApply_DoesNotMutateReceiver(t *testing.T) {
	task := newPending()

	_, err := task.Apply(StatusDone, created.Add(time.Minute), 0)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, task.Status)
	assert.Nil(t, task.ClickedAt)
}

func TestApply_SnoozeExtendsDeadlineOnce(t *testing.T) {
	at := created.Add(10 * time.Minute)

	snoozed, err := newPending().Apply(StatusSnoozed, at, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, created.Add(70*time.Minute), snoozed.TimeoutAt)
	require.NotNil(t, snoozed.SnoozedAt)
	assert.Equal(t, at, *snoozed.SnoozedAt)

	_, err = snoozed.Apply(StatusSnoozed, at.Add(time.Minute), 10*time.Minute)
	assert.ErrorIs(t, err, ErrSnoozeLimit)

	done, err := snoozed.Apply(StatusDone, at.Add(time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
}

func TestApply_ZeroSnoozeIsRejected(t *testing.T) {
	task := newPending()

	_, err := task.Apply(StatusSnoozed, created.Add(time.Minute), 0)
	assert.ErrorIs(t, err, ErrSnoozeLimit)
	assert.Equal(t, StatusPending, task.Status)
}

func TestApply_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []Status{StatusDone, StatusSkip, StatusTimeout} {
		task := newPending()
		task.Status = terminal

		for _, to := range []Status{StatusPending, StatusDone, StatusSkip, StatusSnoozed, StatusTimeout} {
			_, err := task.Apply(to, created, 0)
			assert.True(t, errors.Is(err, ErrAlreadyTerminal), "%s -> %s", terminal, to)
		}
	}
}

func TestApply_PendingToPendingRejected(t *testing.T) {
	_, err := newPending().Apply(StatusPending, created, 0)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestExpired(t *testing.T) {
	task := newPending()

	assert.False(t, task.Expired(created.Add(59*time.Minute)))
	assert.True(t, task.Expired(created.Add(time.Hour)))

	task.Status = StatusDone
	assert.False(t, task.Expired(created.Add(2*time.Hour)))
}

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse("snooze")
	require.NoError(t, err)
	assert.Equal(t, ResponseSnoozed, r)
	assert.Equal(t, StatusSnoozed, r.Status())

	_, err = ParseResponse("timeout")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCallbackParseData(t *testing.T) {
	cb := Callback{Data: "done:abc-123"}
	action, id, ok := cb.ParseData()
	assert.True(t, ok)
	assert.Equal(t, "done", action)
	assert.Equal(t, "abc-123", id)

	for _, data := range []string{"", "done", ":abc", "done:"} {
		cb := Callback{Data: data}
		_, _, ok := cb.ParseData()
		assert.False(t, ok, data)
	}
}

func TestIsRemoteImage(t *testing.T) {
	assert.True(t, IsRemoteImage("https://example.com/squat.jpg"))
	assert.True(t, IsRemoteImage("http://example.com/squat.jpg"))
	assert.False(t, IsRemoteImage("images/squat.jpg"))
	assert.False(t, IsRemoteImage(""))
}
