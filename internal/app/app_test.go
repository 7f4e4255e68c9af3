package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(storage config.StorageConfig) *App {
	return &App{
		config: &config.Config{Storage: storage},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	a := newTestApp(config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "data", "reminders.db")})

	store, err := a.openStore(context.Background())
	require.NoError(t, err)
	defer a.close()

	task := entity.NewTask("t1", entity.SlotKey{UserID: "42", Date: "2024-01-08", Time: "10:30"}, "push",
		time.Date(2024, 1, 8, 2, 30, 0, 0, time.UTC), time.Hour)
	require.NoError(t, store.Create(context.Background(), task, entity.NewCreatedEvent(task)))

	events, err := store.ListEventsByTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestOpenStore_Memory(t *testing.T) {
	a := newTestApp(config.StorageConfig{Driver: "memory"})

	store, err := a.openStore(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, store)
	a.close()
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	a := newTestApp(config.StorageConfig{Driver: "mongo"})

	_, err := a.openStore(context.Background())
	assert.ErrorContains(t, err, `unknown storage driver "mongo"`)
}
