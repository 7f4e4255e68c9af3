package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"reminder-service/internal/infrastructure/db"
	"reminder-service/internal/infrastructure/storetest"

	"github.com/stretchr/testify/require"
)

func TestTaskRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "reminders.db"))
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })

		repo := NewTaskRepository(conn)
		require.NoError(t, repo.EnsureSchema(context.Background()))
		return repo
	})
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "nested", "reminders.db"))
	require.NoError(t, err)
	defer conn.Close()

	repo := NewTaskRepository(conn)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, repo.EnsureSchema(context.Background()))
}
