package postgres

import (
	"context"
	"os"
	"testing"

	"reminder-service/internal/infrastructure/db"
	"reminder-service/internal/infrastructure/storetest"

	"github.com/stretchr/testify/require"
)

// Runs against a real server only when TEST_DATABASE_URL is set; the tables are truncated per subtest.
func TestTaskRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPostgresPoolFromDSN(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewTaskRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	storetest.Run(t, func(t *testing.T) storetest.Store {
		_, err := pool.Exec(ctx, `TRUNCATE events, tasks`)
		require.NoError(t, err)
		return repo
	})
}
