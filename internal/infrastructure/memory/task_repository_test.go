package memory

import (
	"testing"

	"reminder-service/internal/infrastructure/storetest"
)

func TestTaskRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return NewTaskRepository()
	})
}
