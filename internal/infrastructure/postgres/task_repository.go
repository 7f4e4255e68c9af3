package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reminder-service/internal/domain/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const taskColumns = `id, user_id, date, time, slot_id, status, created_at, timeout_at, clicked_at, snoozed_at`

// TaskRepository stores tasks and their event log in PostgreSQL.
// It implements both repository.TaskRepository and repository.EventRepository.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new PostgreSQL task repository
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// EnsureSchema creates the tasks and events tables if they don't exist
func (r *TaskRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			date       TEXT NOT NULL,
			time       TEXT NOT NULL,
			slot_id    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL,
			timeout_at TIMESTAMPTZ NOT NULL,
			clicked_at TIMESTAMPTZ,
			snoozed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_slot ON tasks(user_id, date, time)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_open ON tasks(timeout_at) WHERE status IN ('pending', 'snoozed')`,
		`CREATE TABLE IF NOT EXISTS events (
			id          BIGSERIAL PRIMARY KEY,
			task_id     TEXT NOT NULL REFERENCES tasks(id),
			user_id     TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL,
			meta        JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task, event *entity.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = tx.Exec(ctx, query,
		task.ID, task.UserID, task.Date, task.Time, task.SlotID,
		task.Status, task.CreatedAt, task.TimeoutAt, task.ClickedAt, task.SnoozedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", entity.ErrDuplicateSlot, task.Key())
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, task *entity.Task, expected entity.Status, event *entity.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE tasks
		SET status = $1, timeout_at = $2, clicked_at = $3, snoozed_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := tx.Exec(ctx, query,
		task.Status, task.TimeoutAt, task.ClickedAt, task.SnoozedAt,
		task.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", entity.ErrTaskNotFound, task.ID)
		}
		return entity.ErrConflict
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListExpired(ctx context.Context, now time.Time) ([]*entity.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status IN ('pending', 'snoozed') AND timeout_at <= $1
		ORDER BY timeout_at ASC
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID, weekStart, weekEnd string) ([]*entity.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, time ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *TaskRepository) ListEventsByTask(ctx context.Context, taskID string) ([]*entity.Event, error) {
	query := `
		SELECT id, task_id, user_id, event_type, from_status, created_at, meta
		FROM events
		WHERE task_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *TaskRepository) ListEventsByUser(ctx context.Context, userID string, from, to time.Time) ([]*entity.Event, error) {
	query := `
		SELECT id, task_id, user_id, event_type, from_status, created_at, meta
		FROM events
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list user events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func insertEvent(ctx context.Context, tx pgx.Tx, event *entity.Event) error {
	if event == nil {
		return nil
	}

	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal event meta: %w", err)
	}

	query := `
		INSERT INTO events (task_id, user_id, event_type, from_status, created_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING id
	`

	err = tx.QueryRow(ctx, query,
		event.TaskID, event.UserID, event.Type, event.FromStatus, event.CreatedAt, string(meta),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*entity.Task, error) {
	task := &entity.Task{}
	err := row.Scan(
		&task.ID, &task.UserID, &task.Date, &task.Time, &task.SlotID,
		&task.Status, &task.CreatedAt, &task.TimeoutAt, &task.ClickedAt, &task.SnoozedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func collectTasks(rows pgx.Rows) ([]*entity.Task, error) {
	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func collectEvents(rows pgx.Rows) ([]*entity.Event, error) {
	var events []*entity.Event
	for rows.Next() {
		event := &entity.Event{}
		var meta []byte
		err := rows.Scan(
			&event.ID, &event.TaskID, &event.UserID, &event.Type,
			&event.FromStatus, &event.CreatedAt, &meta,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(meta, &event.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode event meta: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
