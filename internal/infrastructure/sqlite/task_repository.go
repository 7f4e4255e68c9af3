package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reminder-service/internal/domain/entity"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// fixed width so that text comparison orders like time comparison
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = `id, user_id, date, time, slot_id, status, created_at, timeout_at, clicked_at, snoozed_at`

// TaskRepository stores tasks and their event log in SQLite.
// It implements both repository.TaskRepository and repository.EventRepository.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite task repository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
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
			created_at TEXT NOT NULL,
			timeout_at TEXT NOT NULL,
			clicked_at TEXT,
			snoozed_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_slot ON tasks(user_id, date, time)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_timeout ON tasks(status, timeout_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id     TEXT NOT NULL REFERENCES tasks(id),
			user_id     TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			meta        TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task, event *entity.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Date, task.Time, task.SlotID,
		string(task.Status), formatTime(task.CreatedAt), formatTime(task.TimeoutAt),
		nullTime(task.ClickedAt), nullTime(task.SnoozedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", entity.ErrDuplicateSlot, task.Key())
		}
		return fmt.Errorf("insert task: %w", err)
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*entity.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, task *entity.Task, expected entity.Status, event *entity.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, timeout_at = ?, clicked_at = ?, snoozed_at = ?
		 WHERE id = ? AND status = ?`,
		string(task.Status), formatTime(task.TimeoutAt), nullTime(task.ClickedAt), nullTime(task.SnoozedAt),
		task.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, task.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check task: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", entity.ErrTaskNotFound, task.ID)
		}
		return entity.ErrConflict
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *TaskRepository) ListExpired(ctx context.Context, now time.Time) ([]*entity.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status IN ('pending', 'snoozed') AND timeout_at <= ?
		 ORDER BY timeout_at ASC`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID, weekStart, weekEnd string) ([]*entity.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC, time ASC`,
		userID, weekStart, weekEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("list user tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *TaskRepository) ListEventsByTask(ctx context.Context, taskID string) ([]*entity.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, task_id, user_id, event_type, from_status, created_at, meta
		 FROM events WHERE task_id = ? ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *TaskRepository) ListEventsByUser(ctx context.Context, userID string, from, to time.Time) ([]*entity.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, task_id, user_id, event_type, from_status, created_at, meta
		 FROM events WHERE user_id = ? AND created_at >= ? AND created_at < ? ORDER BY id ASC`,
		userID, formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list user events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func insertEvent(ctx context.Context, tx *sql.Tx, event *entity.Event) error {
	if event == nil {
		return nil
	}

	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("marshal event meta: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO events (task_id, user_id, event_type, from_status, created_at, meta)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.TaskID, event.UserID, string(event.Type), string(event.FromStatus),
		formatTime(event.CreatedAt), string(meta),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	event.ID = id
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*entity.Task, error) {
	var (
		task                 entity.Task
		status               string
		createdAt, timeoutAt string
		clickedAt, snoozedAt sql.NullString
	)

	err := row.Scan(
		&task.ID, &task.UserID, &task.Date, &task.Time, &task.SlotID,
		&status, &createdAt, &timeoutAt, &clickedAt, &snoozedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = entity.Status(status)
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.TimeoutAt, err = parseTime(timeoutAt); err != nil {
		return nil, err
	}
	if task.ClickedAt, err = parseNullTime(clickedAt); err != nil {
		return nil, err
	}
	if task.SnoozedAt, err = parseNullTime(snoozedAt); err != nil {
		return nil, err
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*entity.Task, error) {
	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func collectEvents(rows *sql.Rows) ([]*entity.Event, error) {
	var events []*entity.Event
	for rows.Next() {
		var (
			event                      entity.Event
			eventType, from, createdAt string
			meta                       string
		)
		if err := rows.Scan(&event.ID, &event.TaskID, &event.UserID, &eventType, &from, &createdAt, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		event.Type = entity.EventType(eventType)
		event.FromStatus = entity.Status(from)

		var err error
		if event.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &event.Meta); err != nil {
			return nil, fmt.Errorf("decode event meta: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// extended result codes may be off, in which case only the primary code is reported
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT
}
