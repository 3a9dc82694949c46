package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"estate-listings/models"
)

const taskColumns = `id, name, queue, payload, status, attempts, max_retries,
	last_error, result, run_at, created_at, updated_at`

// PostgresQueue is a task queue kept in the tasks table. Workers claim rows with
// FOR UPDATE SKIP LOCKED so they never wait on each other; a running task whose
// lock is older than the visibility timeout is handed out again.
type PostgresQueue struct {
	db                *sql.DB
	visibilityTimeout time.Duration
}

// NewPostgresQueue wraps an open pool, creating the tasks table if needed.
func NewPostgresQueue(ctx context.Context, db *sql.DB, visibilityTimeout time.Duration) (*PostgresQueue, error) {
	q := &PostgresQueue{db: db, visibilityTimeout: visibilityTimeout}
	if err := q.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate tasks: %w", err)
	}
	return q, nil
}

func (q *PostgresQueue) migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id          UUID PRIMARY KEY,
			name        TEXT        NOT NULL,
			queue       TEXT        NOT NULL,
			payload     JSONB       NOT NULL,
			status      TEXT        NOT NULL DEFAULT 'queued',
			attempts    INT         NOT NULL DEFAULT 0,
			max_retries INT         NOT NULL DEFAULT 3,
			last_error  TEXT,
			result      JSONB,
			run_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			locked_at   TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks(queue, status, run_at);
	`)
	return err
}

// Enqueue stores a new task. ID, Queue and RunAt must already be set. A task
// whose id is already stored is left untouched.
func (q *PostgresQueue) Enqueue(ctx context.Context, t *models.Task) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, queue, payload, status, attempts, max_retries, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.Name, t.Queue, string(t.Payload), models.TaskQueued, t.Attempts, t.MaxRetries, t.RunAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: enqueue %s: %w", t.Name, err)
	}
	t.Status = models.TaskQueued
	return nil
}

// Claim marks up to limit due tasks from the given queues as running and returns them.
// Taking over a running task whose lock expired counts as an attempt, so a task
// that keeps killing its worker still runs out of retries.
func (q *PostgresQueue) Claim(ctx context.Context, queues []string, limit int) ([]*models.Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := q.db.QueryContext(ctx, `
		UPDATE tasks SET
			attempts = attempts + CASE WHEN status = 'running' THEN 1 ELSE 0 END,
			status = 'running', locked_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE queue = ANY($1)
			  AND ((status = 'queued' AND run_at <= NOW())
			    OR (status = 'running' AND locked_at < NOW() - make_interval(secs => $3)))
			ORDER BY run_at
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		RETURNING `+taskColumns,
		pq.Array(queues), limit, q.visibilityTimeout.Seconds())
	if err != nil {
		return nil, fmt.Errorf("postgres: claim tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Complete records a successful run.
func (q *PostgresQueue) Complete(ctx context.Context, id string, result []byte) error {
	return q.finish(ctx, id, models.TaskSucceeded, nil, result)
}

// Fail records a terminal failure. The task is not requeued.
func (q *PostgresQueue) Fail(ctx context.Context, id string, errMsg string, result []byte) error {
	return q.finish(ctx, id, models.TaskFailed, &errMsg, result)
}

func (q *PostgresQueue) finish(ctx context.Context, id string, status models.TaskStatus, errMsg *string, result []byte) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $2, last_error = COALESCE($3, last_error), result = $4,
		    locked_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, status, errMsg, nullJSON(result))
	if err != nil {
		return fmt.Errorf("postgres: finish task %s: %w", id, err)
	}
	return nil
}

// Retry puts the task back on its queue, due at runAt, and counts the attempt.
func (q *PostgresQueue) Retry(ctx context.Context, id string, errMsg string, runAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'queued', attempts = attempts + 1, last_error = $2,
		    run_at = $3, locked_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, errMsg, runAt)
	if err != nil {
		return fmt.Errorf("postgres: retry task %s: %w", id, err)
	}
	return nil
}

// Get fetches a task by id.
func (q *PostgresQueue) Get(ctx context.Context, id string) (*models.Task, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t         models.Task
		status    string
		payload   []byte
		result    []byte
		lastError sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.Queue, &payload, &status, &t.Attempts, &t.MaxRetries,
		&lastError, &result, &t.RunAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres: scan task: %w", err)
	}
	t.Status = models.TaskStatus(status)
	t.Payload = payload
	t.Result = result
	t.LastError = nullString(lastError)
	return &t, nil
}

// nullJSON passes JSON as text; lib/pq would encode a []byte as bytea.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
