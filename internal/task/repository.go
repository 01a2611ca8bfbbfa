package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type TaskRepository struct {
	db *sql.DB
}

// TaskRepositoryInterface is the owner-scoped task store. Every query that
// touches an existing row filters on both id and user_id.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, userID int, title, description string) (*Task, error)
	ListByUser(ctx context.Context, userID int) ([]*Task, error)
	Update(ctx context.Context, taskID, userID int, title, description string, done bool) (*Task, error)
	Delete(ctx context.Context, taskID, userID int) (bool, error)
	RecordEvent(ctx context.Context, event *TaskEvent) error
}

//go:generate mockgen -source=repository.go -destination=mock_repository_test.go -package=task

func NewTaskRepository(db *sql.DB) TaskRepositoryInterface {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(
	ctx context.Context,
	userID int,
	title, description string,
) (*Task, error) {
	query := `
		INSERT INTO tasks (
			user_id, title, description
		)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, title, description, done, created_at
	`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, userID, title, description))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return t, nil
}

func (r *TaskRepository) ListByUser(
	ctx context.Context,
	userID int,
) ([]*Task, error) {
	query := `
		SELECT
			id, user_id, title, description, done, created_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Error scanning task row")
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// Update returns ErrTaskNotFound when no task with taskID belongs to userID.
func (r *TaskRepository) Update(
	ctx context.Context,
	taskID, userID int,
	title, description string,
	done bool,
) (*Task, error) {
	query := `
		UPDATE tasks
		SET title = $1,
		    description = $2,
		    done = $3
		WHERE id = $4 AND user_id = $5
		RETURNING id, user_id, title, description, done, created_at
	`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, title, description, done, taskID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	return t, nil
}

// Delete reports whether a row was removed.
func (r *TaskRepository) Delete(
	ctx context.Context,
	taskID, userID int,
) (bool, error) {
	query := `
		DELETE FROM tasks
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *TaskRepository) RecordEvent(
	ctx context.Context,
	event *TaskEvent,
) error {
	query := `
		INSERT INTO task_events (
			task_id, user_id, event_type, occurred_at
		)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.ExecContext(ctx, query, event.TaskID, event.UserID, string(event.Type), event.OccurredAt); err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Done,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
