package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

const taskColumns = `id, title, description, project_id, assigned_to, priority, status, due_date, created_by, created_at, updated_at`

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (types.Task, error) {
	var task types.Task
	var assignedTo sql.NullInt64
	var dueDate sql.NullTime
	if err := scanner.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.ProjectID,
		&assignedTo,
		&task.Priority,
		&task.Status,
		&dueDate,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return types.Task{}, err
	}
	if assignedTo.Valid {
		id := int(assignedTo.Int64)
		task.AssignedTo = &id
	}
	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}
	return task, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]types.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// List returns every task, unscoped. Callers that serve plain users must
// use ListAssignedTo instead.
func (r *TaskRepository) List(ctx context.Context) ([]types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		ORDER BY id`
	return r.queryTasks(ctx, query)
}

// ListAssignedTo returns only the tasks assigned to the given user.
func (r *TaskRepository) ListAssignedTo(ctx context.Context, userID int) ([]types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = $1
		ORDER BY id`
	return r.queryTasks(ctx, query, userID)
}

// ListByProject returns the tasks belonging to a project.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int) ([]types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE project_id = $1
		ORDER BY id`
	return r.queryTasks(ctx, query, projectID)
}

func (r *TaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (title, description, project_id, assigned_to, priority, status, due_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.ProjectID,
		nullableInt(task.AssignedTo),
		task.Priority,
		task.Status,
		nullableTime(task.DueDate),
		task.CreatedBy,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now()

	const query = `
		UPDATE tasks
		SET title = $1,
			description = $2,
			assigned_to = $3,
			priority = $4,
			status = $5,
			due_date = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		nullableInt(task.AssignedTo),
		task.Priority,
		task.Status,
		nullableTime(task.DueDate),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return types.Task{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, err
	}
	if affected == 0 {
		return types.Task{}, ErrNotFound
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of tasks per status for the given task
// set scope: pass a user ID to scope to their assignments, or 0 for all.
func (r *TaskRepository) CountByStatus(ctx context.Context, assignedTo int) (map[types.TaskStatus]int, error) {
	query := `SELECT status, COUNT(1) FROM tasks GROUP BY status`
	args := []any{}
	if assignedTo > 0 {
		query = `SELECT status, COUNT(1) FROM tasks WHERE assigned_to = $1 GROUP BY status`
		args = append(args, assignedTo)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.TaskStatus]int)
	for rows.Next() {
		var status types.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullableTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
