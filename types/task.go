package types

import (
	"fmt"
	"time"
)

// TaskStatus is the workflow state of a task. The states are ordered
// todo -> in_progress -> review -> done, but the system does not force
// sequential transitions: a manager or admin may set any status through a
// general update. Only the transition to done is governed; see the access
// package.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// ParseTaskStatus validates a raw task status value.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(raw)
	switch status {
	case TaskTodo, TaskInProgress, TaskReview, TaskDone:
		return status, nil
	default:
		return "", fmt.Errorf("unknown task status %q", raw)
	}
}

// TaskPriority is the relative urgency of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// ParseTaskPriority validates a raw task priority value.
func ParseTaskPriority(raw string) (TaskPriority, error) {
	priority := TaskPriority(raw)
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return priority, nil
	default:
		return "", fmt.Errorf("unknown task priority %q", raw)
	}
}

// Task represents a unit of work inside a project.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the task.
	Title string `json:"title" db:"title"`

	// Description is free text describing the task.
	Description string `json:"description" db:"description"`

	// ProjectID identifies the project the task belongs to. Deleting the
	// project deletes the task.
	ProjectID int `json:"project_id" db:"project_id"`

	// AssignedTo identifies the user the task is delegated to. It is nil
	// for unassigned tasks, and becomes nil if the assignee account is
	// deleted; the task itself survives.
	AssignedTo *int `json:"assigned_to" db:"assigned_to"`

	// Priority is the relative urgency of the task.
	Priority TaskPriority `json:"priority" db:"priority"`

	// Status is the workflow state of the task.
	Status TaskStatus `json:"status" db:"status"`

	// DueDate is the optional date the task is expected to be done by.
	DueDate *time.Time `json:"due_date" db:"due_date"`

	// CreatedBy identifies the manager or admin who created the task.
	CreatedBy int `json:"created_by" db:"created_by"`

	// CreatedAt is the timestamp at which the task was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsOverdue reports whether the task has a due date in the past and is not
// done. The result is derived and never persisted.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskDone {
		return false
	}
	today := now.Truncate(24 * time.Hour)
	return t.DueDate.Before(today)
}

// IsAssignedTo reports whether the task is assigned to the given user.
func (t Task) IsAssignedTo(userID int) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
