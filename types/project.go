package types

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
)

// ParseProjectStatus validates a raw project status value.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	status := ProjectStatus(raw)
	switch status {
	case ProjectActive, ProjectCompleted, ProjectOnHold:
		return status, nil
	default:
		return "", fmt.Errorf("unknown project status %q", raw)
	}
}

// Project represents a container for tasks. Deleting a project deletes its
// tasks and everything the tasks own.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the project.
	Title string `json:"title" db:"title"`

	// Description is free text describing the project.
	Description string `json:"description" db:"description"`

	// Status is the project lifecycle state.
	Status ProjectStatus `json:"status" db:"status"`

	// CreatedBy identifies the user who created the project. It is set
	// once at creation and never changes.
	CreatedBy int `json:"created_by" db:"created_by"`

	// CreatedAt is the timestamp at which the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the project.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
