package types

import "time"

// Comment represents a note left on a task. Deleting the task deletes its
// comments.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// TaskID identifies the task the comment belongs to.
	TaskID int `json:"task_id" db:"task_id"`

	// AuthorID identifies the user who wrote the comment.
	AuthorID int `json:"author_id" db:"author_id"`

	// Content is the comment text.
	Content string `json:"content" db:"content"`

	// CreatedAt is the timestamp when the comment was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit to the comment.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
