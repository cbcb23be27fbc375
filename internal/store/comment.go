package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

// CommentRepository handles persistence for task comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID int) ([]types.Comment, error) {
	const query = `
		SELECT id, task_id, author_id, content, created_at, updated_at
		FROM comments
		WHERE task_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TaskID,
			&comment.AuthorID,
			&comment.Content,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (r *CommentRepository) Get(ctx context.Context, id int) (types.Comment, error) {
	const query = `
		SELECT id, task_id, author_id, content, created_at, updated_at
		FROM comments
		WHERE id = $1`
	var comment types.Comment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID,
		&comment.TaskID,
		&comment.AuthorID,
		&comment.Content,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	const query = `
		INSERT INTO comments (task_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.TaskID,
		comment.AuthorID,
		comment.Content,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.UpdatedAt = time.Now()

	const query = `
		UPDATE comments
		SET content = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, comment.Content, comment.UpdatedAt, comment.ID)
	if err != nil {
		return types.Comment{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Comment{}, err
	}
	if affected == 0 {
		return types.Comment{}, ErrNotFound
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM comments WHERE id = $1`
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
