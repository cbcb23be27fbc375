package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByTask(ctx context.Context, taskID int) ([]types.Comment, error)
	Get(ctx context.Context, id int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, id int) error
}

// CommentService encapsulates comment use-cases. Reading or writing
// comments requires the parent task to be visible to the caller.
type CommentService struct {
	repo  CommentRepository
	tasks TaskRepository
}

func NewCommentService(repo CommentRepository, tasks TaskRepository) *CommentService {
	return &CommentService{repo: repo, tasks: tasks}
}

// ListByTask returns a task's comments.
func (s *CommentService) ListByTask(ctx context.Context, caller types.User, taskID int) ([]types.Comment, error) {
	if err := s.requireVisibleTask(ctx, caller, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListByTask(ctx, taskID)
}

// Create adds a comment authored by the caller. Any authenticated identity
// may comment on a task it can see.
func (s *CommentService) Create(ctx context.Context, caller types.User, taskID int, content string) (types.Comment, error) {
	if !access.Can(caller.Role, access.OpCreateComment) {
		return types.Comment{}, access.ErrForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Comment{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if err := s.requireVisibleTask(ctx, caller, taskID); err != nil {
		return types.Comment{}, err
	}

	return s.repo.Create(ctx, types.Comment{
		TaskID:   taskID,
		AuthorID: caller.ID,
		Content:  content,
	})
}

// Update edits a comment's content. Author or admin only.
func (s *CommentService) Update(ctx context.Context, caller types.User, id int, content string) (types.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Comment{}, fmt.Errorf("%w: content is required", ErrValidation)
	}

	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Comment{}, err
	}
	if !access.CanEditComment(caller, comment) {
		return types.Comment{}, access.ErrForbidden
	}

	comment.Content = content
	return s.repo.Update(ctx, comment)
}

// Delete removes a comment. Author or admin only.
func (s *CommentService) Delete(ctx context.Context, caller types.User, id int) error {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanEditComment(caller, comment) {
		return access.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func (s *CommentService) requireVisibleTask(ctx context.Context, caller types.User, taskID int) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !access.CanSeeTask(caller, task) {
		return store.ErrNotFound
	}
	return nil
}
