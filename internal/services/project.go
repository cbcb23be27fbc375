package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/events"
	"github.com/taskhive/apiserver/types"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Project, int, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// ProjectService encapsulates project use-cases. Every method takes the
// caller explicitly; there is no ambient identity.
type ProjectService struct {
	repo      ProjectRepository
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewProjectService(repo ProjectRepository, publisher *events.Publisher, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{repo: repo, publisher: publisher, logger: logger}
}

// List returns projects visible to the caller. All authenticated roles see
// every project.
func (s *ProjectService) List(ctx context.Context, caller types.User, offset, limit int) ([]types.Project, int, error) {
	if !access.Can(caller.Role, access.OpViewProjects) {
		return nil, 0, access.ErrForbidden
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *ProjectService) Get(ctx context.Context, caller types.User, id int) (types.Project, error) {
	if !access.Can(caller.Role, access.OpViewProjects) {
		return types.Project{}, access.ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// ProjectInput is the payload for project creation and update.
type ProjectInput struct {
	Title       string
	Description string
	Status      types.ProjectStatus
}

func (in *ProjectInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = types.ProjectActive
	}
	if _, err := types.ParseProjectStatus(string(in.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Create makes a new project owned by the caller. Manager or admin only.
func (s *ProjectService) Create(ctx context.Context, caller types.User, input ProjectInput) (types.Project, error) {
	if !access.Can(caller.Role, access.OpCreateProject) {
		return types.Project{}, access.ErrForbidden
	}
	if err := input.validate(); err != nil {
		return types.Project{}, err
	}

	return s.repo.Create(ctx, types.Project{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		CreatedBy:   caller.ID,
	})
}

// Update rewrites a project's mutable fields. Manager or admin only. The
// owner reference never changes.
func (s *ProjectService) Update(ctx context.Context, caller types.User, id int, input ProjectInput) (types.Project, error) {
	if !access.Can(caller.Role, access.OpUpdateProject) {
		return types.Project{}, access.ErrForbidden
	}
	if err := input.validate(); err != nil {
		return types.Project{}, err
	}

	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	project.Title = input.Title
	project.Description = input.Description
	project.Status = input.Status
	return s.repo.Update(ctx, project)
}

// Delete removes a project and, through the schema's cascade rules, all of
// its tasks, comments and attachment rows. Admin only.
func (s *ProjectService) Delete(ctx context.Context, caller types.User, id int) error {
	if !access.Can(caller.Role, access.OpDeleteProject) {
		return access.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.ChannelProjectDeleted, events.Event{
		ProjectID: id,
		ActorID:   caller.ID,
	}); err != nil {
		s.logger.Warn("publish project.deleted failed", "project_id", id, "error", err)
	}
	return nil
}
