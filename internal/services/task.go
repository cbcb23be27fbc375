package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/events"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context) ([]types.Task, error)
	ListAssignedTo(ctx context.Context, userID int) ([]types.Task, error)
	ListByProject(ctx context.Context, projectID int) ([]types.Task, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
	CountByStatus(ctx context.Context, assignedTo int) (map[types.TaskStatus]int, error)
}

// TaskService is the task lifecycle controller. It owns the visibility
// filter on reads and the completion rule, and gates mutations on the
// caller's role. Every method takes the caller explicitly.
type TaskService struct {
	repo      TaskRepository
	projects  ProjectRepository
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewTaskService(repo TaskRepository, projects ProjectRepository, publisher *events.Publisher, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{repo: repo, projects: projects, publisher: publisher, logger: logger}
}

// TaskListing is a scoped task collection with per-status counters over the
// same scope.
type TaskListing struct {
	Tasks  []types.Task             `json:"tasks"`
	Counts map[types.TaskStatus]int `json:"counts"`
}

// List returns the tasks visible to the caller: everything for managers and
// admins, only their own assignments for plain users. Both the API and the
// page adapter go through here, so the two paths cannot diverge.
func (s *TaskService) List(ctx context.Context, caller types.User) (TaskListing, error) {
	if !access.Can(caller.Role, access.OpViewProjects) {
		return TaskListing{}, access.ErrForbidden
	}

	var tasks []types.Task
	var err error
	scope := 0
	if caller.Role.ManagerOrAbove() {
		tasks, err = s.repo.List(ctx)
	} else {
		scope = caller.ID
		tasks, err = s.repo.ListAssignedTo(ctx, caller.ID)
	}
	if err != nil {
		return TaskListing{}, err
	}

	counts, err := s.repo.CountByStatus(ctx, scope)
	if err != nil {
		return TaskListing{}, err
	}
	return TaskListing{Tasks: tasks, Counts: counts}, nil
}

// ListByProject returns a project's tasks, scoped like List.
func (s *TaskService) ListByProject(ctx context.Context, caller types.User, projectID int) ([]types.Task, error) {
	if !access.Can(caller.Role, access.OpViewProjects) {
		return nil, access.ErrForbidden
	}
	tasks, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if caller.Role.ManagerOrAbove() {
		return tasks, nil
	}
	visible := make([]types.Task, 0, len(tasks))
	for _, task := range tasks {
		if access.CanSeeTask(caller, task) {
			visible = append(visible, task)
		}
	}
	return visible, nil
}

// Get returns a single task. A task outside the caller's visibility scope
// is reported as not found, so a plain user cannot probe for the existence
// of other people's tasks.
func (s *TaskService) Get(ctx context.Context, caller types.User, id int) (types.Task, error) {
	if !access.Can(caller.Role, access.OpViewProjects) {
		return types.Task{}, access.ErrForbidden
	}
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if !access.CanSeeTask(caller, task) {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

// TaskInput is the payload for task creation and update.
type TaskInput struct {
	Title       string
	Description string
	ProjectID   int
	AssignedTo  *int
	Priority    types.TaskPriority
	Status      types.TaskStatus
	DueDate     *time.Time
}

func (in *TaskInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Priority == "" {
		in.Priority = types.PriorityMedium
	}
	if _, err := types.ParseTaskPriority(string(in.Priority)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.Status == "" {
		in.Status = types.TaskTodo
	}
	if _, err := types.ParseTaskStatus(string(in.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Create makes a new task in an existing project. Manager or admin only.
func (s *TaskService) Create(ctx context.Context, caller types.User, input TaskInput) (types.Task, error) {
	if !access.Can(caller.Role, access.OpCreateTask) {
		return types.Task{}, access.ErrForbidden
	}
	if err := input.validate(); err != nil {
		return types.Task{}, err
	}

	if _, err := s.projects.Get(ctx, input.ProjectID); err != nil {
		return types.Task{}, err
	}

	task, err := s.repo.Create(ctx, types.Task{
		Title:       input.Title,
		Description: input.Description,
		ProjectID:   input.ProjectID,
		AssignedTo:  input.AssignedTo,
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     input.DueDate,
		CreatedBy:   caller.ID,
	})
	if err != nil {
		return types.Task{}, err
	}

	if task.AssignedTo != nil {
		s.publish(ctx, events.ChannelTaskAssigned, task, caller)
	}
	return task, nil
}

// Update rewrites a task's mutable fields, including setting any status
// directly. Manager or admin only; the governed done-transition for plain
// users lives in Complete.
func (s *TaskService) Update(ctx context.Context, caller types.User, id int, input TaskInput) (types.Task, error) {
	if !access.Can(caller.Role, access.OpUpdateTask) {
		return types.Task{}, access.ErrForbidden
	}
	if err := input.validate(); err != nil {
		return types.Task{}, err
	}

	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}

	reassigned := input.AssignedTo != nil &&
		(task.AssignedTo == nil || *task.AssignedTo != *input.AssignedTo)

	task.Title = input.Title
	task.Description = input.Description
	task.AssignedTo = input.AssignedTo
	task.Priority = input.Priority
	task.Status = input.Status
	task.DueDate = input.DueDate

	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		return types.Task{}, err
	}
	if reassigned {
		s.publish(ctx, events.ChannelTaskAssigned, updated, caller)
	}
	return updated, nil
}

// Delete removes a task and its comments and attachments. Manager or admin
// only.
func (s *TaskService) Delete(ctx context.Context, caller types.User, id int) error {
	if !access.Can(caller.Role, access.OpDeleteTask) {
		return access.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Complete marks a task done. This is the one governed transition: the
// assignee may complete their own not-yet-done task; a manager or admin may
// force-complete any task, including an already done one (the status simply
// stays done). Any other caller gets ErrForbidden, which is deliberately
// distinguishable from a missing task.
func (s *TaskService) Complete(ctx context.Context, caller types.User, id int) (types.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}

	if !access.CanCompleteTask(caller, task) {
		return types.Task{}, access.ErrForbidden
	}

	task.Status = types.TaskDone
	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		return types.Task{}, err
	}

	s.publish(ctx, events.ChannelTaskCompleted, updated, caller)
	return updated, nil
}

func (s *TaskService) publish(ctx context.Context, channel string, task types.Task, caller types.User) {
	err := s.publisher.Publish(ctx, channel, events.Event{
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		ActorID:   caller.ID,
	})
	if err != nil {
		s.logger.Warn("publish event failed", "channel", channel, "task_id", task.ID, "error", err)
	}
}
