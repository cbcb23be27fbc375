package services

import (
	"context"
	"errors"
	"testing"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/events"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

func newProjectService(repo *fakeProjectRepo) (*ProjectService, *recordingBackend) {
	backend := &recordingBackend{}
	svc := NewProjectService(repo, events.NewPublisher(backend), nil)
	return svc, backend
}

func TestProjectCreate(t *testing.T) {
	svc, _ := newProjectService(newFakeProjectRepo())
	ctx := context.Background()

	if _, err := svc.Create(ctx, testUser, ProjectInput{Title: "p"}); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("create as user = %v, want forbidden", err)
	}

	if _, err := svc.Create(ctx, testManager, ProjectInput{Title: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty title = %v, want validation error", err)
	}

	if _, err := svc.Create(ctx, testManager, ProjectInput{Title: "p", Status: "archived"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status = %v, want validation error", err)
	}

	project, err := svc.Create(ctx, testManager, ProjectInput{Title: "p"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Status != types.ProjectActive {
		t.Fatalf("status = %q, want active default", project.Status)
	}
	if project.CreatedBy != testManager.ID {
		t.Fatalf("creator = %d, want %d", project.CreatedBy, testManager.ID)
	}
}

func TestProjectUpdateKeepsCreator(t *testing.T) {
	repo := newFakeProjectRepo(types.Project{ID: 1, Title: "p", Status: types.ProjectActive, CreatedBy: testManager.ID})
	svc, _ := newProjectService(repo)
	ctx := context.Background()

	updated, err := svc.Update(ctx, testAdmin, 1, ProjectInput{Title: "renamed", Status: types.ProjectOnHold})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "renamed" || updated.Status != types.ProjectOnHold {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.CreatedBy != testManager.ID {
		t.Fatalf("creator changed to %d", updated.CreatedBy)
	}
}

func TestProjectDeleteAdminOnly(t *testing.T) {
	repo := newFakeProjectRepo(types.Project{ID: 1, Title: "p"})
	svc, backend := newProjectService(repo)
	ctx := context.Background()

	if err := svc.Delete(ctx, testManager, 1); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("delete as manager = %v, want forbidden", err)
	}
	if err := svc.Delete(ctx, testAdmin, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("project should be gone")
	}
	if len(backend.channels) != 1 || backend.channels[0] != events.ChannelProjectDeleted {
		t.Fatalf("expected project.deleted event, got %v", backend.channels)
	}
}

func TestProjectListClampsLimit(t *testing.T) {
	repo := newFakeProjectRepo()
	for i := 0; i < 5; i++ {
		_, _ = repo.Create(context.Background(), types.Project{Title: "p"})
	}
	svc, _ := newProjectService(repo)

	projects, total, err := svc.List(context.Background(), testUser, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(projects) != 5 {
		t.Fatalf("got %d/%d, want 5/5", len(projects), total)
	}

	projects, _, err = svc.List(context.Background(), testUser, 3, 10)
	if err != nil {
		t.Fatalf("list with offset: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("got %d projects after offset, want 2", len(projects))
	}
}
