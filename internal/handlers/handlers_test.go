package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

const testSecret = "test-secret"

type memUserRepo struct {
	users  map[int]types.User
	nextID int
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) List(ctx context.Context) ([]types.User, error) {
	out := make([]types.User, 0, len(r.users))
	for id := 1; id < r.nextID; id++ {
		if user, ok := r.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *memUserRepo) CountByRole(ctx context.Context) (map[types.Role]int, error) {
	counts := make(map[types.Role]int)
	for _, user := range r.users {
		counts[user.Role]++
	}
	return counts, nil
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memProjectRepo struct {
	projects map[int]types.Project
	nextID   int
}

func (r *memProjectRepo) List(ctx context.Context, offset, limit int) ([]types.Project, int, error) {
	out := make([]types.Project, 0, len(r.projects))
	for id := 1; id < r.nextID; id++ {
		if project, ok := r.projects[id]; ok {
			out = append(out, project)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memProjectRepo) Get(ctx context.Context, id int) (types.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return project, nil
}

func (r *memProjectRepo) Create(ctx context.Context, project types.Project) (types.Project, error) {
	project.ID = r.nextID
	r.nextID++
	r.projects[project.ID] = project
	return project, nil
}

func (r *memProjectRepo) Update(ctx context.Context, project types.Project) (types.Project, error) {
	if _, ok := r.projects[project.ID]; !ok {
		return types.Project{}, store.ErrNotFound
	}
	r.projects[project.ID] = project
	return project, nil
}

func (r *memProjectRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

type memTaskRepo struct {
	tasks  map[int]types.Task
	nextID int
}

func (r *memTaskRepo) List(ctx context.Context) ([]types.Task, error) {
	out := make([]types.Task, 0, len(r.tasks))
	for id := 1; id < r.nextID; id++ {
		if task, ok := r.tasks[id]; ok {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *memTaskRepo) ListAssignedTo(ctx context.Context, userID int) ([]types.Task, error) {
	all, _ := r.List(ctx)
	out := make([]types.Task, 0, len(all))
	for _, task := range all {
		if task.IsAssignedTo(userID) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *memTaskRepo) ListByProject(ctx context.Context, projectID int) ([]types.Task, error) {
	all, _ := r.List(ctx)
	out := make([]types.Task, 0, len(all))
	for _, task := range all {
		if task.ProjectID == projectID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *memTaskRepo) Get(ctx context.Context, id int) (types.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (r *memTaskRepo) Create(ctx context.Context, task types.Task) (types.Task, error) {
	task.ID = r.nextID
	r.nextID++
	r.tasks[task.ID] = task
	return task, nil
}

func (r *memTaskRepo) Update(ctx context.Context, task types.Task) (types.Task, error) {
	if _, ok := r.tasks[task.ID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *memTaskRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) CountByStatus(ctx context.Context, assignedTo int) (map[types.TaskStatus]int, error) {
	counts := make(map[types.TaskStatus]int)
	for _, task := range r.tasks {
		if assignedTo != 0 && !task.IsAssignedTo(assignedTo) {
			continue
		}
		counts[task.Status]++
	}
	return counts, nil
}

type memCommentRepo struct {
	comments map[int]types.Comment
	nextID   int
}

func (r *memCommentRepo) ListByTask(ctx context.Context, taskID int) ([]types.Comment, error) {
	out := make([]types.Comment, 0, len(r.comments))
	for id := 1; id < r.nextID; id++ {
		if comment, ok := r.comments[id]; ok && comment.TaskID == taskID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (r *memCommentRepo) Get(ctx context.Context, id int) (types.Comment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	return comment, nil
}

func (r *memCommentRepo) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.ID = r.nextID
	r.nextID++
	r.comments[comment.ID] = comment
	return comment, nil
}

func (r *memCommentRepo) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	if _, ok := r.comments[comment.ID]; !ok {
		return types.Comment{}, store.ErrNotFound
	}
	r.comments[comment.ID] = comment
	return comment, nil
}

func (r *memCommentRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

// env bundles the fakes and the router for a handler test.
type env struct {
	users    *memUserRepo
	projects *memProjectRepo
	tasks    *memTaskRepo
	comments *memCommentRepo
	router   *chi.Mux
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		users:    &memUserRepo{users: make(map[int]types.User), nextID: 1},
		projects: &memProjectRepo{projects: make(map[int]types.Project), nextID: 1},
		tasks:    &memTaskRepo{tasks: make(map[int]types.Task), nextID: 1},
		comments: &memCommentRepo{comments: make(map[int]types.Comment), nextID: 1},
	}

	userService := services.NewUserService(e.users)
	projectService := services.NewProjectService(e.projects, nil, nil)
	taskService := services.NewTaskService(e.tasks, e.projects, nil, nil)
	commentService := services.NewCommentService(e.comments, e.tasks)

	authMiddleware := RequireAuth(testSecret)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, authMiddleware)
	})
	router.Route("/projects", func(r chi.Router) {
		ProjectRouter(r, projectService, taskService, userService, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		TaskRouter(r, taskService, commentService, nil, userService, authMiddleware)
	})
	router.Route("/comments", func(r chi.Router) {
		CommentRouter(r, commentService, userService, authMiddleware)
	})

	e.router = router
	return e
}

// addUser seeds an account directly and returns it with a valid token.
func (e *env) addUser(t *testing.T, username string, role types.Role) (types.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.users.Create(context.Background(), types.User{
		Username:     username,
		Email:        username + "@example.com",
		Name:         username,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	token, err := issueToken(user.ID, []byte(testSecret), defaultTokenTTL)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRegisterIgnoresRequestedRole(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":         "mallory",
		"email":            "mallory@example.com",
		"name":             "Mallory",
		"password":         "password1",
		"password_confirm": "password1",
		"role":             "admin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[AuthResponse](t, rec)
	if resp.User.Role != types.RoleUser {
		t.Fatalf("registered role = %q, want user", resp.User.Role)
	}
	if resp.Token == "" {
		t.Fatal("missing token")
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "taken", types.RoleUser)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":         "taken",
		"email":            "x@example.com",
		"name":             "X",
		"password":         "password1",
		"password_confirm": "password1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username status = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":         "new",
		"email":            "new@example.com",
		"name":             "New",
		"password":         "password1",
		"password_confirm": "different",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("password mismatch status = %d, want 400", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice", types.RoleUser)

	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "password1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "password1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want 401", rec.Code)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	e := newEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/tasks/"},
		{http.MethodGet, "/projects/"},
		{http.MethodGet, "/users/"},
		{http.MethodGet, "/auth/me"},
	}
	for _, p := range paths {
		rec := e.do(t, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token = %d, want 401", p.method, p.path, rec.Code)
		}
	}

	rec := e.do(t, http.MethodGet, "/tasks/", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d, want 401", rec.Code)
	}
}

func TestTaskEndpointsEnforceRoles(t *testing.T) {
	e := newEnv(t)
	_, managerToken := e.addUser(t, "manager", types.RoleManager)
	user, userToken := e.addUser(t, "alice", types.RoleUser)

	rec := e.do(t, http.MethodPost, "/projects/", managerToken, map[string]string{"title": "Website"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project = %d: %s", rec.Code, rec.Body.String())
	}
	project := decode[types.Project](t, rec)

	rec = e.do(t, http.MethodPost, "/tasks/", userToken, map[string]any{
		"title":      "sneaky",
		"project_id": project.ID,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user create task = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/tasks/", managerToken, map[string]any{
		"title":       "Draft landing page",
		"project_id":  project.ID,
		"assigned_to": user.ID,
		"due_date":    "2026-12-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task = %d: %s", rec.Code, rec.Body.String())
	}
	task := decode[TaskResponse](t, rec)

	rec = e.do(t, http.MethodPost, "/tasks/", managerToken, map[string]any{
		"title":      "bad date",
		"project_id": project.ID,
		"due_date":   "tomorrow",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad due_date = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("assignee get = %d: %s", rec.Code, rec.Body.String())
	}

	// A task assigned to someone else reads as missing for a plain user.
	rec = e.do(t, http.MethodPost, "/tasks/", managerToken, map[string]any{
		"title":      "Other work",
		"project_id": project.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create second task = %d", rec.Code)
	}
	other := decode[TaskResponse](t, rec)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/tasks/%d", other.ID), userToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("invisible task get = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/tasks/", userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list tasks = %d", rec.Code)
	}
	listing := decode[TaskListResponse](t, rec)
	if len(listing.Items) != 1 {
		t.Fatalf("user sees %d tasks, want 1", len(listing.Items))
	}
}

func TestCompleteTaskEndpoint(t *testing.T) {
	e := newEnv(t)
	_, managerToken := e.addUser(t, "manager", types.RoleManager)
	user, userToken := e.addUser(t, "alice", types.RoleUser)
	_, otherToken := e.addUser(t, "bob", types.RoleUser)

	rec := e.do(t, http.MethodPost, "/projects/", managerToken, map[string]string{"title": "p"})
	project := decode[types.Project](t, rec)

	rec = e.do(t, http.MethodPost, "/tasks/", managerToken, map[string]any{
		"title":       "t",
		"project_id":  project.ID,
		"assigned_to": user.ID,
		"status":      "in_progress",
	})
	task := decode[TaskResponse](t, rec)
	completePath := fmt.Sprintf("/tasks/%d/complete", task.ID)

	rec = e.do(t, http.MethodPost, completePath, otherToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-assignee complete = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPost, completePath, userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("assignee complete = %d: %s", rec.Code, rec.Body.String())
	}
	done := decode[TaskResponse](t, rec)
	if done.Status != types.TaskDone {
		t.Fatalf("status = %q, want done", done.Status)
	}

	rec = e.do(t, http.MethodPost, completePath, userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("repeat complete = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPost, completePath, managerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager force-complete = %d, want 200", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/tasks/999/complete", managerToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing task complete = %d, want 404", rec.Code)
	}
}

func TestUserAdminEndpoints(t *testing.T) {
	e := newEnv(t)
	_, adminToken := e.addUser(t, "admin", types.RoleAdmin)
	user, userToken := e.addUser(t, "alice", types.RoleUser)

	rec := e.do(t, http.MethodGet, "/users/", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("list users as user = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/users/", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users as admin = %d: %s", rec.Code, rec.Body.String())
	}
	listing := decode[UserListResponse](t, rec)
	if len(listing.Users) != 2 {
		t.Fatalf("got %d users, want 2", len(listing.Users))
	}
	if listing.Counts[types.RoleAdmin] != 1 || listing.Counts[types.RoleUser] != 1 {
		t.Fatalf("unexpected counts: %v", listing.Counts)
	}
	body := rec.Body.String()
	if strings.Contains(body, "password_hash") || strings.Contains(body, "$2a$") {
		t.Fatal("password hash leaked in response")
	}

	rolePath := fmt.Sprintf("/users/%d/role", user.ID)
	rec = e.do(t, http.MethodPut, rolePath, userToken, map[string]string{"role": "admin"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self promote = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPut, rolePath, adminToken, map[string]string{"role": "manager"})
	if rec.Code != http.StatusOK {
		t.Fatalf("change role = %d: %s", rec.Code, rec.Body.String())
	}
	changed := decode[types.User](t, rec)
	if changed.Role != types.RoleManager {
		t.Fatalf("role = %q, want manager", changed.Role)
	}

	rec = e.do(t, http.MethodPut, rolePath, adminToken, map[string]string{"role": "root"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown role = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", user.ID), adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete user = %d, want 204", rec.Code)
	}
}

func TestProjectDeleteAdminOnly(t *testing.T) {
	e := newEnv(t)
	_, adminToken := e.addUser(t, "admin", types.RoleAdmin)
	_, managerToken := e.addUser(t, "manager", types.RoleManager)

	rec := e.do(t, http.MethodPost, "/projects/", managerToken, map[string]string{"title": "p"})
	project := decode[types.Project](t, rec)

	path := fmt.Sprintf("/projects/%d", project.ID)
	rec = e.do(t, http.MethodDelete, path, managerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager delete project = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, path, adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete project = %d, want 204", rec.Code)
	}

	rec = e.do(t, http.MethodGet, path, adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted project get = %d, want 404", rec.Code)
	}
}

func TestCommentEndpoints(t *testing.T) {
	e := newEnv(t)
	_, managerToken := e.addUser(t, "manager", types.RoleManager)
	user, userToken := e.addUser(t, "alice", types.RoleUser)

	rec := e.do(t, http.MethodPost, "/projects/", managerToken, map[string]string{"title": "p"})
	project := decode[types.Project](t, rec)

	rec = e.do(t, http.MethodPost, "/tasks/", managerToken, map[string]any{
		"title":       "t",
		"project_id":  project.ID,
		"assigned_to": user.ID,
	})
	task := decode[TaskResponse](t, rec)

	commentsPath := fmt.Sprintf("/tasks/%d/comments", task.ID)
	rec = e.do(t, http.MethodPost, commentsPath, userToken, map[string]string{"content": "on it"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment = %d: %s", rec.Code, rec.Body.String())
	}
	comment := decode[types.Comment](t, rec)

	rec = e.do(t, http.MethodPut, fmt.Sprintf("/comments/%d", comment.ID), managerToken, map[string]string{"content": "rewritten"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager edit of another author = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPut, fmt.Sprintf("/comments/%d", comment.ID), userToken, map[string]string{"content": "done now"})
	if rec.Code != http.StatusOK {
		t.Fatalf("author edit = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, commentsPath, userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list comments = %d", rec.Code)
	}
	comments := decode[[]types.Comment](t, rec)
	if len(comments) != 1 || comments[0].Content != "done now" {
		t.Fatalf("unexpected comments: %+v", comments)
	}
}
