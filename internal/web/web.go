// Package web is the server-rendered page adapter. It drives the same
// services as the JSON API, so both paths see identical visibility and
// authorization results. The two denial kinds surface differently here:
// a missing identity redirects to the login page, while an established
// identity lacking permission gets a 403 page.
package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/handlers"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "taskhive_session"

// Handler renders the HTML pages.
type Handler struct {
	auth      *handlers.AuthHandler
	users     *services.UserService
	projects  *services.ProjectService
	tasks     *services.TaskService
	comments  *services.CommentService
	jwtSecret string
	templates *template.Template
}

// New constructs the page handler.
func New(
	auth *handlers.AuthHandler,
	users *services.UserService,
	projects *services.ProjectService,
	tasks *services.TaskService,
	comments *services.CommentService,
	jwtSecret string,
) (*Handler, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		auth:      auth,
		users:     users,
		projects:  projects,
		tasks:     tasks,
		comments:  comments,
		jwtSecret: jwtSecret,
		templates: templates,
	}, nil
}

// Router registers the page routes on the given router.
func (h *Handler) Router(r chi.Router) {
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/app/projects", http.StatusFound)
	})
	r.Get("/projects", h.ProjectList)
	r.Get("/projects/{projectID}", h.ProjectDetail)
	r.Get("/tasks", h.TaskList)
	r.Get("/tasks/{taskID}", h.TaskDetail)
	r.Post("/tasks/{taskID}/complete", h.CompleteTask)
	r.Post("/tasks/{taskID}/comments", h.AddComment)
}

// caller resolves the session cookie to a user. A nil error means the
// caller is authenticated; otherwise the request was already redirected to
// the login page.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (types.User, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Redirect(w, r, "/app/login", http.StatusFound)
		return types.User{}, access.ErrUnauthenticated
	}

	userID, err := handlers.TokenSubject(cookie.Value, h.jwtSecret)
	if err != nil {
		http.Redirect(w, r, "/app/login", http.StatusFound)
		return types.User{}, access.ErrUnauthenticated
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		http.Redirect(w, r, "/app/login", http.StatusFound)
		return types.User{}, access.ErrUnauthenticated
	}
	return user, nil
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// renderError maps a core error onto a page: forbidden gets the 403 page,
// a missing record gets a plain 404.
func (h *Handler) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrForbidden):
		h.render(w, http.StatusForbidden, "forbidden.html", nil)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login.html", loginData{})
}

type loginData struct {
	Error string
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "login.html", loginData{Error: "invalid form"})
		return
	}

	token, _, err := h.auth.Authenticate(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		h.render(w, http.StatusUnauthorized, "login.html", loginData{Error: "invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/app/projects", http.StatusFound)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/app/login", http.StatusFound)
}

type projectListData struct {
	Caller   types.User
	Projects []types.Project
}

func (h *Handler) ProjectList(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(w, r)
	if err != nil {
		return
	}

	projects, _, err := h.projects.List(r.Context(), caller, 0, 100)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, http.StatusOK, "projects.html", projectListData{Caller: caller, Projects: projects})
}

type projectDetailData struct {
	Caller  types.User
	Project types.Project
	Tasks   []types.Task
}

func (h *Handler) ProjectDetail(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(w, r)
	if err != nil {
		return
	}

	id, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	project, err := h.projects.Get(r.Context(), caller, id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	tasks, err := h.tasks.ListByProject(r.Context(), caller, id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, http.StatusOK, "project.html", projectDetailData{Caller: caller, Project: project, Tasks: tasks})
}

type taskListData struct {
	Caller types.User
	Tasks  []types.Task
	Counts map[string]int
	Now    time.Time
}

func (h *Handler) TaskList(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(w, r)
	if err != nil {
		return
	}

	listing, err := h.tasks.List(r.Context(), caller)
	if err != nil {
		h.renderError(w, err)
		return
	}

	counts := make(map[string]int, len(listing.Counts))
	for status, n := range listing.Counts {
		counts[string(status)] = n
	}
	h.render(w, http.StatusOK, "tasks.html", taskListData{
		Caller: caller,
		Tasks:  listing.Tasks,
		Counts: counts,
		Now:    time.Now(),
	})
}

type taskDetailData struct {
	Caller   types.User
	Task     types.Task
	Comments []types.Comment
	CanDo    bool
}

func (h *Handler) TaskDetail(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(w, r)
	if err != nil {
		return
	}

	id, err := pathID(r, "taskID")
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	task, err := h.tasks.Get(r.Context(), caller, id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	comments, err := h.comments.ListByTask(r.Context(), caller, id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.render(w, http.StatusOK, "task.html", taskDetailData{
		Caller:   caller,
		Task:     task,
		Comments: comments,
		CanDo:    access.CanCompleteTask(caller, task),
	})
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(w, r)
	if err != nil {
		return
	}

	id, err := pathID(r, "taskID")
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	if _, err := h.tasks.Complete(r.Context(), caller, id); err != nil {
		h.renderError(w, err)
		return
	}
	http.Redirect(w, r, "/app/tasks/"+chi.URLParam(r, "taskID"), http.StatusFound)
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(w, r)
	if err != nil {
		return
	}

	id, err := pathID(r, "taskID")
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if _, err := h.comments.Create(r.Context(), caller, id, r.FormValue("content")); err != nil {
		if errors.Is(err, services.ErrValidation) {
			http.Redirect(w, r, "/app/tasks/"+chi.URLParam(r, "taskID"), http.StatusFound)
			return
		}
		h.renderError(w, err)
		return
	}
	http.Redirect(w, r, "/app/tasks/"+chi.URLParam(r, "taskID"), http.StatusFound)
}
