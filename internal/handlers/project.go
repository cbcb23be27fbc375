package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/types"
)

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projectService *services.ProjectService
	taskService    *services.TaskService
}

// NewProjectHandler constructs a handler with the provided services.
func NewProjectHandler(projectService *services.ProjectService, taskService *services.TaskService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
	}
}

// ProjectRouter registers project routes on the given router. Every route
// requires an authenticated caller; role rules are enforced by the services.
func ProjectRouter(
	r chi.Router,
	projectService *services.ProjectService,
	taskService *services.TaskService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProjectHandler(projectService, taskService)

	r.Use(authMiddleware, CurrentUser(userService))
	r.Get("/", handler.ListProjects)
	r.Post("/", handler.CreateProject)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", handler.GetProject)
		r.Put("/", handler.UpdateProject)
		r.Delete("/", handler.DeleteProject)
		r.Post("/tasks", handler.CreateProjectTask)
	})
}

// ProjectListResponse is the paginated list response payload.
type ProjectListResponse struct {
	Items []types.Project `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

// ProjectDetailResponse is a project together with its visible tasks.
type ProjectDetailResponse struct {
	types.Project
	Tasks []types.Task `json:"tasks"`
}

// ProjectUpsertRequest is the JSON payload for create and update.
type ProjectUpsertRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.projectService.List(r.Context(), caller, offset, limit)
	if err != nil {
		writeServiceError(w, err, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, ProjectListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projectService.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch project")
		return
	}

	tasks, err := h.taskService.ListByProject(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch project tasks")
		return
	}

	writeJSON(w, http.StatusOK, ProjectDetailResponse{Project: project, Tasks: tasks})
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	var req ProjectUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.projectService.Create(r.Context(), caller, services.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      types.ProjectStatus(req.Status),
	})
	if err != nil {
		writeServiceError(w, err, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ProjectUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.projectService.Update(r.Context(), caller, id, services.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      types.ProjectStatus(req.Status),
	})
	if err != nil {
		writeServiceError(w, err, "failed to update project")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projectService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateProjectTask creates a task inside the project named in the URL.
func (h *ProjectHandler) CreateProjectTask(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	projectID, err := parseURLID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req TaskUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input.ProjectID = projectID

	created, err := h.taskService.Create(r.Context(), caller, input)
	if err != nil {
		writeServiceError(w, err, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, taskResponse(created))
}
