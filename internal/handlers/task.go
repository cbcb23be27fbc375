package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxAttachmentBytes = 64 << 20
	formFieldFile      = "file"
)

// TaskHandler provides HTTP handlers for tasks, their comments and their
// attachments.
type TaskHandler struct {
	taskService       *services.TaskService
	commentService    *services.CommentService
	attachmentService *services.AttachmentService
}

// NewTaskHandler constructs a handler with the provided services. The
// attachment service may be nil when no object storage is configured.
func NewTaskHandler(
	taskService *services.TaskService,
	commentService *services.CommentService,
	attachmentService *services.AttachmentService,
) *TaskHandler {
	return &TaskHandler{
		taskService:       taskService,
		commentService:    commentService,
		attachmentService: attachmentService,
	}
}

// TaskRouter registers task routes on the given router. Every route
// requires an authenticated caller; role rules are enforced by the services.
func TaskRouter(
	r chi.Router,
	taskService *services.TaskService,
	commentService *services.CommentService,
	attachmentService *services.AttachmentService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTaskHandler(taskService, commentService, attachmentService)

	r.Use(authMiddleware, CurrentUser(userService))
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
		r.Post("/complete", handler.CompleteTask)
		r.Get("/comments", handler.ListComments)
		r.Post("/comments", handler.CreateComment)
		if attachmentService != nil {
			r.Get("/attachments", handler.ListAttachments)
			r.Post("/attachments", handler.UploadAttachment)
			r.Route("/attachments/{attachmentID}", func(r chi.Router) {
				r.Get("/", handler.DownloadAttachment)
				r.Delete("/", handler.DeleteAttachment)
			})
		}
	})
}

// TaskUpsertRequest is the JSON payload for task create and update.
type TaskUpsertRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectID   int    `json:"project_id"`
	AssignedTo  *int   `json:"assigned_to"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date"`
}

func (req TaskUpsertRequest) toInput() (services.TaskInput, error) {
	input := services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		AssignedTo:  req.AssignedTo,
		Priority:    types.TaskPriority(req.Priority),
		Status:      types.TaskStatus(req.Status),
	}
	if raw := strings.TrimSpace(req.DueDate); raw != "" {
		due, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return services.TaskInput{}, errors.New("invalid due_date, expected YYYY-MM-DD")
		}
		input.DueDate = &due
	}
	return input, nil
}

// TaskResponse decorates a task with its derived overdue flag.
type TaskResponse struct {
	types.Task
	IsOverdue bool `json:"is_overdue"`
}

func taskResponse(task types.Task) TaskResponse {
	return TaskResponse{Task: task, IsOverdue: task.IsOverdue(time.Now())}
}

// TaskListResponse carries the caller-visible tasks and per-status counts
// over the same scope.
type TaskListResponse struct {
	Items  []TaskResponse           `json:"items"`
	Counts map[types.TaskStatus]int `json:"counts"`
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	listing, err := h.taskService.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err, "failed to list tasks")
		return
	}

	items := make([]TaskResponse, 0, len(listing.Tasks))
	for _, task := range listing.Tasks {
		items = append(items, taskResponse(task))
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Items: items, Counts: listing.Counts})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch task")
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(task))
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
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

	created, err := h.taskService.Create(r.Context(), caller, input)
	if err != nil {
		writeServiceError(w, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse(created))
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "taskID")
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

	updated, err := h.taskService.Update(r.Context(), caller, id, input)
	if err != nil {
		writeServiceError(w, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(updated))
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.taskService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask marks a task done under the completion rule: the assignee
// completes their own not-yet-done task, or a manager/admin force-completes
// any task. A denial is a 403, distinct from a missing task's 404.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	completed, err := h.taskService.Complete(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, "failed to complete task")
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(completed))
}

type CommentRequest struct {
	Content string `json:"content"`
}

func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	taskID, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.commentService.ListByTask(r.Context(), caller, taskID)
	if err != nil {
		writeServiceError(w, err, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []types.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *TaskHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	taskID, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.commentService.Create(r.Context(), caller, taskID, req.Content)
	if err != nil {
		writeServiceError(w, err, "failed to create comment")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	taskID, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachments, err := h.attachmentService.ListByTask(r.Context(), caller, taskID)
	if err != nil {
		writeServiceError(w, err, "failed to list attachments")
		return
	}
	if attachments == nil {
		attachments = []types.Attachment{}
	}
	writeJSON(w, http.StatusOK, attachments)
}

func (h *TaskHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	taskID, err := parseURLID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File[formFieldFile]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one file is required")
		return
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	data, err := readFileLimited(file, maxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.attachmentService.Upload(
		r.Context(),
		caller,
		taskID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		writeServiceError(w, err, "failed to store attachment")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachment, reader, err := h.attachmentService.Open(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, "failed to open attachment")
		return
	}
	defer reader.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.SizeBytes, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	_, _ = io.Copy(w, reader)
}

func (h *TaskHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.attachmentService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, "failed to delete attachment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
