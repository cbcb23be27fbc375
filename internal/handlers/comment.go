package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
)

// CommentHandler provides HTTP handlers for editing existing comments.
// Creation and listing live under the owning task's routes.
type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// CommentRouter registers comment edit routes on the given router.
func CommentRouter(
	r chi.Router,
	commentService *services.CommentService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewCommentHandler(commentService)

	r.Use(authMiddleware, CurrentUser(userService))
	r.Route("/{commentID}", func(r chi.Router) {
		r.Put("/", handler.UpdateComment)
		r.Delete("/", handler.DeleteComment)
	})
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.commentService.Update(r.Context(), caller, id, req.Content)
	if err != nil {
		writeServiceError(w, err, "failed to update comment")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, "unauthorized")
		return
	}

	id, err := parseURLID(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.commentService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, "failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
