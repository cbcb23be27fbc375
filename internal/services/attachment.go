package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// AttachmentRepository defines persistence operations for attachment
// metadata.
type AttachmentRepository interface {
	ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error)
	Get(ctx context.Context, id int) (types.Attachment, error)
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	Delete(ctx context.Context, id int) error
}

// AttachmentService stores task attachments: bytes in object storage,
// metadata in the relational store.
type AttachmentService struct {
	repo    AttachmentRepository
	tasks   TaskRepository
	storage *storage.Storage
	logger  *slog.Logger
}

func NewAttachmentService(repo AttachmentRepository, tasks TaskRepository, objectStorage *storage.Storage, logger *slog.Logger) *AttachmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachmentService{repo: repo, tasks: tasks, storage: objectStorage, logger: logger}
}

// ListByTask returns a task's attachment metadata.
func (s *AttachmentService) ListByTask(ctx context.Context, caller types.User, taskID int) ([]types.Attachment, error) {
	if err := s.requireVisibleTask(ctx, caller, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListByTask(ctx, taskID)
}

// Upload stores a file against a task. Manager or admin only.
func (s *AttachmentService) Upload(ctx context.Context, caller types.User, taskID int, filename, contentType string, data []byte) (types.Attachment, error) {
	if !access.Can(caller.Role, access.OpUploadAttachment) {
		return types.Attachment{}, access.ErrForbidden
	}
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return types.Attachment{}, fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if len(data) == 0 {
		return types.Attachment{}, fmt.Errorf("%w: empty file", ErrValidation)
	}
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return types.Attachment{}, err
	}

	hash := sha256.Sum256(data)
	digest := hex.EncodeToString(hash[:])
	objectKey := fmt.Sprintf("tasks/%d/%s/%s", taskID, digest[:12], filename)

	if err := s.storage.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Attachment{}, err
	}

	uploader := caller.ID
	attachment, err := s.repo.Create(ctx, types.Attachment{
		TaskID:      taskID,
		ObjectKey:   objectKey,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		SHA256:      digest,
		UploadedBy:  &uploader,
	})
	if err != nil {
		// Metadata write failed; drop the orphaned object.
		if cleanupErr := s.storage.Delete(ctx, objectKey); cleanupErr != nil {
			s.logger.Warn("cleanup of orphaned attachment object failed", "object_key", objectKey, "error", cleanupErr)
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

// Open returns an attachment's metadata and a reader over its bytes. The
// caller must be able to see the parent task.
func (s *AttachmentService) Open(ctx context.Context, caller types.User, id int) (types.Attachment, io.ReadCloser, error) {
	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	if err := s.requireVisibleTask(ctx, caller, attachment.TaskID); err != nil {
		return types.Attachment{}, nil, err
	}

	reader, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return attachment, reader, nil
}

// Delete removes an attachment's metadata and stored object. Manager or
// admin only.
func (s *AttachmentService) Delete(ctx context.Context, caller types.User, id int) error {
	if !access.Can(caller.Role, access.OpDeleteAttachment) {
		return access.ErrForbidden
	}

	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, attachment.ObjectKey); err != nil {
		s.logger.Warn("delete attachment object failed", "object_key", attachment.ObjectKey, "error", err)
	}
	return nil
}

func (s *AttachmentService) requireVisibleTask(ctx context.Context, caller types.User, taskID int) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !access.CanSeeTask(caller, task) {
		return store.ErrNotFound
	}
	return nil
}
