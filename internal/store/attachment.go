package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

// AttachmentRepository handles persistence for attachment metadata. The
// object bytes live in object storage; see internal/storage.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error) {
	const query = `
		SELECT id, task_id, object_key, filename, content_type, size_bytes, sha256, uploaded_by, created_at
		FROM attachments
		WHERE task_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []types.Attachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

func (r *AttachmentRepository) Get(ctx context.Context, id int) (types.Attachment, error) {
	const query = `
		SELECT id, task_id, object_key, filename, content_type, size_bytes, sha256, uploaded_by, created_at
		FROM attachments
		WHERE id = $1`
	attachment, err := scanAttachment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (task_id, object_key, filename, content_type, size_bytes, sha256, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.TaskID,
		attachment.ObjectKey,
		attachment.Filename,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.SHA256,
		nullableInt(attachment.UploadedBy),
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM attachments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAttachment(scanner interface{ Scan(...any) error }) (types.Attachment, error) {
	var attachment types.Attachment
	var uploadedBy sql.NullInt64
	if err := scanner.Scan(
		&attachment.ID,
		&attachment.TaskID,
		&attachment.ObjectKey,
		&attachment.Filename,
		&attachment.ContentType,
		&attachment.SizeBytes,
		&attachment.SHA256,
		&uploadedBy,
		&attachment.CreatedAt,
	); err != nil {
		return types.Attachment{}, err
	}
	if uploadedBy.Valid {
		id := int(uploadedBy.Int64)
		attachment.UploadedBy = &id
	}
	return attachment, nil
}
