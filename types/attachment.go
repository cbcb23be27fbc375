package types

import "time"

// Attachment is the metadata record for a file attached to a task. The
// bytes themselves live in object storage under ObjectKey; only the
// metadata is relational. Deleting the task deletes the metadata rows.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID int `json:"id" db:"id"`

	// TaskID identifies the task the attachment belongs to.
	TaskID int `json:"task_id" db:"task_id"`

	// ObjectKey is the key of the stored object in the configured bucket.
	ObjectKey string `json:"object_key" db:"object_key"`

	// Filename is the original upload filename.
	Filename string `json:"filename" db:"filename"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"content_type" db:"content_type"`

	// SizeBytes is the stored object size.
	SizeBytes int64 `json:"size_bytes" db:"size_bytes"`

	// SHA256 is the hex content hash of the stored object.
	SHA256 string `json:"sha256" db:"sha256"`

	// UploadedBy identifies the user who uploaded the file. It becomes
	// nil if that account is deleted.
	UploadedBy *int `json:"uploaded_by" db:"uploaded_by"`

	// CreatedAt is the timestamp when the attachment was uploaded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
