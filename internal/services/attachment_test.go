package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

type fakeAttachmentRepo struct {
	attachments map[int]types.Attachment
	nextID      int
	failCreate  bool
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: make(map[int]types.Attachment), nextID: 1}
}

func (r *fakeAttachmentRepo) ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error) {
	out := make([]types.Attachment, 0, len(r.attachments))
	for id := 1; id < r.nextID; id++ {
		if attachment, ok := r.attachments[id]; ok && attachment.TaskID == taskID {
			out = append(out, attachment)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) Get(ctx context.Context, id int) (types.Attachment, error) {
	attachment, ok := r.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return attachment, nil
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	if r.failCreate {
		return types.Attachment{}, errors.New("insert failed")
	}
	attachment.ID = r.nextID
	r.nextID++
	r.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (r *fakeAttachmentRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.attachments, id)
	return nil
}

// memObjectStorage keeps objects in a map, standing in for minio/GCS.
type memObjectStorage struct {
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (s *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStorage) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *memObjectStorage) Bucket() string { return "test" }

func newAttachmentService(repo *fakeAttachmentRepo, tasks *fakeTaskRepo) (*AttachmentService, *memObjectStorage) {
	objects := newMemObjectStorage()
	svc := NewAttachmentService(repo, tasks, storage.NewStorage(objects), nil)
	return svc, objects
}

func TestAttachmentUpload(t *testing.T) {
	tasks := newFakeTaskRepo(types.Task{ID: 1, ProjectID: 1})
	repo := newFakeAttachmentRepo()
	svc, objects := newAttachmentService(repo, tasks)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, testUser, 1, "spec.pdf", "application/pdf", []byte("x")); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("upload as user = %v, want forbidden", err)
	}

	if _, err := svc.Upload(ctx, testManager, 1, "spec.pdf", "application/pdf", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty file = %v, want validation error", err)
	}

	if _, err := svc.Upload(ctx, testManager, 42, "spec.pdf", "application/pdf", []byte("x")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing task = %v, want not found", err)
	}

	data := []byte("design notes")
	attachment, err := svc.Upload(ctx, testManager, 1, "../../notes.txt", "text/plain", data)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if attachment.Filename != "notes.txt" {
		t.Fatalf("filename = %q, want path stripped", attachment.Filename)
	}
	if attachment.SizeBytes != int64(len(data)) {
		t.Fatalf("size = %d, want %d", attachment.SizeBytes, len(data))
	}
	if len(attachment.SHA256) != 64 {
		t.Fatalf("bad digest %q", attachment.SHA256)
	}
	if _, ok := objects.objects[attachment.ObjectKey]; !ok {
		t.Fatalf("object %q not stored", attachment.ObjectKey)
	}
}

func TestAttachmentUploadCleansUpOnMetadataFailure(t *testing.T) {
	tasks := newFakeTaskRepo(types.Task{ID: 1, ProjectID: 1})
	repo := newFakeAttachmentRepo()
	repo.failCreate = true
	svc, objects := newAttachmentService(repo, tasks)

	_, err := svc.Upload(context.Background(), testManager, 1, "f.txt", "text/plain", []byte("x"))
	if err == nil {
		t.Fatal("expected upload to fail")
	}
	if len(objects.objects) != 0 {
		t.Fatalf("orphaned object left behind: %v", objects.objects)
	}
}

func TestAttachmentOpenVisibility(t *testing.T) {
	tasks := newFakeTaskRepo(types.Task{ID: 1, ProjectID: 1, AssignedTo: intPtr(99)})
	repo := newFakeAttachmentRepo()
	svc, _ := newAttachmentService(repo, tasks)
	ctx := context.Background()

	attachment, err := svc.Upload(ctx, testManager, 1, "f.txt", "text/plain", []byte("payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, _, err := svc.Open(ctx, testUser, attachment.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("open on invisible task = %v, want not found", err)
	}

	got, reader, err := svc.Open(ctx, testManager, attachment.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()
	if got.ID != attachment.ID {
		t.Fatalf("opened wrong attachment: %+v", got)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("read %q, want payload", data)
	}
}

func TestAttachmentDelete(t *testing.T) {
	tasks := newFakeTaskRepo(types.Task{ID: 1, ProjectID: 1})
	repo := newFakeAttachmentRepo()
	svc, objects := newAttachmentService(repo, tasks)
	ctx := context.Background()

	attachment, err := svc.Upload(ctx, testManager, 1, "f.txt", "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := svc.Delete(ctx, testUser, attachment.ID); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("delete as user = %v, want forbidden", err)
	}
	if err := svc.Delete(ctx, testManager, attachment.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("object not removed: %v", objects.objects)
	}
	if err := svc.Delete(ctx, testManager, attachment.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("repeat delete = %v, want not found", err)
	}
}
