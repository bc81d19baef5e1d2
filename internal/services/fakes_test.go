package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"LT-FLOW/internal/models"
	"LT-FLOW/internal/storage"
)

// fakeStore is an in-memory RecordStore + TemplateWriter. Values are
// copied on the way in and out so callers cannot alias stored state, same
// as a real row round-trip.
type fakeStore struct {
	mu        sync.Mutex
	clients   map[string]models.Client
	templates map[string]models.Template
	tasks     map[string]models.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:   make(map[string]models.Client),
		templates: make(map[string]models.Template),
		tasks:     make(map[string]models.Task),
	}
}

func (f *fakeStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (f *fakeStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (f *fakeStore) CreateTask(ctx context.Context, task *models.Task) error {
	return f.SaveTask(ctx, task)
}

func (f *fakeStore) SaveTask(ctx context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeStore) SaveClient(ctx context.Context, client *models.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[client.ID] = *client
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, task.ID)
	return nil
}

func (f *fakeStore) CreateTemplate(ctx context.Context, template *models.Template) error {
	return f.SaveTemplate(ctx, template)
}

func (f *fakeStore) SaveTemplate(ctx context.Context, template *models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[template.ID] = *template
	return nil
}

func (f *fakeStore) DeleteTemplate(ctx context.Context, template *models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.templates, template.ID)
	return nil
}

// fakeBlobs is an in-memory BlobStore with per-prefix failure injection.
type fakeBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPrefix map[string]error
	listErr    error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		objects:    make(map[string][]byte),
		failPrefix: make(map[string]error),
	}
}

func (f *fakeBlobs) failOn(prefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPrefix[prefix] = err
}

func (f *fakeBlobs) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for prefix, err := range f.failPrefix {
		if strings.HasPrefix(objectName, prefix) {
			return nil, err
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.objects[objectName] = data
	return &storage.UploadResult{ObjectName: objectName, Size: int64(len(data))}, nil
}

func (f *fakeBlobs) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobs) DeleteFile(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	return nil
}

func (f *fakeBlobs) Exists(ctx context.Context, objectName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[objectName]
	return ok, nil
}

func (f *fakeBlobs) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *fakeBlobs) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			delete(f.objects, name)
		}
	}
	return nil
}

func (f *fakeBlobs) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	return "https://signed.example/" + objectName, nil
}
