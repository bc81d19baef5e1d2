package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"LT-FLOW/internal/models"
	"LT-FLOW/internal/storage"

	"gorm.io/gorm"
)

// ErrNotFound is returned for any missing record, regardless of which
// backing store swallowed the miss.
var ErrNotFound = errors.New("record not found")

// RecordStore is the persistence seam the pipeline runs against. The GORM
// implementation below is the production one; tests inject an in-memory
// fake.
type RecordStore interface {
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	GetClient(ctx context.Context, id string) (*models.Client, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) error
	SaveTask(ctx context.Context, task *models.Task) error
	SaveClient(ctx context.Context, client *models.Client) error
	DeleteTask(ctx context.Context, task *models.Task) error
}

// BlobStore is the object-storage seam. *storage.GCSClient satisfies it.
type BlobStore interface {
	UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*storage.UploadResult, error)
	ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, objectName string) error
	Exists(ctx context.Context, objectName string) (bool, error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) error
	GetSignedURL(objectName string, expiry time.Duration) (string, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template
	if err := s.db.WithContext(ctx).First(&template, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "template", id)
	}
	return &template, nil
}

func (s *GormStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "client", id)
	}
	return &client, nil
}

func (s *GormStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "task", id)
	}
	return &task, nil
}

func (s *GormStore) CreateTask(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *GormStore) SaveTask(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

func (s *GormStore) SaveClient(ctx context.Context, client *models.Client) error {
	if err := s.db.WithContext(ctx).Save(client).Error; err != nil {
		return fmt.Errorf("failed to save client %s: %w", client.ID, err)
	}
	return nil
}

func (s *GormStore) CreateTemplate(ctx context.Context, template *models.Template) error {
	if err := s.db.WithContext(ctx).Create(template).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (s *GormStore) SaveTemplate(ctx context.Context, template *models.Template) error {
	if err := s.db.WithContext(ctx).Save(template).Error; err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}
	return nil
}

func (s *GormStore) DeleteTemplate(ctx context.Context, template *models.Template) error {
	if err := s.db.WithContext(ctx).Delete(template).Error; err != nil {
		return fmt.Errorf("failed to delete template %s: %w", template.ID, err)
	}
	return nil
}

func (s *GormStore) DeleteTask(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Delete(task).Error; err != nil {
		return fmt.Errorf("failed to delete task %s: %w", task.ID, err)
	}
	return nil
}

func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}
