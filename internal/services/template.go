package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"LT-FLOW/internal/engine"
	"LT-FLOW/internal/models"
	"LT-FLOW/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrTemplateInUse = errors.New("template content is read-only while active")

// TemplateService manages the template registry. Conversion of uploaded
// DOCX to HTML is an external collaborator; what arrives here is the
// converted HTML plus, optionally, the original source file for archival.
type TemplateService struct {
	store  RecordStore
	blobs  BlobStore
	db     TemplateWriter
	logger *zap.Logger
}

// TemplateWriter is the write side of the template registry.
type TemplateWriter interface {
	CreateTemplate(ctx context.Context, template *models.Template) error
	SaveTemplate(ctx context.Context, template *models.Template) error
	DeleteTemplate(ctx context.Context, template *models.Template) error
}

func NewTemplateService(store RecordStore, writer TemplateWriter, blobs BlobStore, logger *zap.Logger) *TemplateService {
	return &TemplateService{store: store, db: writer, blobs: blobs, logger: logger}
}

type RegisterTemplateInput struct {
	Name     string
	Content  string // converted HTML with placeholder markup
	Source   io.Reader
	FileName string
	MimeType string
}

// Register persists a converted template as a draft. Placeholder names are
// detected from the content; field definitions start empty and are edited
// separately.
func (s *TemplateService) Register(ctx context.Context, input RegisterTemplateInput) (*models.Template, error) {
	if input.Name == "" {
		return nil, errors.New("template name is required")
	}

	template := &models.Template{
		ID:      uuid.New().String(),
		Name:    input.Name,
		Status:  models.TemplateStatusDraft,
		Content: input.Content,
	}
	if err := template.SetPlaceholderNames(engine.DetectPlaceholders(input.Content)); err != nil {
		return nil, fmt.Errorf("failed to encode placeholders: %w", err)
	}

	if input.Source != nil {
		objectName := storage.TemplateObjectName(template.ID, input.FileName)
		result, err := s.blobs.UploadFile(ctx, input.Source, objectName, input.MimeType)
		if err != nil {
			return nil, fmt.Errorf("failed to archive template source: %w", err)
		}
		template.GCSPath = objectName
		template.FileSize = result.Size
		template.MimeType = input.MimeType
	}

	if err := s.db.CreateTemplate(ctx, template); err != nil {
		if template.GCSPath != "" {
			s.blobs.DeleteFile(ctx, template.GCSPath)
		}
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("template registered",
		zap.String("template_id", template.ID),
		zap.String("name", template.Name))
	return template, nil
}

// UpdateContent replaces a draft template's HTML and re-detects its
// placeholders. Active templates are read-only from the pipeline side and
// must be deactivated first.
func (s *TemplateService) UpdateContent(ctx context.Context, templateID, content string) (*models.Template, error) {
	template, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template.IsActive() {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrTemplateInUse)
	}

	template.Content = content
	if err := template.SetPlaceholderNames(engine.DetectPlaceholders(content)); err != nil {
		return nil, fmt.Errorf("failed to encode placeholders: %w", err)
	}
	if err := s.db.SaveTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// SetFieldDefinitions replaces the template's custom field definitions.
func (s *TemplateService) SetFieldDefinitions(ctx context.Context, templateID string, defs []models.CustomFieldDefinition) (*models.Template, error) {
	template, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("field definition requires a name")
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("duplicate field definition %q", def.Name)
		}
		seen[def.Name] = true
	}

	if err := template.SetFieldDefinitions(defs); err != nil {
		return nil, fmt.Errorf("failed to encode field definitions: %w", err)
	}
	if err := s.db.SaveTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// Activate makes the template attachable to tasks.
func (s *TemplateService) Activate(ctx context.Context, templateID string) (*models.Template, error) {
	return s.setStatus(ctx, templateID, models.TemplateStatusActive)
}

func (s *TemplateService) Deactivate(ctx context.Context, templateID string) (*models.Template, error) {
	return s.setStatus(ctx, templateID, models.TemplateStatusDraft)
}

func (s *TemplateService) setStatus(ctx context.Context, templateID, status string) (*models.Template, error) {
	template, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	template.Status = status
	if err := s.db.SaveTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) Get(ctx context.Context, templateID string) (*models.Template, error) {
	return s.store.GetTemplate(ctx, templateID)
}

func (s *TemplateService) Delete(ctx context.Context, templateID string) error {
	template, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	if template.GCSPath != "" {
		if err := s.blobs.DeleteFile(ctx, template.GCSPath); err != nil {
			// Keep going: the record wins over the archived source.
			s.logger.Warn("failed to delete template source",
				zap.String("template_id", templateID),
				zap.String("gcs_path", template.GCSPath),
				zap.Error(err))
		}
	}

	return s.db.DeleteTemplate(ctx, template)
}
