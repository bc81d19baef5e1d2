package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const (
	TemplateStatusDraft  = "draft"
	TemplateStatusActive = "active"
)

// CustomFieldDefinition is one operator-supplied input a template needs
// beyond the built-in client attributes. Stored as a JSON array on the
// template row.
type CustomFieldDefinition struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"default_value,omitempty"`
	Validation   string `json:"validation,omitempty"`
}

type Template struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Status       string         `gorm:"type:varchar(20);default:'draft'" json:"status"`
	Content      string         `gorm:"type:longtext" json:"content"` // HTML with {{placeholder}} markup
	GCSPath      string         `json:"gcs_path"`
	FileSize     int64          `json:"file_size"`
	MimeType     string         `json:"mime_type"`
	Placeholders string         `gorm:"type:json" json:"placeholders"`  // JSON array of detected placeholder names
	CustomFields string         `gorm:"type:json" json:"custom_fields"` // JSON array of CustomFieldDefinition
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Template) TableName() string {
	return "document_templates"
}

func (t *Template) IsActive() bool {
	return t.Status == TemplateStatusActive
}

func (t *Template) PlaceholderNames() ([]string, error) {
	if t.Placeholders == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(t.Placeholders), &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (t *Template) SetPlaceholderNames(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	t.Placeholders = string(data)
	return nil
}

func (t *Template) FieldDefinitions() ([]CustomFieldDefinition, error) {
	if t.CustomFields == "" {
		return nil, nil
	}
	var defs []CustomFieldDefinition
	if err := json.Unmarshal([]byte(t.CustomFields), &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (t *Template) SetFieldDefinitions(defs []CustomFieldDefinition) error {
	data, err := json.Marshal(defs)
	if err != nil {
		return err
	}
	t.CustomFields = string(data)
	return nil
}
