package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const (
	TaskStatusDraft      = "draft"
	TaskStatusInProgress = "in_progress"
	TaskStatusAwaiting   = "awaiting"
	TaskStatusCompleted  = "completed"
)

const (
	DocumentStatusGenerated = "generated"
	DocumentStatusFailed    = "failed"
)

// GeneratedDocument is one generation attempt outcome, exactly one entry
// per template bound to the task. Kept as a JSON list on the task row so
// retries can upsert by template id in a read-modify-write.
type GeneratedDocument struct {
	TemplateID   string    `json:"template_id"`
	TemplateName string    `json:"template_name"`
	Status       string    `json:"status"`
	GCSPath      string    `json:"gcs_path,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
	Error        string    `json:"error,omitempty"`
}

// AdditionalFile is a supplementary upload attached to a task. Not part
// of the generation contract, but removed with the task on delete.
type AdditionalFile struct {
	FileName   string    `json:"file_name"`
	GCSPath    string    `json:"gcs_path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Task struct {
	ID                 string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ClientID           string         `gorm:"type:varchar(36);not null;index" json:"client_id"`
	Status             string         `gorm:"type:varchar(20);default:'draft'" json:"status"`
	TemplateIDs        string         `gorm:"type:json" json:"template_ids"`         // JSON array of template ids
	CustomFieldValues  string         `gorm:"type:json" json:"custom_field_values"`  // JSON object field name -> value
	GeneratedDocuments string         `gorm:"type:json" json:"generated_documents"`  // JSON array of GeneratedDocument
	AdditionalFiles    string         `gorm:"type:json" json:"additional_files"`     // JSON array of AdditionalFile
	GenerationError    string         `gorm:"type:text" json:"generation_error,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Client Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) TemplateIDList() ([]string, error) {
	if t.TemplateIDs == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(t.TemplateIDs), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (t *Task) SetTemplateIDList(ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	t.TemplateIDs = string(data)
	return nil
}

func (t *Task) FieldValues() (map[string]string, error) {
	if t.CustomFieldValues == "" {
		return map[string]string{}, nil
	}
	values := make(map[string]string)
	if err := json.Unmarshal([]byte(t.CustomFieldValues), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (t *Task) SetFieldValues(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	t.CustomFieldValues = string(data)
	return nil
}

func (t *Task) Documents() ([]GeneratedDocument, error) {
	if t.GeneratedDocuments == "" {
		return nil, nil
	}
	var docs []GeneratedDocument
	if err := json.Unmarshal([]byte(t.GeneratedDocuments), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (t *Task) SetDocuments(docs []GeneratedDocument) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	t.GeneratedDocuments = string(data)
	return nil
}

// UpsertDocument replaces the entry for the document's template id, or
// appends if none exists. Returns the updated list.
func (t *Task) UpsertDocument(doc GeneratedDocument) error {
	docs, err := t.Documents()
	if err != nil {
		return err
	}
	replaced := false
	for i := range docs {
		if docs[i].TemplateID == doc.TemplateID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	return t.SetDocuments(docs)
}

func (t *Task) Files() ([]AdditionalFile, error) {
	if t.AdditionalFiles == "" {
		return nil, nil
	}
	var files []AdditionalFile
	if err := json.Unmarshal([]byte(t.AdditionalFiles), &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (t *Task) SetFiles(files []AdditionalFile) error {
	data, err := json.Marshal(files)
	if err != nil {
		return err
	}
	t.AdditionalFiles = string(data)
	return nil
}
