package services

import (
	"context"
	"fmt"
	"time"

	"LT-FLOW/internal/models"
	"LT-FLOW/internal/storage"

	"go.uber.org/zap"
)

// CompletionCheck is the structured verdict of the completion gate. It is
// data, never an exception: UI layers render remediation text from it.
type CompletionCheck struct {
	Valid             bool     `json:"valid"`
	Reason            string   `json:"reason,omitempty"`
	MissingSignedDocs []string `json:"missing_signed_docs,omitempty"`
}

type SignedFile struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
}

// CompletionValidator gates the awaiting -> completed transition: every
// generated document needs a matching signed upload, and at least one
// document must have been generated at all.
type CompletionValidator struct {
	blobs  BlobStore
	logger *zap.Logger
}

func NewCompletionValidator(blobs BlobStore, logger *zap.Logger) *CompletionValidator {
	return &CompletionValidator{blobs: blobs, logger: logger}
}

func (v *CompletionValidator) CanComplete(ctx context.Context, task *models.Task) CompletionCheck {
	if task.Status != models.TaskStatusAwaiting {
		return CompletionCheck{
			Valid:  false,
			Reason: fmt.Sprintf("task is %s, only an awaiting task can complete", task.Status),
		}
	}

	docs, err := task.Documents()
	if err != nil {
		return CompletionCheck{Valid: false, Reason: fmt.Sprintf("invalid generated documents record: %v", err)}
	}

	generated := 0
	var missing []string
	for _, doc := range docs {
		if doc.Status != models.DocumentStatusGenerated {
			continue
		}
		generated++

		files, err := v.blobs.ListObjects(ctx, storage.SignedPrefix(task.ID, doc.TemplateID))
		if err != nil {
			// A storage failure blocks completion with detail rather than
			// passing a task whose uploads we could not verify.
			v.logger.Warn("signed upload check failed",
				zap.String("task_id", task.ID),
				zap.String("template_id", doc.TemplateID),
				zap.Error(err))
			return CompletionCheck{
				Valid:  false,
				Reason: fmt.Sprintf("could not verify signed upload for %s: %v", doc.TemplateName, err),
			}
		}
		if len(files) == 0 {
			missing = append(missing, doc.TemplateName)
		}
	}

	if generated == 0 {
		return CompletionCheck{Valid: false, Reason: "no generated documents; a task with nothing generated cannot complete"}
	}
	if len(missing) > 0 {
		return CompletionCheck{
			Valid:             false,
			Reason:            fmt.Sprintf("%d generated document(s) have no signed upload", len(missing)),
			MissingSignedDocs: missing,
		}
	}

	return CompletionCheck{Valid: true}
}

// ListSigned returns the current signed uploads for one (task, template)
// key. Uploads overwrite, so normally at most one file comes back.
func (v *CompletionValidator) ListSigned(ctx context.Context, taskID, templateID string) ([]SignedFile, error) {
	names, err := v.blobs.ListObjects(ctx, storage.SignedPrefix(taskID, templateID))
	if err != nil {
		return nil, fmt.Errorf("failed to list signed uploads for task %s template %s: %w", taskID, templateID, err)
	}

	files := make([]SignedFile, 0, len(names))
	for _, name := range names {
		files = append(files, SignedFile{
			FileName: storage.FileNameFromObject(name),
			Path:     name,
		})
	}
	return files, nil
}

// SignedURL returns a time-limited download URL for a signed upload.
func (v *CompletionValidator) SignedURL(taskID, templateID, fileName string, expiry time.Duration) (string, error) {
	return v.blobs.GetSignedURL(storage.SignedObjectName(taskID, templateID, fileName), expiry)
}
