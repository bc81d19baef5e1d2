package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"LT-FLOW/internal/engine"
	"LT-FLOW/internal/models"
	"LT-FLOW/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrNoTemplates       = errors.New("task has no templates bound")
	ErrTemplateInactive  = errors.New("template is not active")
)

// Generation pass outcomes. Partial is reported distinctly so callers can
// present a mixed-status message.
const (
	OutcomeGenerated = "generated"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

type GeneratedDocReport struct {
	models.GeneratedDocument
	Unresolved []string `json:"unresolved,omitempty"`
}

type GenerationReport struct {
	TaskID    string               `json:"task_id"`
	Outcome   string               `json:"outcome"`
	Documents []GeneratedDocReport `json:"documents"`
}

type CompletionResult struct {
	TaskID        string    `json:"task_id"`
	CompletedAt   time.Time `json:"completed_at"`
	ClientUpdated bool      `json:"client_updated"`
	PushedFields  []string  `json:"pushed_fields,omitempty"`
}

// TaskService owns the task state machine: draft -> in_progress ->
// awaiting -> completed. Generation failures are document-level; the
// service always returns a report instead of bubbling collaborator errors.
type TaskService struct {
	store     RecordStore
	blobs     BlobStore
	validator *CompletionValidator
	logger    *zap.Logger

	uploadTimeout time.Duration
	now           func() time.Time
}

func NewTaskService(store RecordStore, blobs BlobStore, validator *CompletionValidator, logger *zap.Logger) *TaskService {
	return &TaskService{
		store:         store,
		blobs:         blobs,
		validator:     validator,
		logger:        logger,
		uploadTimeout: 30 * time.Second,
		now:           time.Now,
	}
}

type CreateTaskInput struct {
	ClientID    string   `json:"client_id"`
	TemplateIDs []string `json:"template_ids"`
	// StartInProgress skips the draft stage for non-draft flows.
	StartInProgress bool `json:"start_in_progress"`
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	if _, err := s.store.GetClient(ctx, input.ClientID); err != nil {
		return nil, err
	}
	for _, id := range input.TemplateIDs {
		tpl, err := s.store.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		if !tpl.IsActive() {
			return nil, fmt.Errorf("template %s (%s): %w", tpl.Name, tpl.ID, ErrTemplateInactive)
		}
	}

	task := &models.Task{
		ID:       uuid.New().String(),
		ClientID: input.ClientID,
		Status:   models.TaskStatusDraft,
	}
	if input.StartInProgress {
		task.Status = models.TaskStatusInProgress
	}
	if err := task.SetTemplateIDList(input.TemplateIDs); err != nil {
		return nil, fmt.Errorf("failed to encode template ids: %w", err)
	}
	if err := task.SetFieldValues(map[string]string{}); err != nil {
		return nil, err
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("client_id", task.ClientID),
		zap.Int("templates", len(input.TemplateIDs)))
	return task, nil
}

// AggregateFields reconciles the custom field definitions of every template
// bound to the task. Conflicts are data for the operator, not errors.
func (s *TaskService) AggregateFields(ctx context.Context, taskID string) (*engine.AggregationResult, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	templateIDs, err := task.TemplateIDList()
	if err != nil {
		return nil, fmt.Errorf("failed to decode template ids for task %s: %w", taskID, err)
	}

	var inputs []engine.TemplateFields
	for _, id := range templateIDs {
		tpl, err := s.store.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		defs, err := tpl.FieldDefinitions()
		if err != nil {
			return nil, fmt.Errorf("failed to decode field definitions for template %s: %w", id, err)
		}
		inputs = append(inputs, engine.TemplateFields{
			TemplateID:   tpl.ID,
			TemplateName: tpl.Name,
			Fields:       defs,
		})
	}

	result := engine.AggregateFields(inputs)
	return &result, nil
}

// SetFieldValues stores the operator-supplied custom field values. Only a
// task that has not generated yet accepts new values wholesale.
func (s *TaskService) SetFieldValues(ctx context.Context, taskID string, values map[string]string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusDraft && task.Status != models.TaskStatusInProgress {
		return nil, fmt.Errorf("task %s is %s: %w", taskID, task.Status, ErrInvalidTransition)
	}
	if err := task.SetFieldValues(values); err != nil {
		return nil, fmt.Errorf("failed to encode field values: %w", err)
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Finalize moves a draft into in_progress and immediately runs the
// generation pass, landing the task in awaiting. A draft with no templates
// bound cannot be finalized.
func (s *TaskService) Finalize(ctx context.Context, taskID string) (*GenerationReport, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusDraft && task.Status != models.TaskStatusInProgress {
		return nil, fmt.Errorf("cannot finalize task %s in status %s: %w", taskID, task.Status, ErrInvalidTransition)
	}

	templateIDs, err := task.TemplateIDList()
	if err != nil {
		return nil, fmt.Errorf("failed to decode template ids for task %s: %w", taskID, err)
	}
	if len(templateIDs) == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNoTemplates)
	}

	task.Status = models.TaskStatusInProgress
	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}

	return s.generate(ctx, task, nil)
}

// Retry re-attempts only the documents currently marked failed. Already
// generated documents are left untouched, timestamps included. Two
// concurrent retries can both snapshot the same failed entry and both
// regenerate it; the upsert makes the last write win, which is acceptable
// under the single-operator usage pattern. No transactional guard is taken.
func (s *TaskService) Retry(ctx context.Context, taskID string) (*GenerationReport, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusAwaiting {
		return nil, fmt.Errorf("cannot retry task %s in status %s: %w", taskID, task.Status, ErrInvalidTransition)
	}

	docs, err := task.Documents()
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated documents for task %s: %w", taskID, err)
	}

	failed := make(map[string]bool)
	for _, doc := range docs {
		if doc.Status == models.DocumentStatusFailed {
			failed[doc.TemplateID] = true
		}
	}
	if len(failed) == 0 {
		// Idempotent: nothing failed, nothing to do.
		return &GenerationReport{TaskID: taskID, Outcome: OutcomeGenerated}, nil
	}

	return s.generate(ctx, task, failed)
}

// generate runs one pass across the task's templates, or across the subset
// in only when retrying. Each template's failure is independent: a storage
// or lookup error becomes a failed document entry and the pass moves on.
func (s *TaskService) generate(ctx context.Context, task *models.Task, only map[string]bool) (*GenerationReport, error) {
	templateIDs, err := task.TemplateIDList()
	if err != nil {
		return nil, fmt.Errorf("failed to decode template ids for task %s: %w", task.ID, err)
	}

	client, err := s.store.GetClient(ctx, task.ClientID)
	if err != nil {
		return nil, err
	}

	fieldValues, err := task.FieldValues()
	if err != nil {
		return nil, fmt.Errorf("failed to decode field values for task %s: %w", task.ID, err)
	}

	report := &GenerationReport{TaskID: task.ID}
	attempted, succeeded := 0, 0

	for _, templateID := range templateIDs {
		if only != nil && !only[templateID] {
			continue
		}
		attempted++

		entry := s.generateOne(ctx, task, client, templateID, fieldValues)
		if entry.Status == models.DocumentStatusGenerated {
			succeeded++
		}
		if err := task.UpsertDocument(entry.GeneratedDocument); err != nil {
			return nil, fmt.Errorf("failed to record document for template %s: %w", templateID, err)
		}
		report.Documents = append(report.Documents, entry)
	}

	// The aggregate status is computed from the task's full document list,
	// not just the entries attempted in this pass. A retry that fails again
	// on one document must not overwrite the record of the documents that
	// already generated.
	allDocs, err := task.Documents()
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated documents for task %s: %w", task.ID, err)
	}
	generatedTotal := 0
	for _, d := range allDocs {
		if d.Status == models.DocumentStatusGenerated {
			generatedTotal++
		}
	}

	switch {
	case generatedTotal == len(allDocs):
		report.Outcome = OutcomeGenerated
		task.GenerationError = ""
	case generatedTotal == 0:
		report.Outcome = OutcomeFailed
		task.GenerationError = s.summarizeFailures(allDocs)
	default:
		report.Outcome = OutcomePartial
		// Some documents made it; the per-document entries carry the detail.
		task.GenerationError = ""
	}

	// Awaiting covers both "awaiting retry" and "awaiting signed uploads";
	// the task never drops back to in_progress.
	task.Status = models.TaskStatusAwaiting
	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("generation pass finished",
		zap.String("task_id", task.ID),
		zap.String("outcome", report.Outcome),
		zap.Int("attempted", attempted),
		zap.Int("succeeded", succeeded))
	return report, nil
}

func (s *TaskService) generateOne(ctx context.Context, task *models.Task, client *models.Client, templateID string, fieldValues map[string]string) GeneratedDocReport {
	entry := GeneratedDocReport{GeneratedDocument: models.GeneratedDocument{
		TemplateID:  templateID,
		Status:      models.DocumentStatusFailed,
		GeneratedAt: s.now(),
	}}

	tpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		// A template deleted after the task referenced it is a document
		// failure, not a crash.
		entry.TemplateName = templateID
		entry.Error = err.Error()
		return entry
	}
	entry.TemplateName = tpl.Name

	defs, err := tpl.FieldDefinitions()
	if err != nil {
		entry.Error = fmt.Sprintf("invalid field definitions: %v", err)
		return entry
	}

	// Merge order is the precedence: client attributes and computed fields
	// first, task values override on collision.
	values := client.AttributeMap(s.now())
	for k, v := range fieldValues {
		values[k] = v
	}

	result := engine.Substitute(tpl.Content, values, defs)
	entry.Unresolved = result.Unresolved

	objectName := storage.GeneratedObjectName(task.ID, templateID)
	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	if _, err := s.blobs.UploadFile(uploadCtx, strings.NewReader(result.Rendered), objectName, "text/html"); err != nil {
		entry.Error = fmt.Sprintf("storage upload failed: %v", err)
		s.logger.Warn("document generation failed",
			zap.String("task_id", task.ID),
			zap.String("template_id", templateID),
			zap.Error(err))
		return entry
	}

	entry.Status = models.DocumentStatusGenerated
	entry.GCSPath = objectName
	entry.Error = ""
	return entry
}

func (s *TaskService) summarizeFailures(docs []models.GeneratedDocument) string {
	var parts []string
	for _, d := range docs {
		if d.Status == models.DocumentStatusFailed {
			parts = append(parts, fmt.Sprintf("%s: %s", d.TemplateName, d.Error))
		}
	}
	return "all documents failed to generate: " + strings.Join(parts, "; ")
}

// Complete runs the completion gate and, if it passes, stamps the terminal
// state. pushFields names custom field values to copy back onto the client
// record; that write is a reported side effect, not part of the gate.
func (s *TaskService) Complete(ctx context.Context, taskID string, pushFields []string) (*CompletionResult, *CompletionCheck, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	check := s.validator.CanComplete(ctx, task)
	if !check.Valid {
		return nil, &check, nil
	}

	completedAt := s.now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &completedAt
	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, nil, err
	}

	result := &CompletionResult{TaskID: taskID, CompletedAt: completedAt}

	if len(pushFields) > 0 {
		pushed, err := s.pushValuesToClient(ctx, task, pushFields)
		if err != nil {
			// The task is completed either way; the client write is
			// best-effort and reported as such.
			s.logger.Warn("failed to push field values to client",
				zap.String("task_id", taskID), zap.Error(err))
		} else if len(pushed) > 0 {
			result.ClientUpdated = true
			result.PushedFields = pushed
		}
	}

	s.logger.Info("task completed", zap.String("task_id", taskID))
	return result, &check, nil
}

func (s *TaskService) pushValuesToClient(ctx context.Context, task *models.Task, pushFields []string) ([]string, error) {
	values, err := task.FieldValues()
	if err != nil {
		return nil, err
	}

	client, err := s.store.GetClient(ctx, task.ClientID)
	if err != nil {
		return nil, err
	}

	var pushed []string
	for _, name := range pushFields {
		value, ok := values[name]
		if !ok {
			continue
		}
		if applyClientField(client, name, value) {
			pushed = append(pushed, name)
		}
	}
	if len(pushed) == 0 {
		return nil, nil
	}
	if err := s.store.SaveClient(ctx, client); err != nil {
		return nil, err
	}
	return pushed, nil
}

func applyClientField(client *models.Client, name, value string) bool {
	switch name {
	case "email":
		client.Email = value
	case "phone":
		client.Phone = value
	case "street":
		client.Street = value
	case "city":
		client.City = value
	case "state":
		client.State = value
	case "postal_code":
		client.PostalCode = value
	case "country":
		client.Country = value
	case "date_of_birth":
		client.DateOfBirth = value
	default:
		return false
	}
	return true
}

// UploadSigned stores a signed copy for one (task, template) key. Uploads
// overwrite: at most one current file exists per key.
func (s *TaskService) UploadSigned(ctx context.Context, taskID, templateID, fileName string, reader io.Reader, contentType string) (string, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	if task.Status != models.TaskStatusAwaiting {
		return "", fmt.Errorf("task %s is %s, signed uploads only apply to awaiting tasks: %w",
			taskID, task.Status, ErrInvalidTransition)
	}

	prefix := storage.SignedPrefix(taskID, templateID)
	if err := s.blobs.DeletePrefix(ctx, prefix); err != nil {
		return "", fmt.Errorf("failed to clear previous signed upload: %w", err)
	}

	objectName := storage.SignedObjectName(taskID, templateID, fileName)
	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	if _, err := s.blobs.UploadFile(uploadCtx, reader, objectName, contentType); err != nil {
		return "", fmt.Errorf("failed to upload signed document %s: %w", fileName, err)
	}
	return objectName, nil
}

// Get returns the task row as stored.
func (s *TaskService) Get(ctx context.Context, taskID string) (*models.Task, error) {
	return s.store.GetTask(ctx, taskID)
}

// GeneratedHTML loads the stored rendered output for one generated
// document. Used when a caller wants the artifact itself, e.g. to hand to
// the binary conversion collaborator.
func (s *TaskService) GeneratedHTML(ctx context.Context, taskID, templateID string) (string, *models.GeneratedDocument, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return "", nil, err
	}

	docs, err := task.Documents()
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode generated documents for task %s: %w", taskID, err)
	}

	for i := range docs {
		doc := docs[i]
		if doc.TemplateID != templateID {
			continue
		}
		if doc.Status != models.DocumentStatusGenerated {
			return "", nil, fmt.Errorf("document for template %s is %s: %w", templateID, doc.Status, ErrNotFound)
		}
		reader, err := s.blobs.ReadFile(ctx, doc.GCSPath)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read generated document %s: %w", doc.GCSPath, err)
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read generated document %s: %w", doc.GCSPath, err)
		}
		return string(data), &doc, nil
	}

	return "", nil, fmt.Errorf("no generated document for template %s on task %s: %w", templateID, taskID, ErrNotFound)
}

// Delete removes the task and cascades over every storage artifact tied to
// its paths: generated, signed and additional uploads. A draft has no
// artifacts yet and only drops its record.
func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status != models.TaskStatusDraft {
		if err := s.blobs.DeletePrefix(ctx, storage.TaskPrefix(taskID)); err != nil {
			return fmt.Errorf("failed to delete task artifacts: %w", err)
		}
	}

	if err := s.store.DeleteTask(ctx, task); err != nil {
		return err
	}

	s.logger.Info("task deleted", zap.String("task_id", taskID), zap.String("status", task.Status))
	return nil
}

// AttachFile stores a supplementary upload under the task's storage prefix
// and records it on the task. Not part of the generation contract, but
// covered by the delete cascade.
func (s *TaskService) AttachFile(ctx context.Context, taskID, fileName string, reader io.Reader, contentType string) (*models.AdditionalFile, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusCompleted {
		return nil, fmt.Errorf("task %s is completed: %w", taskID, ErrInvalidTransition)
	}

	objectName := storage.AdditionalObjectName(taskID, fileName)
	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	if _, err := s.blobs.UploadFile(uploadCtx, reader, objectName, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload additional file %s: %w", fileName, err)
	}

	file := models.AdditionalFile{
		FileName:   fileName,
		GCSPath:    objectName,
		UploadedAt: s.now(),
	}

	files, err := task.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to decode additional files for task %s: %w", taskID, err)
	}
	files = append(files, file)
	if err := task.SetFiles(files); err != nil {
		return nil, err
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}

	return &file, nil
}
