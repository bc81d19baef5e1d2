package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LT-FLOW/internal/models"
)

func newTemplateService(t *testing.T) (*TemplateService, *fakeStore, *fakeBlobs) {
	t.Helper()
	store := newFakeStore()
	blobs := newFakeBlobs()
	return NewTemplateService(store, store, blobs, zap.NewNop()), store, blobs
}

func TestRegisterDetectsPlaceholders(t *testing.T) {
	svc, store, _ := newTemplateService(t)

	template, err := svc.Register(context.Background(), RegisterTemplateInput{
		Name:    "Trust Deed",
		Content: `<p>{{client_name}} of {{full_address}}, {{client_name}}</p>`,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusDraft, template.Status)

	saved, err := store.GetTemplate(context.Background(), template.ID)
	require.NoError(t, err)
	names, err := saved.PlaceholderNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"client_name", "full_address"}, names)
}

func TestRegisterArchivesSourceFile(t *testing.T) {
	svc, _, blobs := newTemplateService(t)

	template, err := svc.Register(context.Background(), RegisterTemplateInput{
		Name:     "Will",
		Content:  `<p>{{full_name}}</p>`,
		Source:   strings.NewReader("docx bytes"),
		FileName: "will.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	})
	require.NoError(t, err)
	require.NotEmpty(t, template.GCSPath)
	assert.Equal(t, int64(len("docx bytes")), template.FileSize)
	assert.Equal(t, []byte("docx bytes"), blobs.objects[template.GCSPath])
}

func TestRegisterRequiresName(t *testing.T) {
	svc, _, _ := newTemplateService(t)
	_, err := svc.Register(context.Background(), RegisterTemplateInput{Content: "<p>x</p>"})
	assert.Error(t, err)
}

func TestRegisterArchiveFailureStopsRegistration(t *testing.T) {
	svc, _, blobs := newTemplateService(t)
	blobs.failOn("templates/", errors.New("bucket unavailable"))

	_, err := svc.Register(context.Background(), RegisterTemplateInput{
		Name:     "Will",
		Content:  `<p>{{full_name}}</p>`,
		Source:   strings.NewReader("docx bytes"),
		FileName: "will.docx",
	})
	assert.Error(t, err)
}

func TestUpdateContentRejectedWhileActive(t *testing.T) {
	svc, store, _ := newTemplateService(t)
	seedTemplate(t, store, "t1", "Will", `<p>{{a}}</p>`, nil)

	_, err := svc.UpdateContent(context.Background(), "t1", `<p>{{b}}</p>`)
	assert.ErrorIs(t, err, ErrTemplateInUse)
}

func TestUpdateContentRedetectsPlaceholders(t *testing.T) {
	svc, _, _ := newTemplateService(t)
	template, err := svc.Register(context.Background(), RegisterTemplateInput{
		Name:    "Will",
		Content: `<p>{{old_field}}</p>`,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateContent(context.Background(), template.ID, `<p>{{new_field}}</p>`)
	require.NoError(t, err)
	names, err := updated.PlaceholderNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"new_field"}, names)
}

func TestSetFieldDefinitionsRejectsDuplicates(t *testing.T) {
	svc, store, _ := newTemplateService(t)
	seedTemplate(t, store, "t1", "Will", `<p>{{a}}</p>`, nil)

	_, err := svc.SetFieldDefinitions(context.Background(), "t1", []models.CustomFieldDefinition{
		{Name: "trustee", Label: "Trustee", Type: "text"},
		{Name: "trustee", Label: "Trustee Again", Type: "text"},
	})
	assert.Error(t, err)

	_, err = svc.SetFieldDefinitions(context.Background(), "t1", []models.CustomFieldDefinition{
		{Label: "Missing Name", Type: "text"},
	})
	assert.Error(t, err)
}

func TestActivateDeactivateRoundTrip(t *testing.T) {
	svc, store, _ := newTemplateService(t)
	seedTemplate(t, store, "t1", "Will", `<p>{{a}}</p>`, nil)
	tpl, err := svc.Deactivate(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, tpl.IsActive())

	tpl, err = svc.Activate(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, tpl.IsActive())

	saved, err := store.GetTemplate(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, saved.IsActive())
}

func TestDeleteRemovesArchivedSource(t *testing.T) {
	svc, store, blobs := newTemplateService(t)

	template, err := svc.Register(context.Background(), RegisterTemplateInput{
		Name:     "Will",
		Content:  `<p>{{full_name}}</p>`,
		Source:   strings.NewReader("docx bytes"),
		FileName: "will.docx",
	})
	require.NoError(t, err)
	require.Contains(t, blobs.objects, template.GCSPath)

	require.NoError(t, svc.Delete(context.Background(), template.ID))
	assert.NotContains(t, blobs.objects, template.GCSPath)
	_, err = store.GetTemplate(context.Background(), template.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
