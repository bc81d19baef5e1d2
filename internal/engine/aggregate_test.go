package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LT-FLOW/internal/models"
)

func field(name, label, typ string, required bool) models.CustomFieldDefinition {
	return models.CustomFieldDefinition{Name: name, Label: label, Type: typ, Required: required}
}

func TestAggregateFieldsEmptyInput(t *testing.T) {
	result := AggregateFields(nil)

	assert.Empty(t, result.Fields)
	assert.Empty(t, result.Conflicts)
	assert.Zero(t, result.Stats.Total)
}

func TestAggregateFieldsSingleTemplate(t *testing.T) {
	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", TemplateName: "Will", Fields: []models.CustomFieldDefinition{
			field("signing_date", "Signing Date", "date", true),
		}},
	})

	require.Len(t, result.Fields, 1)
	assert.Equal(t, "signing_date", result.Fields[0].Name)
	assert.Equal(t, []string{"t1"}, result.Fields[0].SourceTemplates)
	assert.Empty(t, result.Conflicts)
}

func TestAggregateFieldsIdenticalAcrossThreeTemplates(t *testing.T) {
	def := field("witness", "Witness", "text", false)
	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", Fields: []models.CustomFieldDefinition{def}},
		{TemplateID: "t2", Fields: []models.CustomFieldDefinition{def}},
		{TemplateID: "t3", Fields: []models.CustomFieldDefinition{def}},
	})

	require.Len(t, result.Fields, 1)
	assert.Equal(t, []string{"t1", "t2", "t3"}, result.Fields[0].SourceTemplates)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, AggregationStats{Total: 3, Unique: 1, Conflicts: 0}, result.Stats)
}

func TestAggregateFieldsFirstSeenWins(t *testing.T) {
	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", TemplateName: "Will", Fields: []models.CustomFieldDefinition{
			field("signing_date", "Date of Signing", "date", true),
		}},
		{TemplateID: "t2", TemplateName: "Deed", Fields: []models.CustomFieldDefinition{
			field("signing_date", "Signing Date", "text", false),
		}},
	})

	require.Len(t, result.Fields, 1)
	assert.Equal(t, "Date of Signing", result.Fields[0].Label, "first-seen definition is kept")
	assert.Equal(t, "date", result.Fields[0].Type)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, "signing_date", conflict.Name)
	require.Len(t, conflict.Definitions, 2)
	assert.Equal(t, "t1", conflict.Definitions[0].TemplateID)
	assert.Equal(t, "t2", conflict.Definitions[1].TemplateID)
}

func TestAggregateFieldsCaseInsensitiveNames(t *testing.T) {
	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", Fields: []models.CustomFieldDefinition{
			field("Signing_Date", "Signing Date", "date", true),
		}},
		{TemplateID: "t2", Fields: []models.CustomFieldDefinition{
			field("signing_date", "Signing Date", "date", true),
		}},
	})

	require.Len(t, result.Fields, 1)
	assert.Equal(t, "Signing_Date", result.Fields[0].Name)
	assert.Empty(t, result.Conflicts, "identical attributes under the same key do not conflict")
}

func TestAggregateFieldsLabelCaseDifferenceConflicts(t *testing.T) {
	// Labels compare verbatim: a case-only difference is still two authors
	// disagreeing.
	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", Fields: []models.CustomFieldDefinition{
			field("witness", "Witness name", "text", false),
		}},
		{TemplateID: "t2", Fields: []models.CustomFieldDefinition{
			field("witness", "Witness Name", "text", false),
		}},
	})

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "witness", result.Conflicts[0].Name)
}

func TestAggregateFieldsDefaultValueDifferenceIgnored(t *testing.T) {
	a := field("country", "Country", "text", false)
	a.DefaultValue = "CH"
	b := field("country", "Country", "text", false)
	b.DefaultValue = "DE"

	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", Fields: []models.CustomFieldDefinition{a}},
		{TemplateID: "t2", Fields: []models.CustomFieldDefinition{b}},
	})

	assert.Empty(t, result.Conflicts)
}

func TestAggregateFieldsRepeatedNameWithinTemplate(t *testing.T) {
	result := AggregateFields([]TemplateFields{
		{TemplateID: "t1", TemplateName: "Will", Fields: []models.CustomFieldDefinition{
			field("trustee", "Trustee", "text", true),
			field("trustee", "Trustee Name", "text", false),
		}},
		{TemplateID: "t2", TemplateName: "Deed", Fields: []models.CustomFieldDefinition{
			field("trustee", "Trustee", "text", true),
		}},
	})

	require.Len(t, result.Fields, 1)
	assert.Equal(t, "Trustee", result.Fields[0].Label, "first definition wins within a template too")
	assert.Equal(t, []string{"t1", "t2"}, result.Fields[0].SourceTemplates,
		"a template repeating a name is listed once")
	assert.Empty(t, result.Conflicts, "a template cannot conflict with itself")
}

func TestAggregateFieldsDeterministic(t *testing.T) {
	input := []TemplateFields{
		{TemplateID: "t1", Fields: []models.CustomFieldDefinition{
			field("a", "A", "text", false),
			field("b", "B", "date", true),
		}},
		{TemplateID: "t2", Fields: []models.CustomFieldDefinition{
			field("b", "B2", "date", true),
			field("c", "C", "text", false),
		}},
	}

	first := AggregateFields(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AggregateFields(input))
	}
}

func TestAggregateFieldsByTemplateMap(t *testing.T) {
	defs := []models.CustomFieldDefinition{field("a", "A", "text", false)}
	result := AggregateFields([]TemplateFields{{TemplateID: "t1", Fields: defs}})

	assert.Equal(t, defs, result.FieldsByTemplate["t1"])
}
