package engine

import (
	"strings"

	"LT-FLOW/internal/models"
)

// TemplateFields is one template's declared custom fields, in declaration
// order.
type TemplateFields struct {
	TemplateID   string
	TemplateName string
	Fields       []models.CustomFieldDefinition
}

// AggregatedField is the merged view of one field name across every
// template on a task. The definition kept is the first seen in input order.
type AggregatedField struct {
	models.CustomFieldDefinition
	SourceTemplates []string `json:"source_templates"`
}

// FieldConflict records templates that disagree on a shared field name.
// Conflicts are warnings for the operator, never errors.
type FieldConflict struct {
	Name        string                `json:"name"`
	Definitions []ConflictingFieldDef `json:"definitions"`
}

type ConflictingFieldDef struct {
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
}

type AggregationStats struct {
	Total     int `json:"total"`
	Unique    int `json:"unique"`
	Conflicts int `json:"conflicts"`
}

type AggregationResult struct {
	Fields           []AggregatedField                         `json:"fields"`
	FieldsByTemplate map[string][]models.CustomFieldDefinition `json:"fields_by_template"`
	Conflicts        []FieldConflict                           `json:"conflicts"`
	Stats            AggregationStats                          `json:"stats"`
}

// AggregateFields merges the custom field definitions of every template
// bound to a task into one field set. Field names compare case-insensitively;
// the first-seen definition wins, and any later definition differing in
// type, required or label is surfaced as a conflict. Labels compare
// verbatim: a case-only label difference is still a disagreement between
// template authors. defaultValue and validation differences are ignored.
func AggregateFields(templates []TemplateFields) AggregationResult {
	result := AggregationResult{
		FieldsByTemplate: make(map[string][]models.CustomFieldDefinition, len(templates)),
	}

	byKey := make(map[string]int) // comparison key -> index into result.Fields
	var order []string
	defsSeen := make(map[string][]ConflictingFieldDef)
	sourceSeen := make(map[string]bool) // key + template id

	for _, tpl := range templates {
		result.FieldsByTemplate[tpl.TemplateID] = tpl.Fields
		for _, def := range tpl.Fields {
			result.Stats.Total++
			key := strings.ToLower(def.Name)

			// Input is not guaranteed to be pre-validated; a template
			// repeating a name contributes its id to the source list once.
			sourceKey := key + "\x00" + tpl.TemplateID
			if sourceSeen[sourceKey] {
				continue
			}
			sourceSeen[sourceKey] = true

			if idx, ok := byKey[key]; ok {
				result.Fields[idx].SourceTemplates = append(result.Fields[idx].SourceTemplates, tpl.TemplateID)
			} else {
				byKey[key] = len(result.Fields)
				order = append(order, key)
				result.Fields = append(result.Fields, AggregatedField{
					CustomFieldDefinition: def,
					SourceTemplates:       []string{tpl.TemplateID},
				})
			}

			defsSeen[key] = append(defsSeen[key], ConflictingFieldDef{
				TemplateID:   tpl.TemplateID,
				TemplateName: tpl.TemplateName,
				Label:        def.Label,
				Type:         def.Type,
				Required:     def.Required,
			})
		}
	}

	for _, key := range order {
		defs := defsSeen[key]
		if len(defs) < 2 {
			continue
		}
		if conflicting(defs) {
			result.Conflicts = append(result.Conflicts, FieldConflict{
				Name:        result.Fields[byKey[key]].Name,
				Definitions: defs,
			})
		}
	}

	result.Stats.Unique = len(result.Fields)
	result.Stats.Conflicts = len(result.Conflicts)
	return result
}

func conflicting(defs []ConflictingFieldDef) bool {
	first := defs[0]
	for _, d := range defs[1:] {
		if d.Type != first.Type || d.Required != first.Required || d.Label != first.Label {
			return true
		}
	}
	return false
}
