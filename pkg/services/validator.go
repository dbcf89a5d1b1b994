package services

import (
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// caseUpdateSchema constrains update payloads at the field level. It runs
// before any version check so bad payloads never reach the classifier.
const caseUpdateSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"title":          {"type": "string", "minLength": 1, "maxLength": 500},
		"description":    {"type": "string", "maxLength": 10000},
		"status":         {"type": "string", "enum": ["open", "in_review", "closed", "void", "archived"]},
		"assignedLawyerId": {"type": ["string", "null"], "maxLength": 100},
		"clientName":     {"type": "string", "maxLength": 300},
		"opposingParty":  {"type": "string", "maxLength": 300},
		"courtName":      {"type": "string", "maxLength": 300},
		"claimAmount":    {"type": ["number", "null"], "minimum": 0},
		"openedAt":       {"type": ["string", "null"], "format": "date-time"},
		"nextHearingAt":  {"type": ["string", "null"], "format": "date-time"},
		"participants": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["name"],
				"additionalProperties": false,
				"properties": {
					"name":  {"type": "string", "minLength": 1},
					"role":  {"type": "string"},
					"email": {"type": "string"},
					"phone": {"type": "string"}
				}
			}
		},
		"hearings": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["title", "scheduled_at"],
				"additionalProperties": false,
				"properties": {
					"title":        {"type": "string", "minLength": 1},
					"scheduled_at": {"type": "string", "format": "date-time"},
					"location":     {"type": "string"},
					"notes":        {"type": "string"}
				}
			}
		},
		"tags": {
			"type": ["array", "null"],
			"items": {"type": "string", "minLength": 1}
		},
		"notes": {"type": "string", "maxLength": 50000}
	}
}`

// UpdateValidator validates case update payloads against a JSON Schema.
// The schema is compiled once at construction.
type UpdateValidator struct {
	schema *gojsonschema.Schema
}

// NewUpdateValidator compiles the case update payload schema
func NewUpdateValidator() (*UpdateValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(caseUpdateSchema))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile case update schema")
	}
	return &UpdateValidator{schema: schema}, nil
}

// ValidatePayload checks the payload against the schema and returns a
// *ValidationError listing every failed constraint.
func (v *UpdateValidator) ValidatePayload(payload map[string]interface{}) error {
	if payload == nil {
		return &ValidationError{Fields: []FieldError{{Field: "payload", Message: "payload is required"}}}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to validate payload")
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Fields: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		ve.Fields = append(ve.Fields, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return ve
}
