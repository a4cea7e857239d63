package api

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "mistrihub/internal/common/errors"
)

// Request body schemas. Validation runs against the decoded generic map
// before the typed decode, so malformed payloads fail with a field-level
// message instead of a decode error.
var createJobSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []interface{}{"title", "description", "category", "budget", "location"},
	"properties": map[string]interface{}{
		"title":       map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 120},
		"description": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 4000},
		"category":    map[string]interface{}{"type": "string", "minLength": 1},
		"location":    map[string]interface{}{"type": "string", "minLength": 1},
		"budget": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"min", "max"},
			"properties": map[string]interface{}{
				"min": map[string]interface{}{"type": "integer", "minimum": 0},
				"max": map[string]interface{}{"type": "integer", "minimum": 0},
			},
		},
		"photos": map[string]interface{}{
			"type":     "array",
			"maxItems": 5,
			"items":    map[string]interface{}{"type": "string"},
		},
	},
}

var scheduleJobSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []interface{}{"scheduledDate"},
	"properties": map[string]interface{}{
		"scheduledDate": map[string]interface{}{"type": "string", "format": "date-time"},
	},
}

// validateSchema checks data against schema and folds violations into one
// Validation error.
func validateSchema(data map[string]interface{}, schema map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return apperrors.Internal("schema validation", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return apperrors.Validation(strings.Join(msgs, "; "))
}
