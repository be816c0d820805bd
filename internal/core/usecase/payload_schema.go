package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/titledesk/timeline/internal/core/domain"
)

// Per-kind JSON Schemas guarding the HTTP submit path. Compiled once at
// package load; a broken schema is a programming error.
var payloadSchemas = map[domain.EventKind]*santhosh.Schema{
	domain.KindComment: compileSchema("comment.json", `{
		"type": "object",
		"properties": {
			"text": {"type": "string", "minLength": 1}
		},
		"required": ["text"],
		"additionalProperties": false
	}`),
	domain.KindFieldChange: compileSchema("field_change.json", `{
		"type": "object",
		"properties": {
			"field": {"type": "string", "minLength": 1},
			"old_value": {"type": "string"},
			"new_value": {"type": "string"}
		},
		"required": ["field"],
		"additionalProperties": false
	}`),
	domain.KindLifecycle: compileSchema("lifecycle.json", `{
		"type": "object",
		"properties": {
			"action": {"type": "string", "minLength": 1}
		},
		"required": ["action"],
		"additionalProperties": false
	}`),
	domain.KindAutoUpdate: compileSchema("auto_update.json", `{
		"type": "object",
		"properties": {
			"field": {"type": "string", "minLength": 1},
			"new_value": {"type": "string"}
		},
		"required": ["field"],
		"additionalProperties": false
	}`),
}

func compileSchema(name, src string) *santhosh.Schema {
	c := santhosh.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader([]byte(src))); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// ValidatePayload checks a submit payload against the schema of its kind.
// Failures surface as domain.ErrInvalidEvent so the HTTP layer maps them
// to a 400.
func ValidatePayload(kind domain.EventKind, raw json.RawMessage) error {
	schema, ok := payloadSchemas[kind]
	if !ok {
		return domain.ErrInvalidEvent
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	return nil
}
