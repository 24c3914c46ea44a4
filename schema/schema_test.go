package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

func TestValidateJSONAgainstLoader_Valid(t *testing.T) {
	schemaJSON := `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	loader := gojsonschema.NewStringLoader(schemaJSON)
	data := []byte(`{"name": "test"}`)

	result, err := ValidateJSONAgainstLoader(data, loader)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateJSONAgainstLoader_Invalid(t *testing.T) {
	schemaJSON := `{
		"type": "object",
		"required": ["name", "version"],
		"properties": {
			"name": {"type": "string"},
			"version": {"type": "string"}
		}
	}`
	loader := gojsonschema.NewStringLoader(schemaJSON)
	data := []byte(`{"name": "test"}`)

	result, err := ValidateJSONAgainstLoader(data, loader)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)

	// Check that error has field information
	found := false
	for _, e := range result.Errors {
		if e.Field == "(root)" && e.Description != "" {
			found = true
		}
	}
	assert.True(t, found, "expected validation error with field info, got: %v", result.Errors)
}

func TestValidateJSONAgainstLoader_InvalidJSON(t *testing.T) {
	schemaJSON := `{"type": "object"}`
	loader := gojsonschema.NewStringLoader(schemaJSON)
	data := []byte(`{not valid json}`)

	_, err := ValidateJSONAgainstLoader(data, loader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestValidationError_Error(t *testing.T) {
	t.Run("with value", func(t *testing.T) {
		e := ValidationError{
			Field:       "steps.0.id",
			Description: "is required",
			Value:       "bad",
		}
		assert.Contains(t, e.Error(), "steps.0.id")
		assert.Contains(t, e.Error(), "is required")
		assert.Contains(t, e.Error(), "bad")
	})

	t.Run("without value", func(t *testing.T) {
		e := ValidationError{
			Field:       "steps",
			Description: "is required",
		}
		assert.Equal(t, "steps: is required", e.Error())
	})
}

func TestValidatePipeline_Valid(t *testing.T) {
	data := []byte(`{
		"steps": [
			{
				"id": "intro",
				"prompt_ref": {"prompt_id": "p-1"},
				"variables": {"tone": "formal"},
				"output_key": "intro"
			},
			{
				"id": "summary",
				"prompt_ref": {"prompt_id": "p-2", "version": "1.2.0"},
				"condition": {"variable": "verbose", "operator": "eq", "value": true}
			}
		]
	}`)

	result, err := ValidatePipeline(data)
	require.NoError(t, err)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidatePipeline_EmptySteps(t *testing.T) {
	// An empty pipeline is structurally valid; it resolves to empty output.
	result, err := ValidatePipeline([]byte(`{"steps": []}`))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidatePipeline_MissingSteps(t *testing.T) {
	result, err := ValidatePipeline([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidatePipeline_StepMissingPromptRef(t *testing.T) {
	data := []byte(`{"steps": [{"id": "s1"}]}`)

	result, err := ValidatePipeline(data)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	found := false
	for _, e := range result.Errors {
		if e.Description != "" {
			found = true
		}
	}
	assert.True(t, found, "expected descriptive errors, got: %v", result.Errors)
}

func TestValidatePipeline_ConditionMissingOperator(t *testing.T) {
	data := []byte(`{
		"steps": [
			{
				"id": "s1",
				"prompt_ref": {"prompt_id": "p-1"},
				"condition": {"variable": "env"}
			}
		]
	}`)

	result, err := ValidatePipeline(data)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidatePipeline_UnknownField(t *testing.T) {
	data := []byte(`{
		"steps": [
			{
				"id": "s1",
				"prompt_ref": {"prompt_id": "p-1"},
				"retries": 3
			}
		]
	}`)

	result, err := ValidatePipeline(data)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestPipelineSchema_Embedded(t *testing.T) {
	assert.NotEmpty(t, PipelineSchema())
	assert.Contains(t, PipelineSchema(), "prompt_ref")
}
