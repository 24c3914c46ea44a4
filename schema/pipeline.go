package schema

import (
	_ "embed"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed pipeline.schema.json
var embeddedPipelineSchema string

// PipelineSchemaLoader returns a gojsonschema loader for the embedded
// pipeline schema.
func PipelineSchemaLoader() gojsonschema.JSONLoader {
	return gojsonschema.NewStringLoader(embeddedPipelineSchema)
}

// PipelineSchema returns the embedded pipeline schema as a string.
func PipelineSchema() string {
	return embeddedPipelineSchema
}

// ValidatePipeline validates a raw pipeline document against the embedded
// schema. Structural checks only; step-ID uniqueness and prompt existence are
// enforced by the scene service on top of this.
func ValidatePipeline(data []byte) (*ValidationResult, error) {
	return ValidateJSONAgainstLoader(data, PipelineSchemaLoader())
}
