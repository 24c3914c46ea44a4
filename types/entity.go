// Package types defines the canonical data model shared by every layer of
// the service: projects, prompts, versions, references, scenes and call logs,
// plus the pipeline structures serialized into a scene's pipeline column.
package types

import (
	"encoding/json"
	"time"
)

// Project groups prompts and scenes under a globally unique slug.
type Project struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"` // kebab-case, globally unique
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Prompt is a named, versioned template owned by a project.
// A prompt with DeletedAt set is soft-deleted and excluded from all lookups.
type Prompt struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"project_id"`
	Slug           string        `json:"slug"` // unique within project among live prompts
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Content        string        `json:"content"`
	Format         string        `json:"format"`          // default "text"
	TemplateEngine string        `json:"template_engine"` // default "jinja2"
	Variables      []VariableDef `json:"variables"`
	Tags           []string      `json:"tags"` // lowercase, order preserved
	Category       string        `json:"category,omitempty"`
	IsShared       bool          `json:"is_shared"`
	CurrentVersion string        `json:"current_version"` // semver, default "1.0.0"
	CreatedBy      string        `json:"created_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty"`
}

// VariableDef declares one template variable: its type, whether the caller
// must supply it, an optional default, and an optional closed set of
// accepted string forms.
type VariableDef struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`     // default "string"
	Required    bool     `json:"required"` // default true
	Default     any      `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
	EnumValues  []string `json:"enum_values,omitempty"`
}

// UnmarshalJSON applies the declaration defaults (type "string",
// required true) when the fields are absent from the document.
func (v *VariableDef) UnmarshalJSON(data []byte) error {
	type alias VariableDef
	aux := alias{Type: "string", Required: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = VariableDef(aux)
	return nil
}

// PromptVersion is an immutable published snapshot of a prompt.
type PromptVersion struct {
	ID        string        `json:"id"`
	PromptID  string        `json:"prompt_id"`
	Version   string        `json:"version"` // semver x.y.z, unique per prompt
	Content   string        `json:"content"`
	Variables []VariableDef `json:"variables"`
	Changelog string        `json:"changelog,omitempty"`
	Status    string        `json:"status"` // "draft" | "published"
	CreatedBy string        `json:"created_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Version status values.
const (
	VersionStatusDraft     = "draft"
	VersionStatusPublished = "published"
)

// PromptRef is a directed edge between prompts: source depends on target.
type PromptRef struct {
	ID              string         `json:"id"`
	SourcePromptID  string         `json:"source_prompt_id"`
	TargetPromptID  string         `json:"target_prompt_id"`
	SourceProjectID string         `json:"source_project_id,omitempty"`
	TargetProjectID string         `json:"target_project_id,omitempty"`
	RefType         string         `json:"ref_type"` // e.g. "includes", "composes"
	OverrideConfig  map[string]any `json:"override_config"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Ref type values.
const (
	RefTypeIncludes = "includes"
	RefTypeComposes = "composes"
)

// Scene is an ordered pipeline composing one or more prompts into a single
// output.
type Scene struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	Slug          string         `json:"slug"` // unique within project
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Pipeline      PipelineConfig `json:"pipeline"`
	MergeStrategy string         `json:"merge_strategy"` // concat | chain | select_best
	Separator     string         `json:"separator"`      // default "\n\n"
	OutputFormat  string         `json:"output_format,omitempty"`
	CreatedBy     string         `json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Merge strategy values. MergeSelectBest is reserved: stored pipelines may
// carry it, and today it resolves to the first non-skipped output.
const (
	MergeConcat     = "concat"
	MergeChain      = "chain"
	MergeSelectBest = "select_best"
)

// DefaultSeparator joins concatenated step outputs unless the scene
// overrides it.
const DefaultSeparator = "\n\n"

// CallLog is one append-only observability record, emitted per resolve or
// render. Optional string fields use "" for absent; the store writes NULLs.
type CallLog struct {
	ID              string    `json:"id"`
	PromptID        string    `json:"prompt_id,omitempty"`
	SceneID         string    `json:"scene_id,omitempty"`
	PromptVersion   string    `json:"prompt_version,omitempty"`
	CallerSystem    string    `json:"caller_system,omitempty"`
	CallerIP        string    `json:"caller_ip,omitempty"`
	InputVariables  Vars      `json:"input_variables,omitempty"`
	RenderedContent string    `json:"rendered_content,omitempty"`
	TokenCount      int       `json:"token_count,omitempty"`
	ResponseTimeMs  int64     `json:"response_time_ms,omitempty"`
	QualityScore    *float64  `json:"quality_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// User is an API caller identified by an opaque bearer key.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	APIKey    string    `json:"-"` // never serialized in responses
	CreatedAt time.Time `json:"created_at"`
}
