package types

import (
	"encoding/json"
	"fmt"
)

// PipelineConfig is the ordered sequence of steps serialized as JSON under a
// scene's pipeline column.
type PipelineConfig struct {
	Steps []PipelineStep `json:"steps"`
}

// PipelineStep is one entry of a pipeline: a prompt reference plus per-step
// variable overrides, an optional guard condition, and an optional key under
// which the step's output is chained downstream.
type PipelineStep struct {
	ID        string         `json:"id"`
	PromptRef PromptRefSpec  `json:"prompt_ref"`
	Variables Vars           `json:"variables,omitempty"`
	Condition *StepCondition `json:"condition,omitempty"`
	OutputKey string         `json:"output_key,omitempty"`
}

// PromptRefSpec points a step at a prompt, optionally locked to an exact
// published version. An empty Version means "current".
type PromptRefSpec struct {
	PromptID string `json:"prompt_id"`
	Version  string `json:"version,omitempty"`
}

// StepCondition guards a step. The operator vocabulary is fixed; an
// unrecognized operator makes the condition evaluate false so the step is
// skipped rather than failing the resolve.
type StepCondition struct {
	Variable string `json:"variable"`
	Operator string `json:"operator"` // eq | neq | in | not_in | exists
	Value    any    `json:"value,omitempty"`
}

// Condition operators.
const (
	OpEq     = "eq"
	OpNeq    = "neq"
	OpIn     = "in"
	OpNotIn  = "not_in"
	OpExists = "exists"
)

// ChainKey returns the chain-context key for the step's output: the explicit
// output_key when set, the step ID otherwise.
func (s PipelineStep) ChainKey() string {
	if s.OutputKey != "" {
		return s.OutputKey
	}
	return s.ID
}

// PromptIDs returns the distinct prompt IDs referenced by the pipeline, in
// first-appearance order.
func (p PipelineConfig) PromptIDs() []string {
	seen := make(map[string]bool, len(p.Steps))
	ids := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		id := step.PromptRef.PromptID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ValidateStepIDs checks that every step carries a non-empty ID unique
// within the pipeline.
func (p PipelineConfig) ValidateStepIDs() error {
	seen := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d: missing id", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		seen[step.ID] = true
	}
	return nil
}

// ParsePipeline deserializes a pipeline document and validates step IDs.
func ParsePipeline(data []byte) (PipelineConfig, error) {
	var cfg PipelineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("parse pipeline: %w", err)
	}
	if err := cfg.ValidateStepIDs(); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}
