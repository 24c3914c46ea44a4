package types

// StepResult records the outcome of one pipeline step during a resolve.
// Skipped steps carry empty prompt name, version and content plus the skip
// reason.
type StepResult struct {
	StepID          string `json:"step_id"`
	PromptID        string `json:"prompt_id"`
	PromptName      string `json:"prompt_name"`
	Version         string `json:"version"`
	RenderedContent string `json:"rendered_content"`
	Skipped         bool   `json:"skipped"`
	SkipReason      string `json:"skip_reason,omitempty"`
}

// SceneResolveResult is the full outcome of resolving a scene.
type SceneResolveResult struct {
	SceneID            string       `json:"scene_id"`
	SceneName          string       `json:"scene_name"`
	MergeStrategy      string       `json:"merge_strategy"`
	FinalContent       string       `json:"final_content"`
	Steps              []StepResult `json:"steps"`
	TotalTokenEstimate int          `json:"total_token_estimate"`
}

// RenderResult is the outcome of rendering a single prompt directly.
type RenderResult struct {
	PromptID        string `json:"prompt_id"`
	Version         string `json:"version"`
	RenderedContent string `json:"rendered_content"`
	VariablesUsed   Vars   `json:"variables_used"`
}

// DependencyNode is one prompt in an exported dependency graph.
type DependencyNode struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	Version   string `json:"version"` // the prompt's current_version
	IsShared  bool   `json:"is_shared"`
}

// DependencyEdge is one directed edge in an exported dependency graph.
// Scene-to-prompt edges carry the step ID and ref type "composes";
// prompt-to-prompt edges carry the stored ref type.
type DependencyEdge struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	StepID  string `json:"step_id,omitempty"`
	RefType string `json:"ref_type"`
}

// DependencyGraph is the UI-facing graph exported for a scene.
type DependencyGraph struct {
	Nodes []DependencyNode `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}
