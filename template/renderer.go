// Package template provides template rendering and variable substitution.
//
// The renderer expands {{ variable }} placeholders and the two control
// constructs scenes rely on:
//   - conditionals: {% if expr %} ... {% elif expr %} ... {% else %} ... {% endif %}
//   - loops:        {% for item in sequence %} ... {% endfor %}
//   - comments:     {# ignored #}
//
// Rendering is strict and sandboxed. Referencing an undefined variable
// fails instead of expanding to an empty string. Expressions are pure data
// lookups: dotted paths traverse mapping values only, underscore-prefixed
// path segments are rejected, and there are no filters or calls. Output is
// never auto-escaped; rendered prompts are LLM inputs, not HTML.
//
// The renderer is pure: no I/O, and input maps are never mutated.
package template

import (
	"github.com/HyxiaoGe/prompthub/types"
)

// Renderer validates a variable contract and expands template text.
type Renderer struct{}

// NewRenderer creates a new template renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render validates provided against the variable definitions and expands the
// template. It returns the expanded text and the effective variable map the
// expansion saw (defaults overlaid with provided values).
//
// Failures are typed render errors: missing required variables, enum
// violations, undefined references, syntax errors, and sandbox violations.
func (r *Renderer) Render(content string, defs []types.VariableDef, provided types.Vars) (string, types.Vars, error) {
	vars, err := ValidateVariables(defs, provided)
	if err != nil {
		return "", nil, err
	}

	out, err := r.Expand(content, vars)
	if err != nil {
		return "", nil, err
	}
	return out, vars, nil
}

// Expand parses the template and evaluates it against vars, skipping the
// variable-contract checks. Use Render unless the contract has already been
// applied.
func (r *Renderer) Expand(content string, vars types.Vars) (string, error) {
	nodes, err := parse(content)
	if err != nil {
		return "", err
	}
	return eval(nodes, vars)
}
