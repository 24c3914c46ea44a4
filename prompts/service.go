// Package prompts implements prompt lifecycle operations: create with its
// initial version, list with filters, update, soft delete, direct rendering,
// sharing and forking.
package prompts

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/metrics"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/template"
	"github.com/HyxiaoGe/prompthub/types"
)

// InitialVersion is the version every new prompt starts at.
const InitialVersion = "1.0.0"

// renderCallerSystem labels call logs emitted by the direct render path when
// the caller does not identify itself.
const renderCallerSystem = "render_api"

// CreateRequest carries the fields of a new prompt.
type CreateRequest struct {
	ProjectID      string
	Slug           string
	Name           string
	Description    string
	Content        string
	Format         string
	TemplateEngine string
	Variables      []types.VariableDef
	Tags           []string
	Category       string
	IsShared       bool
	By             string
}

// UpdateRequest carries the mutable prompt fields. Nil means "leave as is";
// an empty non-nil Variables or Tags slice clears the field. The slug is
// immutable.
type UpdateRequest struct {
	Name           *string
	Description    *string
	Content        *string
	Format         *string
	TemplateEngine *string
	Variables      []types.VariableDef
	Tags           []string
	Category       *string
}

// RenderRequest carries the caller-provided variables and identity for a
// direct render.
type RenderRequest struct {
	Variables    types.Vars
	CallerSystem string
	CallerIP     string
}

// ForkRequest carries the target of a fork. Slug overrides the default
// "<source-slug>-fork".
type ForkRequest struct {
	TargetProjectID string
	Slug            string
	By              string
}

// Service implements prompt operations on top of the store and the renderer.
type Service struct {
	store    store.Store
	renderer *template.Renderer
}

// NewService creates a prompt service.
func NewService(st store.Store, r *template.Renderer) *Service {
	return &Service{store: st, renderer: r}
}

// Create validates and persists a new prompt together with its 1.0.0 version
// row, in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.Prompt, error) {
	if req.Name == "" {
		return nil, apperrors.Validation("prompt name is required")
	}
	if req.Content == "" {
		return nil, apperrors.Validation("prompt content is required")
	}
	if !types.IsValidSlug(req.Slug) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid slug %q: must be kebab-case", req.Slug))
	}

	format := req.Format
	if format == "" {
		format = "text"
	}
	engine := req.TemplateEngine
	if engine == "" {
		engine = "jinja2"
	}

	p := &types.Prompt{
		ProjectID:      req.ProjectID,
		Slug:           req.Slug,
		Name:           req.Name,
		Description:    req.Description,
		Content:        req.Content,
		Format:         format,
		TemplateEngine: engine,
		Variables:      req.Variables,
		Tags:           normalizeTags(req.Tags),
		Category:       req.Category,
		IsShared:       req.IsShared,
		CurrentVersion: InitialVersion,
		CreatedBy:      req.By,
	}

	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProject(ctx, req.ProjectID); err != nil {
			return err
		}
		if err := tx.CreatePrompt(ctx, p); err != nil {
			return err
		}
		return tx.CreateVersion(ctx, &types.PromptVersion{
			PromptID:  p.ID,
			Version:   InitialVersion,
			Content:   p.Content,
			Variables: p.Variables,
			Changelog: "Initial version",
			Status:    types.VersionStatusPublished,
			CreatedBy: req.By,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one live prompt by ID.
func (s *Service) Get(ctx context.Context, id string) (*types.Prompt, error) {
	return s.store.GetPrompt(ctx, id)
}

// List returns live prompts matching the filter, with the total count.
func (s *Service) List(ctx context.Context, filter store.PromptFilter) ([]types.Prompt, int, error) {
	if err := validateSort(filter); err != nil {
		return nil, 0, err
	}
	return s.store.ListPrompts(ctx, filter)
}

// ListShared returns live shared prompts across all projects.
func (s *Service) ListShared(ctx context.Context, filter store.PromptFilter) ([]types.Prompt, int, error) {
	if err := validateSort(filter); err != nil {
		return nil, 0, err
	}
	filter.SharedOnly = true
	filter.ProjectID = ""
	return s.store.ListPrompts(ctx, filter)
}

// Update applies the set fields of req.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*types.Prompt, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperrors.Validation("prompt name is required")
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Content != nil {
		if *req.Content == "" {
			return nil, apperrors.Validation("prompt content is required")
		}
		p.Content = *req.Content
	}
	if req.Format != nil {
		p.Format = *req.Format
	}
	if req.TemplateEngine != nil {
		p.TemplateEngine = *req.TemplateEngine
	}
	if req.Variables != nil {
		p.Variables = req.Variables
	}
	if req.Tags != nil {
		p.Tags = normalizeTags(req.Tags)
	}
	if req.Category != nil {
		p.Category = *req.Category
	}

	if err := s.store.UpdatePrompt(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete soft-deletes a prompt. Version rows and refs stay behind.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.SoftDeletePrompt(ctx, id)
}

// Render expands the prompt's live content against the caller's variables
// and appends a call log. A failed log write is reported but never fails the
// render.
func (s *Service) Render(ctx context.Context, promptID string, req RenderRequest) (*types.RenderResult, error) {
	start := time.Now()

	p, err := s.store.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	rendered, used, err := s.renderer.Render(p.Content, p.Variables, req.Variables)
	if err != nil {
		metrics.RecordRenderError(apperrors.Reason(err))
		return nil, err
	}

	system := req.CallerSystem
	if system == "" {
		system = renderCallerSystem
	}
	logEntry := &types.CallLog{
		PromptID:        p.ID,
		PromptVersion:   p.CurrentVersion,
		CallerSystem:    system,
		CallerIP:        req.CallerIP,
		InputVariables:  used,
		RenderedContent: rendered,
		TokenCount:      len(rendered) / 4,
		ResponseTimeMs:  time.Since(start).Milliseconds(),
	}
	if err := s.store.CreateCallLog(ctx, logEntry); err != nil {
		logger.WarnContext(ctx, "call log write failed", "prompt_id", p.ID, "error", err)
	}

	return &types.RenderResult{
		PromptID:        p.ID,
		Version:         p.CurrentVersion,
		RenderedContent: rendered,
		VariablesUsed:   used,
	}, nil
}

// Share marks a prompt visible to other projects.
func (s *Service) Share(ctx context.Context, id string) (*types.Prompt, error) {
	return s.setShared(ctx, id, true)
}

// Unshare withdraws a prompt from cross-project visibility. Existing refs
// and forks are untouched.
func (s *Service) Unshare(ctx context.Context, id string) (*types.Prompt, error) {
	return s.setShared(ctx, id, false)
}

func (s *Service) setShared(ctx context.Context, id string, shared bool) (*types.Prompt, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	p.IsShared = shared
	if err := s.store.UpdatePrompt(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Fork copies a prompt into a target project: content, variables and tags
// snapshotted by value, fresh 1.0.0 version row, and an "includes" ref from
// the fork back to its source, all in one transaction. Forking requires the
// source to be shared unless it already lives in the target project.
func (s *Service) Fork(ctx context.Context, sourceID string, req ForkRequest) (*types.Prompt, error) {
	if req.Slug != "" && !types.IsValidSlug(req.Slug) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid slug %q: must be kebab-case", req.Slug))
	}

	var fork *types.Prompt
	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		source, err := tx.GetPrompt(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := tx.GetProject(ctx, req.TargetProjectID)
		if err != nil {
			return err
		}
		if !source.IsShared && source.ProjectID != target.ID {
			return apperrors.PermissionDenied(fmt.Sprintf("prompt %q is not shared", source.Name))
		}

		slug := req.Slug
		if slug == "" {
			slug = source.Slug + "-fork"
		}

		fork = &types.Prompt{
			ProjectID:      target.ID,
			Slug:           slug,
			Name:           source.Name + " (fork)",
			Description:    source.Description,
			Content:        source.Content,
			Format:         source.Format,
			TemplateEngine: source.TemplateEngine,
			Variables:      copyVariables(source.Variables),
			Tags:           append([]string(nil), source.Tags...),
			Category:       source.Category,
			IsShared:       false,
			CurrentVersion: InitialVersion,
			CreatedBy:      req.By,
		}
		if err := tx.CreatePrompt(ctx, fork); err != nil {
			return err
		}

		if err := tx.CreateVersion(ctx, &types.PromptVersion{
			PromptID:  fork.ID,
			Version:   InitialVersion,
			Content:   fork.Content,
			Variables: fork.Variables,
			Changelog: "Forked from " + source.Slug,
			Status:    types.VersionStatusPublished,
			CreatedBy: req.By,
		}); err != nil {
			return err
		}

		return tx.CreateRef(ctx, &types.PromptRef{
			SourcePromptID:  fork.ID,
			TargetPromptID:  source.ID,
			SourceProjectID: target.ID,
			TargetProjectID: source.ProjectID,
			RefType:         types.RefTypeIncludes,
		})
	})
	if err != nil {
		return nil, err
	}
	return fork, nil
}

var sortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"name":            true,
	"slug":            true,
	"current_version": true,
}

func validateSort(filter store.PromptFilter) error {
	if filter.SortBy != "" && !sortFields[filter.SortBy] {
		return apperrors.Validation(fmt.Sprintf(
			"invalid sort field %q: must be one of created_at, current_version, name, slug, updated_at",
			filter.SortBy))
	}
	switch filter.Order {
	case "", "asc", "desc":
		return nil
	default:
		return apperrors.Validation(fmt.Sprintf("invalid order %q: must be asc or desc", filter.Order))
	}
}

// normalizeTags lowercases and trims tags, dropping empties. Order is kept.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// copyVariables snapshots variable definitions so later edits to the source
// cannot reach the copy.
func copyVariables(defs []types.VariableDef) []types.VariableDef {
	if defs == nil {
		return nil
	}
	out := make([]types.VariableDef, len(defs))
	copy(out, defs)
	for i := range out {
		out[i].EnumValues = append([]string(nil), defs[i].EnumValues...)
	}
	return out
}
