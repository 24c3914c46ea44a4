// Package scene implements scene lifecycle, pipeline validation, resolution
// and dependency-graph export.
//
// A scene is an ordered pipeline of prompt references persisted as a JSON
// document. Writes validate the document shape against the embedded schema,
// step-ID uniqueness, referenced-prompt existence and sharing, and graph
// acyclicity; resolves trust those write-time guarantees and never re-check.
package scene

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HyxiaoGe/prompthub/cache"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/schema"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/template"
	"github.com/HyxiaoGe/prompthub/types"
)

// CreateRequest carries the fields of a new scene. Pipeline is the raw JSON
// document; a nil Separator means "use the default".
type CreateRequest struct {
	ProjectID     string
	Slug          string
	Name          string
	Description   string
	Pipeline      json.RawMessage
	MergeStrategy string
	Separator     *string
	OutputFormat  string
	By            string
}

// UpdateRequest carries the mutable scene fields. Nil means "leave as is".
type UpdateRequest struct {
	Name          *string
	Description   *string
	Pipeline      json.RawMessage
	MergeStrategy *string
	Separator     *string
	OutputFormat  *string
}

// Service implements scene operations on top of the store, the renderer and
// the version cache. The cache may be nil.
type Service struct {
	store    store.Store
	renderer *template.Renderer
	cache    *cache.VersionCache
}

// NewService creates a scene service.
func NewService(st store.Store, r *template.Renderer, vc *cache.VersionCache) *Service {
	return &Service{store: st, renderer: r, cache: vc}
}

// Create validates and persists a new scene.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.Scene, error) {
	if req.Name == "" {
		return nil, apperrors.Validation("scene name is required")
	}
	if !types.IsValidSlug(req.Slug) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid slug %q: must be kebab-case", req.Slug))
	}

	pipeline, err := parsePipelineDocument(req.Pipeline)
	if err != nil {
		return nil, err
	}

	strategy := req.MergeStrategy
	if strategy == "" {
		strategy = types.MergeConcat
	}
	if !validMergeStrategy(strategy) {
		return nil, apperrors.Validation(fmt.Sprintf(
			"invalid merge strategy %q: must be concat, chain or select_best", strategy))
	}

	separator := types.DefaultSeparator
	if req.Separator != nil {
		separator = *req.Separator
	}

	sc := &types.Scene{
		ProjectID:     req.ProjectID,
		Slug:          req.Slug,
		Name:          req.Name,
		Description:   req.Description,
		Pipeline:      pipeline,
		MergeStrategy: strategy,
		Separator:     separator,
		OutputFormat:  req.OutputFormat,
		CreatedBy:     req.By,
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProject(ctx, req.ProjectID); err != nil {
			return err
		}
		if err := s.validatePipeline(ctx, tx, pipeline, req.ProjectID); err != nil {
			return err
		}
		return tx.CreateScene(ctx, sc)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Get returns one scene by ID.
func (s *Service) Get(ctx context.Context, id string) (*types.Scene, error) {
	return s.store.GetScene(ctx, id)
}

// List returns scenes newest first, optionally narrowed to one project.
func (s *Service) List(ctx context.Context, projectID string, page store.Page) ([]types.Scene, int, error) {
	return s.store.ListScenes(ctx, projectID, page)
}

// Update applies the set fields of req. A new pipeline document runs through
// the full validation the create path applies.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*types.Scene, error) {
	if req.MergeStrategy != nil && !validMergeStrategy(*req.MergeStrategy) {
		return nil, apperrors.Validation(fmt.Sprintf(
			"invalid merge strategy %q: must be concat, chain or select_best", *req.MergeStrategy))
	}

	var pipeline types.PipelineConfig
	if req.Pipeline != nil {
		var err error
		pipeline, err = parsePipelineDocument(req.Pipeline)
		if err != nil {
			return nil, err
		}
	}

	var sc *types.Scene
	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		var err error
		sc, err = tx.GetScene(ctx, id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			if *req.Name == "" {
				return apperrors.Validation("scene name is required")
			}
			sc.Name = *req.Name
		}
		if req.Description != nil {
			sc.Description = *req.Description
		}
		if req.Pipeline != nil {
			if err := s.validatePipeline(ctx, tx, pipeline, sc.ProjectID); err != nil {
				return err
			}
			sc.Pipeline = pipeline
		}
		if req.MergeStrategy != nil {
			sc.MergeStrategy = *req.MergeStrategy
		}
		if req.Separator != nil {
			sc.Separator = *req.Separator
		}
		if req.OutputFormat != nil {
			sc.OutputFormat = *req.OutputFormat
		}

		return tx.UpdateScene(ctx, sc)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Delete removes a scene. Call logs referencing it stay behind.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteScene(ctx, id)
}

// parsePipelineDocument validates a raw pipeline document against the
// embedded schema and deserializes it.
func parsePipelineDocument(raw json.RawMessage) (types.PipelineConfig, error) {
	if len(raw) == 0 {
		return types.PipelineConfig{}, apperrors.Validation("pipeline is required")
	}

	result, err := schema.ValidatePipeline(raw)
	if err != nil {
		return types.PipelineConfig{}, apperrors.Validation("pipeline is not valid JSON").WithCause(err)
	}
	if !result.Valid {
		fields := make([]map[string]any, 0, len(result.Errors))
		for _, e := range result.Errors {
			fields = append(fields, map[string]any{"field": e.Field, "error": e.Description})
		}
		return types.PipelineConfig{}, apperrors.Validation("pipeline does not match the schema").
			WithDetails(map[string]any{"errors": fields})
	}

	pipeline, err := types.ParsePipeline(raw)
	if err != nil {
		return types.PipelineConfig{}, apperrors.Validation(err.Error())
	}
	return pipeline, nil
}

func validMergeStrategy(s string) bool {
	switch s {
	case types.MergeConcat, types.MergeChain, types.MergeSelectBest:
		return true
	}
	return false
}
