// Package projects implements project lifecycle operations.
//
// Projects group prompts and scenes under a globally unique slug. Deleting a
// project is refused while it still owns live prompts; scenes and refs are
// removed with it.
package projects

import (
	"context"
	"fmt"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// CreateRequest carries the fields of a new project.
type CreateRequest struct {
	Slug        string
	Name        string
	Description string
	By          string
}

// UpdateRequest carries the mutable project fields. Nil means "leave as is".
type UpdateRequest struct {
	Name        *string
	Description *string
}

// Detail is a project together with the counts shown on its detail view.
type Detail struct {
	Project     *types.Project
	PromptCount int
	SceneCount  int
}

// Service implements project operations on top of the store.
type Service struct {
	store store.Store
}

// NewService creates a project service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create validates and persists a new project.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.Project, error) {
	if req.Name == "" {
		return nil, apperrors.Validation("project name is required")
	}
	if !types.IsValidSlug(req.Slug) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid slug %q: must be kebab-case", req.Slug))
	}

	p := &types.Project{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.By,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one project by ID.
func (s *Service) Get(ctx context.Context, id string) (*types.Project, error) {
	return s.store.GetProject(ctx, id)
}

// GetDetail returns a project with its live prompt and scene counts.
func (s *Service) GetDetail(ctx context.Context, id string) (*Detail, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	promptCount, err := s.store.CountLivePrompts(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	_, sceneCount, err := s.store.ListScenes(ctx, p.ID, store.Page{Number: 1, Size: 1})
	if err != nil {
		return nil, err
	}

	return &Detail{Project: p, PromptCount: promptCount, SceneCount: sceneCount}, nil
}

// List returns projects newest first, with the total count.
func (s *Service) List(ctx context.Context, page store.Page) ([]types.Project, int, error) {
	return s.store.ListProjects(ctx, page)
}

// Update applies the non-nil fields of req. The slug is immutable.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*types.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperrors.Validation("project name is required")
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project. It refuses while the project still owns live
// prompts; the count check and the delete share a transaction so a racing
// prompt create cannot slip between them.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}

		n, err := tx.CountLivePrompts(ctx, p.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Validation(fmt.Sprintf("project still owns %d live prompts", n)).
				WithDetails(map[string]any{"live_prompts": n})
		}

		return tx.DeleteProject(ctx, p.ID)
	})
}
