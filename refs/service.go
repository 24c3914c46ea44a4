// Package refs implements prompt reference edges: cycle-checked creation,
// listing, deletion and impact analysis.
package refs

import (
	"context"
	"fmt"
	"sort"

	"github.com/HyxiaoGe/prompthub/depgraph"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// CreateRequest carries the endpoints and kind of a new reference.
type CreateRequest struct {
	SourcePromptID string
	TargetPromptID string
	RefType        string // default "includes"
	OverrideConfig map[string]any
}

// PromptRefs groups a prompt's edges by direction.
type PromptRefs struct {
	Outgoing []types.PromptRef `json:"outgoing"`
	Incoming []types.PromptRef `json:"incoming"`
}

// Impact describes what a change to a prompt would touch: every live prompt
// that depends on it transitively, and every scene whose pipeline references
// it directly.
type Impact struct {
	PromptID          string         `json:"prompt_id"`
	DependentPrompts  []types.Prompt `json:"dependent_prompts"`
	ReferencingScenes []types.Scene  `json:"referencing_scenes"`
}

// Service implements reference operations on top of the store.
type Service struct {
	store    store.Store
	resolver *depgraph.Resolver
}

// NewService creates a reference service.
func NewService(st store.Store) *Service {
	return &Service{store: st, resolver: depgraph.NewResolver(st)}
}

// Create persists a new reference edge. Both endpoints must be live; a
// cross-project target must be shared; the edge must keep the graph acyclic.
// The cycle check and the insert share a transaction so concurrent creates
// cannot close a cycle between them.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.PromptRef, error) {
	refType := req.RefType
	if refType == "" {
		refType = types.RefTypeIncludes
	}
	override := req.OverrideConfig
	if override == nil {
		override = map[string]any{}
	}

	var ref *types.PromptRef
	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		source, err := tx.GetPrompt(ctx, req.SourcePromptID)
		if err != nil {
			return err
		}
		target, err := tx.GetPrompt(ctx, req.TargetPromptID)
		if err != nil {
			return err
		}
		if source.ProjectID != target.ProjectID && !target.IsShared {
			return apperrors.PermissionDenied(fmt.Sprintf("target prompt %q is not shared", target.Name))
		}

		if err := depgraph.NewResolver(tx).CheckNoCycles(ctx, source.ID, target.ID); err != nil {
			return err
		}

		ref = &types.PromptRef{
			SourcePromptID:  source.ID,
			TargetPromptID:  target.ID,
			SourceProjectID: source.ProjectID,
			TargetProjectID: target.ProjectID,
			RefType:         refType,
			OverrideConfig:  override,
		}
		return tx.CreateRef(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// ListForPrompt returns a prompt's outgoing and incoming edges.
func (s *Service) ListForPrompt(ctx context.Context, promptID string) (*PromptRefs, error) {
	if _, err := s.store.GetPrompt(ctx, promptID); err != nil {
		return nil, err
	}

	outgoing, err := s.store.ListRefsBySource(ctx, promptID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.store.ListRefsByTarget(ctx, promptID)
	if err != nil {
		return nil, err
	}
	return &PromptRefs{Outgoing: outgoing, Incoming: incoming}, nil
}

// Delete removes a reference edge.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRef(ctx, id)
}

// GetImpact reports the blast radius of changing a prompt.
func (s *Service) GetImpact(ctx context.Context, promptID string) (*Impact, error) {
	if _, err := s.store.GetPrompt(ctx, promptID); err != nil {
		return nil, err
	}

	graph, err := s.resolver.BuildFullGraph(ctx, []string{promptID})
	if err != nil {
		return nil, err
	}

	// Walk the edges backwards: whoever reaches promptID depends on it.
	reverse := make(map[string][]string, len(graph))
	for source, targets := range graph {
		for target := range targets {
			reverse[target] = append(reverse[target], source)
		}
	}

	seen := map[string]bool{promptID: true}
	queue := []string{promptID}
	var dependentIDs []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range reverse[current] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			dependentIDs = append(dependentIDs, dep)
			queue = append(queue, dep)
		}
	}

	byID, err := s.store.GetPromptsByIDs(ctx, dependentIDs)
	if err != nil {
		return nil, err
	}
	dependents := make([]types.Prompt, 0, len(byID))
	for _, id := range dependentIDs {
		if p, ok := byID[id]; ok {
			dependents = append(dependents, *p)
		}
	}
	sort.Slice(dependents, func(i, j int) bool {
		if dependents[i].Name != dependents[j].Name {
			return dependents[i].Name < dependents[j].Name
		}
		return dependents[i].ID < dependents[j].ID
	})

	scenes, err := s.store.ListScenesReferencingPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	return &Impact{
		PromptID:          promptID,
		DependentPrompts:  dependents,
		ReferencingScenes: scenes,
	}, nil
}
