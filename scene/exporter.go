package scene

import (
	"context"

	"github.com/HyxiaoGe/prompthub/types"
)

// Dependencies exports a scene's dependency graph for visualization: one
// node per live prompt the pipeline references, one "composes" edge per step
// whose target exists, and the stored prompt-to-prompt edges touching the
// referenced set. Pure read.
func (s *Service) Dependencies(ctx context.Context, sceneID string) (*types.DependencyGraph, error) {
	sc, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	ids := sc.Pipeline.PromptIDs()
	byID, err := s.store.GetPromptsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	nodes := make([]types.DependencyNode, 0, len(byID))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		nodes = append(nodes, types.DependencyNode{
			ID:        p.ID,
			Name:      p.Name,
			ProjectID: p.ProjectID,
			Version:   p.CurrentVersion,
			IsShared:  p.IsShared,
		})
	}

	edges := make([]types.DependencyEdge, 0, len(sc.Pipeline.Steps))
	for _, step := range sc.Pipeline.Steps {
		if _, ok := byID[step.PromptRef.PromptID]; !ok {
			continue
		}
		edges = append(edges, types.DependencyEdge{
			Source:  sc.ID,
			Target:  step.PromptRef.PromptID,
			StepID:  step.ID,
			RefType: types.RefTypeComposes,
		})
	}

	refs, err := s.store.ListRefsTouching(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		edges = append(edges, types.DependencyEdge{
			Source:  ref.SourcePromptID,
			Target:  ref.TargetPromptID,
			RefType: ref.RefType,
		})
	}

	return &types.DependencyGraph{Nodes: nodes, Edges: edges}, nil
}
