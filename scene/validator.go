package scene

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/HyxiaoGe/prompthub/depgraph"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// validatePipeline checks the semantic rules a pipeline document must hold
// before it is persisted: every referenced prompt is live, cross-project
// prompts are shared, and the reference graph under the prompt set stays
// acyclic.
func (s *Service) validatePipeline(ctx context.Context, tx store.Tx, pipeline types.PipelineConfig, projectID string) error {
	ids := pipeline.PromptIDs()
	if len(ids) == 0 {
		return nil
	}

	byID, err := tx.GetPromptsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.NotFound(fmt.Sprintf("prompts not found: %s", strings.Join(missing, ", "))).
			WithDetails(map[string]any{"missing_prompt_ids": missing})
	}

	for _, id := range ids {
		p := byID[id]
		if p.ProjectID != projectID && !p.IsShared {
			return apperrors.PermissionDenied(fmt.Sprintf(
				"prompt %q (%s) is not shared and belongs to another project", p.Name, p.ID))
		}
	}

	return depgraph.NewResolver(tx).ValidatePipelineAcyclic(ctx, ids)
}
