package scene

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/metrics"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// skipReasonCondition is recorded on steps whose guard evaluated false.
const skipReasonCondition = "Condition not met"

// ResolveRequest carries the caller's variables and identity for a resolve.
type ResolveRequest struct {
	Variables    types.Vars
	CallerSystem string
	CallerIP     string
}

// Resolve executes a scene's pipeline: steps run in declared order, each
// guarded by its condition, rendered against three-tier variable precedence
// (prompt defaults, then caller input overlaid with chain context, then
// step overrides), and merged per the scene's strategy. The call log is
// written inside the same transaction; a failed log write is reported but
// never fails the resolve.
func (s *Service) Resolve(ctx context.Context, sceneID string, req ResolveRequest) (*types.SceneResolveResult, error) {
	start := time.Now()

	result, err := s.resolve(ctx, sceneID, req, start)

	elapsed := time.Since(start)
	status := "success"
	stepCount := 0
	if err != nil {
		status = "error"
	} else {
		stepCount = len(result.Steps)
	}
	metrics.RecordSceneResolve(status, elapsed.Seconds(), stepCount)

	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "scene resolved",
		"scene_id", result.SceneID,
		"steps", stepCount,
		"response_time_ms", elapsed.Milliseconds())
	return result, nil
}

func (s *Service) resolve(ctx context.Context, sceneID string, req ResolveRequest, start time.Time) (*types.SceneResolveResult, error) {
	var result *types.SceneResolveResult

	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		sc, err := tx.GetScene(ctx, sceneID)
		if err != nil {
			return err
		}

		chainContext := make(types.Vars)
		stepResults := make([]types.StepResult, 0, len(sc.Pipeline.Steps))

		for _, step := range sc.Pipeline.Steps {
			evalVars := types.MergeVars(req.Variables, chainContext, step.Variables)

			if step.Condition != nil && !EvaluateCondition(*step.Condition, evalVars) {
				stepResults = append(stepResults, types.StepResult{
					StepID:     step.ID,
					PromptID:   step.PromptRef.PromptID,
					Skipped:    true,
					SkipReason: skipReasonCondition,
				})
				continue
			}

			prompt, content, version, err := s.fetchStepContent(ctx, tx, sc, step.PromptRef)
			if err != nil {
				return err
			}

			// The renderer supplies tier one (prompt defaults); evalVars
			// already carries the two caller tiers in precedence order.
			rendered, _, err := s.renderer.Render(content, prompt.Variables, evalVars)
			if err != nil {
				metrics.RecordRenderError(apperrors.Reason(err))
				return err
			}

			if sc.MergeStrategy == types.MergeChain {
				chainContext[step.ChainKey()] = rendered
			}

			stepResults = append(stepResults, types.StepResult{
				StepID:          step.ID,
				PromptID:        prompt.ID,
				PromptName:      prompt.Name,
				Version:         version,
				RenderedContent: rendered,
			})
		}

		final := mergeOutputs(sc, stepResults)
		tokens := len(final) / 4

		logEntry := &types.CallLog{
			SceneID:         sc.ID,
			CallerSystem:    req.CallerSystem,
			CallerIP:        req.CallerIP,
			InputVariables:  req.Variables,
			RenderedContent: final,
			TokenCount:      tokens,
			ResponseTimeMs:  time.Since(start).Milliseconds(),
		}
		if err := tx.CreateCallLog(ctx, logEntry); err != nil {
			logger.WarnContext(ctx, "call log write failed", "scene_id", sc.ID, "error", err)
		}

		result = &types.SceneResolveResult{
			SceneID:            sc.ID,
			SceneName:          sc.Name,
			MergeStrategy:      sc.MergeStrategy,
			FinalContent:       final,
			Steps:              stepResults,
			TotalTokenEstimate: tokens,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fetchStepContent loads the step's prompt and the content its reference
// selects. A version-locked reference must hit an exact version row; an
// unlocked one follows the current_version pointer, falling back to the
// prompt's live content when the row predates versioning. Version rows are
// immutable, so lookups go through the cache.
func (s *Service) fetchStepContent(ctx context.Context, tx store.Tx, sc *types.Scene, ref types.PromptRefSpec) (*types.Prompt, string, string, error) {
	prompt, err := tx.GetPrompt(ctx, ref.PromptID)
	if err != nil {
		return nil, "", "", err
	}
	if prompt.ProjectID != sc.ProjectID && !prompt.IsShared {
		return nil, "", "", apperrors.PermissionDenied(fmt.Sprintf(
			"prompt %q is not shared and belongs to another project", prompt.Name))
	}

	name := ref.Version
	locked := name != ""
	if !locked {
		name = prompt.CurrentVersion
	}

	if v, ok := s.cache.Get(ctx, prompt.ID, name); ok {
		return prompt, v.Content, name, nil
	}

	v, err := tx.GetVersion(ctx, prompt.ID, name)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			if !locked {
				return prompt, prompt.Content, name, nil
			}
			return nil, "", "", apperrors.NotFound(fmt.Sprintf(
				"no version %q for prompt %q", name, prompt.Name))
		}
		return nil, "", "", err
	}

	s.cache.Put(ctx, v)
	return prompt, v.Content, name, nil
}

// EvaluateCondition applies a step guard to the evaluation variables.
// Values compare as JSON shapes. An unknown operator evaluates false, so the
// step skips instead of failing the resolve.
func EvaluateCondition(cond types.StepCondition, vars types.Vars) bool {
	v, _ := vars.Lookup(cond.Variable)

	switch cond.Operator {
	case types.OpEq:
		return reflect.DeepEqual(v, cond.Value)
	case types.OpNeq:
		return !reflect.DeepEqual(v, cond.Value)
	case types.OpIn:
		seq, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		return containsValue(seq, v)
	case types.OpNotIn:
		seq, ok := cond.Value.([]any)
		if !ok {
			return true
		}
		return !containsValue(seq, v)
	case types.OpExists:
		return v != nil
	default:
		return false
	}
}

func containsValue(seq []any, v any) bool {
	for _, item := range seq {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// mergeOutputs combines the non-skipped step outputs per the scene's
// strategy. select_best is a reserved hook for LLM-scored selection and
// currently stands in with the first output; an unrecognized strategy joins
// like concat so stored pipelines never fail on upgrade.
func mergeOutputs(sc *types.Scene, steps []types.StepResult) string {
	outputs := make([]string, 0, len(steps))
	for _, sr := range steps {
		if !sr.Skipped {
			outputs = append(outputs, sr.RenderedContent)
		}
	}

	switch sc.MergeStrategy {
	case types.MergeChain:
		if len(outputs) == 0 {
			return ""
		}
		return outputs[len(outputs)-1]
	case types.MergeSelectBest:
		if len(outputs) == 0 {
			return ""
		}
		return outputs[0]
	default:
		return strings.Join(outputs, sc.Separator)
	}
}
