package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/HyxiaoGe/prompthub/config"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/prompts"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

// Operation labels used in logs and metrics.
const (
	opGenerate = "generate"
	opEnhance  = "enhance"
	opVariants = "variants"
	opEvaluate = "evaluate"
	opLint     = "lint"
)

const (
	defaultLanguage   = "zh"
	defaultCandidates = 3
	maxCandidates     = 5
	maxBatchSize      = 10
)

var (
	defaultAspects      = []string{"clarity", "specificity", "structure"}
	defaultVariantTypes = []string{"concise", "detailed", "creative"}
	defaultCriteria     = []string{"clarity", "specificity", "completeness", "consistency"}
)

// Service implements the LLM-assisted prompt operations. Batch evaluation is
// bounded by a weighted semaphore sized from LLM_BATCH_CONCURRENCY.
type Service struct {
	store        store.Store
	prompts      *prompts.Service
	sem          *semaphore.Weighted
	defaultModel string
}

// NewService returns a Service over the given store. promptSvc persists
// auto-saved generation candidates.
func NewService(st store.Store, promptSvc *prompts.Service, cfg config.Settings) *Service {
	concurrency := cfg.LLMBatchConcurrency
	if concurrency < 1 {
		concurrency = 3
	}
	return &Service{
		store:        st,
		prompts:      promptSvc,
		sem:          semaphore.NewWeighted(int64(concurrency)),
		defaultModel: cfg.LLMDefaultModel,
	}
}

// ---- generate ----

const generateSystem = `You are an expert prompt engineer. Generate high-quality prompt candidates.
Return a JSON object with this exact structure:
{
  "candidates": [
    {
      "content": "the full prompt text",
      "name": "descriptive name for this prompt",
      "slug": "kebab-case-slug",
      "variables": [{"name": "var_name", "type": "string", "required": true, "description": "..."}],
      "rationale": "why this prompt design works"
    }
  ]
}`

// GenerateRequest asks the model for prompt candidates matching a
// description. With AutoSave set the candidates are persisted into ProjectID.
type GenerateRequest struct {
	Description  string
	TargetFormat string
	Language     string
	Count        int
	AutoSave     bool
	ProjectID    string
	By           string
}

// GenerateCandidate is one generated prompt proposal.
type GenerateCandidate struct {
	Content   string              `json:"content"`
	Name      string              `json:"name"`
	Slug      string              `json:"slug"`
	Variables []types.VariableDef `json:"variables"`
	Rationale string              `json:"rationale"`
}

// GenerateResult is the outcome of a generation call.
type GenerateResult struct {
	Candidates     []GenerateCandidate `json:"candidates"`
	ModelUsed      string              `json:"model_used"`
	SavedPromptIDs []string            `json:"saved_prompt_ids,omitempty"`
}

// Generate produces prompt candidates for a description and optionally saves
// them as prompts.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, apperrors.Validation("description is required")
	}
	if req.AutoSave && req.ProjectID == "" {
		return nil, apperrors.Validation("project_id is required when auto_save is set")
	}
	count, err := candidateCount(req.Count)
	if err != nil {
		return nil, err
	}
	format := req.TargetFormat
	if format == "" {
		format = "text"
	}

	user := fmt.Sprintf("Generate %d prompt candidates.\nDescription: %s\nTarget format: %s\nLanguage: %s\n",
		count, req.Description, format, language(req.Language))

	reply, err := processClient().Complete(ctx, CompletionRequest{
		Operation: opGenerate,
		System:    generateSystem,
		User:      user,
		JSONReply: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Candidates []GenerateCandidate `json:"candidates"`
	}
	if err := parseReply(reply.Content, &parsed); err != nil {
		return nil, err
	}

	s.logCall(ctx, &types.CallLog{
		CallerSystem: "ai_generate",
		TokenCount:   reply.PromptTokens + reply.CompletionTokens,
	})

	var savedIDs []string
	if req.AutoSave {
		savedIDs = make([]string, 0, len(parsed.Candidates))
		for _, cand := range parsed.Candidates {
			p, err := s.prompts.Create(ctx, prompts.CreateRequest{
				ProjectID: req.ProjectID,
				Slug:      cand.Slug,
				Name:      cand.Name,
				Content:   cand.Content,
				Variables: cand.Variables,
				By:        req.By,
			})
			if err != nil {
				return nil, err
			}
			savedIDs = append(savedIDs, p.ID)
		}
	}

	return &GenerateResult{
		Candidates:     parsed.Candidates,
		ModelUsed:      reply.Model,
		SavedPromptIDs: savedIDs,
	}, nil
}

// ---- enhance ----

const enhanceSystem = `You are an expert prompt engineer. Analyze and improve the given prompt.
Return a JSON object with this exact structure:
{
  "enhanced_content": "the improved prompt text",
  "improvements": ["description of improvement 1", "description of improvement 2"]
}`

// EnhanceRequest asks the model to improve existing template content.
type EnhanceRequest struct {
	Content  string
	Aspects  []string
	Language string
}

// EnhanceResult is the outcome of an enhancement call.
type EnhanceResult struct {
	OriginalContent string   `json:"original_content"`
	EnhancedContent string   `json:"enhanced_content"`
	Improvements    []string `json:"improvements"`
	ModelUsed       string   `json:"model_used"`
}

// Enhance rewrites the given content, focusing on the requested aspects.
func (s *Service) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.Validation("content is required")
	}
	aspects := req.Aspects
	if len(aspects) == 0 {
		aspects = defaultAspects
	}

	user := fmt.Sprintf("Improve this prompt focusing on these aspects: %s\nLanguage: %s\n\nOriginal prompt:\n%s",
		strings.Join(aspects, ", "), language(req.Language), req.Content)

	reply, err := processClient().Complete(ctx, CompletionRequest{
		Operation: opEnhance,
		System:    enhanceSystem,
		User:      user,
		JSONReply: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		EnhancedContent string   `json:"enhanced_content"`
		Improvements    []string `json:"improvements"`
	}
	if err := parseReply(reply.Content, &parsed); err != nil {
		return nil, err
	}

	s.logCall(ctx, &types.CallLog{
		CallerSystem: "ai_enhance",
		TokenCount:   reply.PromptTokens + reply.CompletionTokens,
	})

	return &EnhanceResult{
		OriginalContent: req.Content,
		EnhancedContent: parsed.EnhancedContent,
		Improvements:    parsed.Improvements,
		ModelUsed:       reply.Model,
	}, nil
}

// ---- variants ----

const variantsSystem = `You are an expert prompt engineer. Generate variants of the given prompt.
Return a JSON object with this exact structure:
{
  "variants": [
    {
      "variant_type": "concise",
      "content": "the variant prompt text",
      "description": "what makes this variant different"
    }
  ]
}`

// VariantsRequest asks the model for alternative phrasings of a prompt.
type VariantsRequest struct {
	Content      string
	VariantTypes []string
	Count        int
	Language     string
}

// VariantCandidate is one alternative phrasing.
type VariantCandidate struct {
	VariantType string `json:"variant_type"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// VariantsResult is the outcome of a variants call.
type VariantsResult struct {
	Variants  []VariantCandidate `json:"variants"`
	ModelUsed string             `json:"model_used"`
}

// Variants produces alternative phrasings of the given content.
func (s *Service) Variants(ctx context.Context, req VariantsRequest) (*VariantsResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.Validation("content is required")
	}
	count, err := candidateCount(req.Count)
	if err != nil {
		return nil, err
	}
	kinds := req.VariantTypes
	if len(kinds) == 0 {
		kinds = defaultVariantTypes
	}

	user := fmt.Sprintf("Generate %d variants of types: %s\nLanguage: %s\n\nOriginal prompt:\n%s",
		count, strings.Join(kinds, ", "), language(req.Language), req.Content)

	reply, err := processClient().Complete(ctx, CompletionRequest{
		Operation: opVariants,
		System:    variantsSystem,
		User:      user,
		JSONReply: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Variants []VariantCandidate `json:"variants"`
	}
	if err := parseReply(reply.Content, &parsed); err != nil {
		return nil, err
	}

	s.logCall(ctx, &types.CallLog{
		CallerSystem: "ai_variants",
		TokenCount:   reply.PromptTokens + reply.CompletionTokens,
	})

	return &VariantsResult{Variants: parsed.Variants, ModelUsed: reply.Model}, nil
}

// ---- evaluate ----

const evaluateSystem = `You are an expert prompt evaluator. Score the given prompt on each criterion from 0 to 5.
Return a JSON object with this exact structure:
{
  "overall_score": 3.5,
  "criteria_scores": {"clarity": 4.0, "specificity": 3.0},
  "suggestions": ["suggestion 1", "suggestion 2"]
}`

// EvaluateRequest asks the model to score template content.
type EvaluateRequest struct {
	Content  string
	Criteria []string
}

// EvaluateResult is the outcome of a single evaluation.
type EvaluateResult struct {
	OverallScore   float64            `json:"overall_score"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Suggestions    []string           `json:"suggestions"`
	ModelUsed      string             `json:"model_used"`
}

// EvaluateBatchRequest scores several stored prompts in one call.
type EvaluateBatchRequest struct {
	PromptIDs []string
	Criteria  []string
}

// EvaluateItemResult is the outcome for one prompt of a batch. Error is set
// when the LLM call for that prompt failed; the rest of the batch is
// unaffected.
type EvaluateItemResult struct {
	PromptID       string             `json:"prompt_id"`
	OverallScore   float64            `json:"overall_score"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Suggestions    []string           `json:"suggestions"`
	Error          string             `json:"error,omitempty"`
}

// EvaluateBatchResult is the outcome of a batch evaluation.
type EvaluateBatchResult struct {
	Results   []EvaluateItemResult `json:"results"`
	ModelUsed string               `json:"model_used"`
}

type evalReply struct {
	OverallScore   float64            `json:"overall_score"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Suggestions    []string           `json:"suggestions"`
}

// Evaluate scores the given content against the criteria.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.Validation("content is required")
	}
	criteria := req.Criteria
	if len(criteria) == 0 {
		criteria = defaultCriteria
	}

	parsed, reply, err := s.evaluateOne(ctx, req.Content, criteria)
	if err != nil {
		return nil, err
	}

	score := parsed.OverallScore
	s.logCall(ctx, &types.CallLog{
		CallerSystem: "ai_evaluate",
		TokenCount:   reply.PromptTokens + reply.CompletionTokens,
		QualityScore: &score,
	})

	return &EvaluateResult{
		OverallScore:   parsed.OverallScore,
		CriteriaScores: parsed.CriteriaScores,
		Suggestions:    parsed.Suggestions,
		ModelUsed:      reply.Model,
	}, nil
}

// EvaluateBatch scores up to maxBatchSize stored prompts concurrently. A
// missing prompt fails the whole batch; an LLM failure only marks its item.
func (s *Service) EvaluateBatch(ctx context.Context, req EvaluateBatchRequest) (*EvaluateBatchResult, error) {
	if len(req.PromptIDs) == 0 {
		return nil, apperrors.Validation("prompt_ids is required")
	}
	if len(req.PromptIDs) > maxBatchSize {
		return nil, apperrors.Validation(fmt.Sprintf("at most %d prompts per batch", maxBatchSize))
	}
	criteria := req.Criteria
	if len(criteria) == 0 {
		criteria = defaultCriteria
	}

	results := make([]EvaluateItemResult, len(req.PromptIDs))
	var (
		mu        sync.Mutex
		lastModel = s.defaultModel
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range req.PromptIDs {
		g.Go(func() error {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.sem.Release(1)

			p, err := s.store.GetPrompt(gctx, id)
			if err != nil {
				return err
			}

			item := EvaluateItemResult{PromptID: id}
			parsed, reply, err := s.evaluateOne(gctx, p.Content, criteria)
			if err != nil {
				if appErr, ok := apperrors.As(err); ok {
					item.Error = appErr.Message
				} else {
					item.Error = err.Error()
				}
				results[i] = item
				return nil
			}

			item.OverallScore = parsed.OverallScore
			item.CriteriaScores = parsed.CriteriaScores
			item.Suggestions = parsed.Suggestions
			results[i] = item

			mu.Lock()
			lastModel = reply.Model
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logCall(ctx, &types.CallLog{CallerSystem: "ai_evaluate_batch"})

	return &EvaluateBatchResult{Results: results, ModelUsed: lastModel}, nil
}

func (s *Service) evaluateOne(ctx context.Context, content string, criteria []string) (*evalReply, *Completion, error) {
	user := fmt.Sprintf("Evaluate this prompt on criteria: %s\n\nPrompt:\n%s",
		strings.Join(criteria, ", "), content)

	reply, err := processClient().Complete(ctx, CompletionRequest{
		Operation: opEvaluate,
		System:    evaluateSystem,
		User:      user,
		JSONReply: true,
	})
	if err != nil {
		return nil, nil, err
	}

	var parsed evalReply
	if err := parseReply(reply.Content, &parsed); err != nil {
		return nil, nil, err
	}
	return &parsed, reply, nil
}

// ---- helpers ----

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")
)

// parseReply decodes a JSON document from an LLM reply, tolerating markdown
// code fences around it.
func parseReply(text string, v any) error {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(stripped, "```") {
		stripped = fenceOpen.ReplaceAllString(stripped, "")
		stripped = fenceClose.ReplaceAllString(stripped, "")
	}
	if err := json.Unmarshal([]byte(stripped), v); err != nil {
		return apperrors.LLMUnavailable("failed to parse LLM response").WithCause(err)
	}
	return nil
}

func candidateCount(n int) (int, error) {
	if n == 0 {
		return defaultCandidates, nil
	}
	if n < 1 || n > maxCandidates {
		return 0, apperrors.Validation(fmt.Sprintf("count must be between 1 and %d", maxCandidates))
	}
	return n, nil
}

func language(lang string) string {
	if lang == "" {
		return defaultLanguage
	}
	return lang
}

// logCall writes a usage record. Logging failures never fail the operation.
func (s *Service) logCall(ctx context.Context, log *types.CallLog) {
	if err := s.store.CreateCallLog(ctx, log); err != nil {
		logger.WarnContext(ctx, "call log write failed", "caller_system", log.CallerSystem, "error", err)
	}
}
