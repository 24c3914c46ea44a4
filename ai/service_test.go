package ai

// These tests swap the process-wide completer, so they stay serial.

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyxiaoGe/prompthub/config"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/prompts"
	"github.com/HyxiaoGe/prompthub/store/storetest"
	"github.com/HyxiaoGe/prompthub/template"
	"github.com/HyxiaoGe/prompthub/types"
)

type completerFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

func (f completerFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

func install(t *testing.T, fn completerFunc) {
	t.Helper()
	SetClient(fn)
	t.Cleanup(ResetClient)
}

func newFixture(t *testing.T) (*Service, *storetest.Store, *types.Project) {
	t.Helper()
	st := storetest.New()
	proj := &types.Project{Slug: "assistant", Name: "Assistant"}
	require.NoError(t, st.CreateProject(context.Background(), proj))
	svc := NewService(st, prompts.NewService(st, template.NewRenderer()), config.Default())
	return svc, st, proj
}

func seedBatchPrompt(t *testing.T, st *storetest.Store, projectID, slug, content string) *types.Prompt {
	t.Helper()
	p := &types.Prompt{
		ProjectID: projectID, Slug: slug, Name: slug, Content: content,
		Format: "text", TemplateEngine: "jinja2", CurrentVersion: "1.0.0",
	}
	require.NoError(t, st.CreatePrompt(context.Background(), p))
	return p
}

func TestGenerate(t *testing.T) {
	svc, st, _ := newFixture(t)

	var got CompletionRequest
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		got = req
		// Fenced reply exercises the markdown stripping.
		content := "```json\n" +
			`{"candidates": [{"content": "Hello {{ name }}", "name": "Greeting", "slug": "greeting",` +
			` "variables": [{"name": "name", "type": "string", "required": true}], "rationale": "simple and direct"}]}` +
			"\n```"
		return &Completion{Content: content, Model: "gpt-4o-mini", PromptTokens: 120, CompletionTokens: 80}, nil
	})

	res, err := svc.Generate(context.Background(), GenerateRequest{Description: "a welcome greeting"})
	require.NoError(t, err)

	assert.Equal(t, "generate", got.Operation)
	assert.True(t, got.JSONReply)
	assert.Contains(t, got.User, "Generate 3 prompt candidates.")
	assert.Contains(t, got.User, "a welcome greeting")
	assert.Contains(t, got.System, "expert prompt engineer")

	require.Len(t, res.Candidates, 1)
	cand := res.Candidates[0]
	assert.Equal(t, "greeting", cand.Slug)
	assert.Equal(t, "Hello {{ name }}", cand.Content)
	require.Len(t, cand.Variables, 1)
	assert.Equal(t, "name", cand.Variables[0].Name)
	assert.True(t, cand.Variables[0].Required)
	assert.Equal(t, "gpt-4o-mini", res.ModelUsed)
	assert.Nil(t, res.SavedPromptIDs)

	logs := st.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "ai_generate", logs[0].CallerSystem)
	assert.Equal(t, 200, logs[0].TokenCount)
}

func TestGenerateAutoSave(t *testing.T) {
	svc, st, proj := newFixture(t)

	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		content := `{"candidates": [{"content": "Welcome, {{ user }}!", "name": "Welcome Email", "slug": "welcome-email",` +
			` "variables": [{"name": "user", "type": "string", "required": true}], "rationale": "friendly opener"}]}`
		return &Completion{Content: content, Model: "gpt-4o-mini"}, nil
	})

	res, err := svc.Generate(context.Background(), GenerateRequest{
		Description: "welcome email", AutoSave: true, ProjectID: proj.ID, By: "user-1",
	})
	require.NoError(t, err)
	require.Len(t, res.SavedPromptIDs, 1)

	p, err := st.GetPromptBySlug(context.Background(), proj.ID, "welcome-email")
	require.NoError(t, err)
	assert.Equal(t, res.SavedPromptIDs[0], p.ID)
	assert.Equal(t, "Welcome Email", p.Name)
	assert.Equal(t, "Welcome, {{ user }}!", p.Content)
	assert.Equal(t, "user-1", p.CreatedBy)

	versions, err := st.ListVersions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.0.0", versions[0].Version)
}

func TestGenerateValidation(t *testing.T) {
	svc, _, _ := newFixture(t)

	calls := 0
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		calls++
		return &Completion{Content: `{"candidates": []}`}, nil
	})

	cases := []struct {
		name string
		req  GenerateRequest
	}{
		{"empty description", GenerateRequest{}},
		{"count too high", GenerateRequest{Description: "x", Count: 7}},
		{"count negative", GenerateRequest{Description: "x", Count: -1}},
		{"auto save without project", GenerateRequest{Description: "x", AutoSave: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tc.req)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
		})
	}
	assert.Zero(t, calls)
}

func TestGenerateBadReply(t *testing.T) {
	svc, st, _ := newFixture(t)

	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		return &Completion{Content: "sorry, I cannot do that"}, nil
	})

	_, err := svc.Generate(context.Background(), GenerateRequest{Description: "x"})
	assert.True(t, apperrors.Is(err, apperrors.CodeLLMUnavailable))
	assert.Empty(t, st.CallLogs())
}

func TestGenerateLLMDown(t *testing.T) {
	svc, st, _ := newFixture(t)

	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		return nil, apperrors.LLMUnavailable("LLM service unavailable")
	})

	_, err := svc.Generate(context.Background(), GenerateRequest{Description: "x"})
	assert.True(t, apperrors.Is(err, apperrors.CodeLLMUnavailable))
	assert.Empty(t, st.CallLogs())
}

func TestEnhance(t *testing.T) {
	svc, st, _ := newFixture(t)

	var got CompletionRequest
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		got = req
		return &Completion{
			Content:          `{"enhanced_content": "Greet {{ name }} warmly.", "improvements": ["tightened wording"]}`,
			Model:            "gpt-4o-mini",
			PromptTokens:     50,
			CompletionTokens: 30,
		}, nil
	})

	res, err := svc.Enhance(context.Background(), EnhanceRequest{Content: "Say hi to {{ name }}"})
	require.NoError(t, err)

	assert.Equal(t, "enhance", got.Operation)
	assert.Contains(t, got.User, "clarity, specificity, structure")
	assert.Contains(t, got.User, "Say hi to {{ name }}")

	assert.Equal(t, "Say hi to {{ name }}", res.OriginalContent)
	assert.Equal(t, "Greet {{ name }} warmly.", res.EnhancedContent)
	assert.Equal(t, []string{"tightened wording"}, res.Improvements)

	logs := st.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "ai_enhance", logs[0].CallerSystem)
	assert.Equal(t, 80, logs[0].TokenCount)
}

func TestEnhanceCustomAspects(t *testing.T) {
	svc, _, _ := newFixture(t)

	var got CompletionRequest
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		got = req
		return &Completion{Content: `{"enhanced_content": "x", "improvements": []}`}, nil
	})

	_, err := svc.Enhance(context.Background(), EnhanceRequest{Content: "x", Aspects: []string{"tone"}})
	require.NoError(t, err)
	assert.Contains(t, got.User, "aspects: tone")
}

func TestEnhanceEmptyContent(t *testing.T) {
	svc, _, _ := newFixture(t)
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		t.Error("unexpected LLM call")
		return nil, nil
	})

	_, err := svc.Enhance(context.Background(), EnhanceRequest{Content: "   "})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestVariants(t *testing.T) {
	svc, st, _ := newFixture(t)

	var got CompletionRequest
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		got = req
		content := `{"variants": [` +
			`{"variant_type": "concise", "content": "Hi {{ name }}", "description": "short"},` +
			`{"variant_type": "detailed", "content": "Hello dear {{ name }}, welcome!", "description": "longer"}]}`
		return &Completion{Content: content, Model: "gpt-4o-mini"}, nil
	})

	res, err := svc.Variants(context.Background(), VariantsRequest{Content: "Hello {{ name }}"})
	require.NoError(t, err)

	assert.Equal(t, "variants", got.Operation)
	assert.Contains(t, got.User, "Generate 3 variants of types: concise, detailed, creative")

	require.Len(t, res.Variants, 2)
	assert.Equal(t, "concise", res.Variants[0].VariantType)
	assert.Equal(t, "Hi {{ name }}", res.Variants[0].Content)

	logs := st.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "ai_variants", logs[0].CallerSystem)
}

func TestEvaluate(t *testing.T) {
	svc, st, _ := newFixture(t)

	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		content := `{"overall_score": 4.2, "criteria_scores": {"clarity": 4.5, "specificity": 3.9}, "suggestions": ["name the audience"]}`
		return &Completion{Content: content, Model: "gpt-4o-mini", PromptTokens: 60, CompletionTokens: 40}, nil
	})

	res, err := svc.Evaluate(context.Background(), EvaluateRequest{Content: "Summarize {{ text }}"})
	require.NoError(t, err)

	assert.InDelta(t, 4.2, res.OverallScore, 1e-9)
	assert.InDelta(t, 4.5, res.CriteriaScores["clarity"], 1e-9)
	assert.Equal(t, []string{"name the audience"}, res.Suggestions)

	logs := st.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "ai_evaluate", logs[0].CallerSystem)
	assert.Equal(t, 100, logs[0].TokenCount)
	require.NotNil(t, logs[0].QualityScore)
	assert.InDelta(t, 4.2, *logs[0].QualityScore, 1e-9)
}

func TestEvaluateBatch(t *testing.T) {
	svc, st, proj := newFixture(t)
	a := seedBatchPrompt(t, st, proj.ID, "alpha", "alpha body")
	b := seedBatchPrompt(t, st, proj.ID, "beta", "beta body")
	c := seedBatchPrompt(t, st, proj.ID, "gamma", "gamma body")

	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		switch {
		case strings.Contains(req.User, "alpha body"):
			return &Completion{Content: `{"overall_score": 4.0, "criteria_scores": {"clarity": 4.0}, "suggestions": []}`, Model: "stub-model"}, nil
		case strings.Contains(req.User, "beta body"):
			return nil, apperrors.LLMUnavailable("LLM service unavailable")
		default:
			return &Completion{Content: `{"overall_score": 2.5, "criteria_scores": {"clarity": 2.0}, "suggestions": ["clarify intent"]}`, Model: "stub-model"}, nil
		}
	})

	res, err := svc.EvaluateBatch(context.Background(), EvaluateBatchRequest{
		PromptIDs: []string{a.ID, b.ID, c.ID},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)

	// Results keep request order regardless of completion order.
	assert.Equal(t, a.ID, res.Results[0].PromptID)
	assert.InDelta(t, 4.0, res.Results[0].OverallScore, 1e-9)
	assert.Empty(t, res.Results[0].Error)

	assert.Equal(t, b.ID, res.Results[1].PromptID)
	assert.Zero(t, res.Results[1].OverallScore)
	assert.Equal(t, "LLM service unavailable", res.Results[1].Error)

	assert.Equal(t, c.ID, res.Results[2].PromptID)
	assert.Equal(t, []string{"clarify intent"}, res.Results[2].Suggestions)

	assert.Equal(t, "stub-model", res.ModelUsed)

	logs := st.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "ai_evaluate_batch", logs[0].CallerSystem)
}

func TestEvaluateBatchMissingPromptFailsBatch(t *testing.T) {
	svc, st, proj := newFixture(t)
	a := seedBatchPrompt(t, st, proj.ID, "alpha", "alpha body")

	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		return &Completion{Content: `{"overall_score": 3, "criteria_scores": {}, "suggestions": []}`, Model: "stub-model"}, nil
	})

	_, err := svc.EvaluateBatch(context.Background(), EvaluateBatchRequest{
		PromptIDs: []string{a.ID, "ghost"},
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.Empty(t, st.CallLogs())
}

func TestEvaluateBatchValidation(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.EvaluateBatch(context.Background(), EvaluateBatchRequest{})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = "id"
	}
	_, err = svc.EvaluateBatch(context.Background(), EvaluateBatchRequest{PromptIDs: ids})
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "at most 10 prompts per batch", appErr.Message)
}

func TestEvaluateBatchBoundsConcurrency(t *testing.T) {
	st := storetest.New()
	proj := &types.Project{Slug: "assistant", Name: "Assistant"}
	require.NoError(t, st.CreateProject(context.Background(), proj))

	cfg := config.Default()
	cfg.LLMBatchConcurrency = 2
	svc := NewService(st, prompts.NewService(st, template.NewRenderer()), cfg)

	ids := make([]string, 0, 6)
	for _, slug := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		ids = append(ids, seedBatchPrompt(t, st, proj.ID, slug, slug+" body").ID)
	}

	var (
		mu        sync.Mutex
		cur, peak int
	)
	install(t, func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		mu.Lock()
		cur++
		if cur > peak {
			peak = cur
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		cur--
		mu.Unlock()
		return &Completion{Content: `{"overall_score": 3, "criteria_scores": {}, "suggestions": []}`, Model: "stub-model"}, nil
	})

	res, err := svc.EvaluateBatch(context.Background(), EvaluateBatchRequest{PromptIDs: ids})
	require.NoError(t, err)
	assert.Len(t, res.Results, 6)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)
}
