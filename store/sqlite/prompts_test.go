package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/types"
)

func TestPromptRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("rt")
	p := &types.Prompt{
		ProjectID:      proj.ID,
		Slug:           "greeting",
		Name:           "Greeting",
		Description:    "says hello",
		Content:        "Hello {{ name }}!",
		Format:         "text",
		TemplateEngine: "jinja2",
		Variables: []types.VariableDef{
			{Name: "name", Type: "string", Required: true},
			{Name: "tone", Type: "string", Required: false, Default: "friendly", EnumValues: []string{"friendly", "formal"}},
		},
		Tags:           []string{"greeting", "demo"},
		Category:       "chat",
		IsShared:       true,
		CurrentVersion: "1.0.0",
		CreatedBy:      "alice",
	}
	require.NoError(t, env.Store.CreatePrompt(env.Ctx, p))

	got, err := env.Store.GetPrompt(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Content, got.Content)
	assert.Equal(t, p.Variables, got.Variables)
	assert.Equal(t, []string{"greeting", "demo"}, got.Tags)
	assert.Equal(t, "chat", got.Category)
	assert.True(t, got.IsShared)
	assert.Nil(t, got.DeletedAt)

	bySlug, err := env.Store.GetPromptBySlug(env.Ctx, proj.ID, "greeting")
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySlug.ID)
}

func TestPromptSlugUniqueAmongLive(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("slugs")
	first := env.SeedPrompt(proj.ID, "taken")

	err := env.Store.CreatePrompt(env.Ctx, &types.Prompt{
		ProjectID: proj.ID, Slug: "taken", Name: "Dup",
		Format: "text", TemplateEngine: "jinja2", CurrentVersion: "1.0.0",
	})
	require.True(t, apperrors.Is(err, apperrors.CodeConflict))

	// A soft-deleted prompt releases its slug.
	require.NoError(t, env.Store.SoftDeletePrompt(env.Ctx, first.ID))
	err = env.Store.CreatePrompt(env.Ctx, &types.Prompt{
		ProjectID: proj.ID, Slug: "taken", Name: "Reuse",
		Format: "text", TemplateEngine: "jinja2", CurrentVersion: "1.0.0",
	})
	assert.NoError(t, err)
}

func TestPromptSameSlugAcrossProjects(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	p1 := env.SeedProject("one")
	p2 := env.SeedProject("two")
	env.SeedPrompt(p1.ID, "shared-slug")
	env.SeedPrompt(p2.ID, "shared-slug")

	a, err := env.Store.GetPromptBySlug(env.Ctx, p1.ID, "shared-slug")
	require.NoError(t, err)
	b, err := env.Store.GetPromptBySlug(env.Ctx, p2.ID, "shared-slug")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSoftDeleteHidesPrompt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("sd")
	p := env.SeedPrompt(proj.ID, "gone")

	require.NoError(t, env.Store.SoftDeletePrompt(env.Ctx, p.ID))

	_, err := env.Store.GetPrompt(env.Ctx, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	_, err = env.Store.GetPromptBySlug(env.Ctx, proj.ID, "gone")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	// Double delete is a miss, not a second delete.
	err = env.Store.SoftDeletePrompt(env.Ctx, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	prompts, total, err := env.Store.ListPrompts(env.Ctx, store.PromptFilter{ProjectID: proj.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, prompts)
}

func TestGetPromptsByIDs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("bulk")
	a := env.SeedPrompt(proj.ID, "a")
	b := env.SeedPrompt(proj.ID, "b")
	deleted := env.SeedPrompt(proj.ID, "c")
	require.NoError(t, env.Store.SoftDeletePrompt(env.Ctx, deleted.ID))

	got, err := env.Store.GetPromptsByIDs(env.Ctx, []string{a.ID, b.ID, deleted.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, a.ID)
	assert.Contains(t, got, b.ID)

	empty, err := env.Store.GetPromptsByIDs(env.Ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListPromptsFilters(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("filters")
	other := env.SeedProject("filters-other")

	mk := func(projectID, slug, category string, shared bool, tags ...string) *types.Prompt {
		p := &types.Prompt{
			ProjectID: projectID, Slug: slug, Name: "Name " + slug,
			Description: "about " + slug, Format: "text", TemplateEngine: "jinja2",
			Category: category, IsShared: shared, Tags: tags, CurrentVersion: "1.0.0",
		}
		require.NoError(t, env.Store.CreatePrompt(env.Ctx, p))
		return p
	}

	mk(proj.ID, "summarize", "nlp", true, "summary", "llm")
	mk(proj.ID, "translate", "nlp", false, "i18n")
	mk(proj.ID, "greet", "chat", false)
	mk(other.ID, "summarize", "nlp", true, "summary")

	cases := []struct {
		name   string
		filter store.PromptFilter
		want   []string // expected slugs, any order
	}{
		{"by project", store.PromptFilter{ProjectID: proj.ID}, []string{"summarize", "translate", "greet"}},
		{"by slug", store.PromptFilter{ProjectID: proj.ID, Slug: "greet"}, []string{"greet"}},
		{"by category", store.PromptFilter{ProjectID: proj.ID, Category: "nlp"}, []string{"summarize", "translate"}},
		{"shared only", store.PromptFilter{SharedOnly: true}, []string{"summarize", "summarize"}},
		{"tag overlap", store.PromptFilter{ProjectID: proj.ID, Tags: []string{"llm", "i18n"}}, []string{"summarize", "translate"}},
		{"search name", store.PromptFilter{ProjectID: proj.ID, Search: "greet"}, []string{"greet"}},
		{"search description", store.PromptFilter{ProjectID: proj.ID, Search: "about translate"}, []string{"translate"}},
		{"no match", store.PromptFilter{ProjectID: proj.ID, Search: "nothing here"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, total, err := env.Store.ListPrompts(env.Ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), total)

			slugs := make([]string, 0, len(got))
			for _, p := range got {
				slugs = append(slugs, p.Slug)
			}
			assert.ElementsMatch(t, tc.want, slugs)
		})
	}
}

func TestListPromptsSorting(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("sorting")
	env.SeedPrompt(proj.ID, "banana")
	env.SeedPrompt(proj.ID, "apple")
	env.SeedPrompt(proj.ID, "cherry")

	got, _, err := env.Store.ListPrompts(env.Ctx, store.PromptFilter{
		ProjectID: proj.ID, SortBy: "slug", Order: "asc",
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "apple", got[0].Slug)
	assert.Equal(t, "banana", got[1].Slug)
	assert.Equal(t, "cherry", got[2].Slug)

	// Unknown sort fields fall back to created_at rather than injecting SQL.
	_, _, err = env.Store.ListPrompts(env.Ctx, store.PromptFilter{
		ProjectID: proj.ID, SortBy: "slug; DROP TABLE prompts",
	})
	assert.NoError(t, err)
}

func TestSetCurrentVersion(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	proj := env.SeedProject("ptr")
	p := env.SeedPrompt(proj.ID, "versioned")

	require.NoError(t, env.Store.SetCurrentVersion(env.Ctx, p.ID, "1.1.0"))
	got, err := env.Store.GetPrompt(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.CurrentVersion)

	err = env.Store.SetCurrentVersion(env.Ctx, "missing", "1.0.0")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
