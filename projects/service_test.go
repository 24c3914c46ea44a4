package projects

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/store/storetest"
	"github.com/HyxiaoGe/prompthub/types"
)

func newFixture(t *testing.T) (*Service, *storetest.Store) {
	t.Helper()
	st := storetest.New()
	return NewService(st), st
}

func TestCreate(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "Chatbot", Description: "assistant prompts", By: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "chatbot", p.Slug)
	assert.Equal(t, "u1", p.CreatedBy)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chatbot", got.Name)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"empty name", CreateRequest{Slug: "ok-slug"}},
		{"empty slug", CreateRequest{Name: "X"}},
		{"uppercase slug", CreateRequest{Slug: "Chatbot", Name: "X"}},
		{"underscore slug", CreateRequest{Slug: "chat_bot", Name: "X"}},
		{"trailing hyphen", CreateRequest{Slug: "chatbot-", Name: "X"}},
		{"double hyphen", CreateRequest{Slug: "chat--bot", Name: "X"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "A"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "B"})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestGetDetailCounts(t *testing.T) {
	t.Parallel()
	svc, st := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "Chatbot"})
	require.NoError(t, err)

	for i := range 2 {
		require.NoError(t, st.CreatePrompt(ctx, &types.Prompt{
			ProjectID: p.ID, Slug: fmt.Sprintf("p-%d", i), Name: "P",
			Content: "hi", Format: "text", TemplateEngine: "jinja2", CurrentVersion: "1.0.0",
		}))
	}
	require.NoError(t, st.CreateScene(ctx, &types.Scene{
		ProjectID: p.ID, Slug: "flow", Name: "Flow",
		Pipeline: types.PipelineConfig{Steps: []types.PipelineStep{}},
	}))

	d, err := svc.GetDetail(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, d.PromptCount)
	assert.Equal(t, 1, d.SceneCount)
	assert.Equal(t, "chatbot", d.Project.Slug)
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := svc.Create(ctx, CreateRequest{Slug: fmt.Sprintf("proj-%d", i), Name: "P"})
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, store.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "proj-2", items[0].Slug)
	assert.Equal(t, "proj-1", items[1].Slug)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "Chatbot"})
	require.NoError(t, err)

	name := "Chatbot v2"
	desc := "updated"
	got, err := svc.Update(ctx, p.ID, UpdateRequest{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Chatbot v2", got.Name)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, "chatbot", got.Slug)

	// Nil fields leave the stored values alone.
	got, err = svc.Update(ctx, p.ID, UpdateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Chatbot v2", got.Name)

	empty := ""
	_, err = svc.Update(ctx, p.ID, UpdateRequest{Name: &empty})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestUpdateMissing(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)

	_, err := svc.Update(context.Background(), "nope", UpdateRequest{})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestDeleteEmptyProject(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "Chatbot"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))

	_, err = svc.Get(ctx, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestDeleteRefusedWhileLivePromptsRemain(t *testing.T) {
	t.Parallel()
	svc, st := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{Slug: "chatbot", Name: "Chatbot"})
	require.NoError(t, err)

	prompt := &types.Prompt{
		ProjectID: p.ID, Slug: "greeting", Name: "G",
		Content: "hi", Format: "text", TemplateEngine: "jinja2", CurrentVersion: "1.0.0",
	}
	require.NoError(t, st.CreatePrompt(ctx, prompt))

	err = svc.Delete(ctx, p.ID)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	assert.Equal(t, 1, appErr.Details["live_prompts"])

	// Soft-deleting the prompt frees the project.
	require.NoError(t, st.SoftDeletePrompt(ctx, prompt.ID))
	require.NoError(t, svc.Delete(ctx, p.ID))
}

func TestDeleteMissing(t *testing.T) {
	t.Parallel()
	svc, _ := newFixture(t)

	err := svc.Delete(context.Background(), "nope")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
