package versions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store/storetest"
	"github.com/HyxiaoGe/prompthub/types"
)

func TestNextVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		current string
		bump    string
		want    string
		wantErr bool
	}{
		{"1.0.0", BumpPatch, "1.0.1", false},
		{"1.0.9", BumpPatch, "1.0.10", false},
		{"1.0.5", BumpMinor, "1.1.0", false},
		{"1.9.9", BumpMajor, "2.0.0", false},
		{"v2.3.4", BumpPatch, "2.3.5", false},
		{"1.0", BumpPatch, "", true},
		{"not-a-version", BumpPatch, "", true},
		{"1.0.0", "sideways", "", true},
		{"1.0.0", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.current+"/"+tc.bump, func(t *testing.T) {
			got, err := NextVersion(tc.current, tc.bump)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func newFixture(t *testing.T) (*Service, *storetest.Store, *types.Prompt) {
	t.Helper()
	st := storetest.New()

	proj := &types.Project{Slug: "proj", Name: "Proj"}
	require.NoError(t, st.CreateProject(context.Background(), proj))

	prompt := &types.Prompt{
		ProjectID:      proj.ID,
		Slug:           "greeting",
		Name:           "Greeting",
		Content:        "Hello {{ name }}",
		Format:         "text",
		TemplateEngine: "jinja2",
		Variables:      []types.VariableDef{{Name: "name", Type: "string", Required: true}},
		CurrentVersion: "1.0.0",
	}
	require.NoError(t, st.CreatePrompt(context.Background(), prompt))

	return NewService(st, nil), st, prompt
}

func TestPublishAdvancesPointer(t *testing.T) {
	t.Parallel()
	svc, st, prompt := newFixture(t)
	ctx := context.Background()

	v, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: BumpMinor, Changelog: "first cut", By: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.Version)
	assert.Equal(t, "Hello {{ name }}", v.Content)
	assert.Equal(t, types.VersionStatusPublished, v.Status)
	assert.Equal(t, "first cut", v.Changelog)

	got, err := st.GetPrompt(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.CurrentVersion)

	// Successive publishes keep stepping from the moved pointer.
	v2, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: BumpPatch})
	require.NoError(t, err)
	assert.Equal(t, "1.1.1", v2.Version)
}

func TestPublishSnapshotsOverrides(t *testing.T) {
	t.Parallel()
	svc, _, prompt := newFixture(t)
	ctx := context.Background()

	content := "Hi {{ name }}, welcome!"
	vars := []types.VariableDef{
		{Name: "name", Type: "string", Required: true},
		{Name: "team", Type: "string", Required: false},
	}
	v, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: BumpMajor, Content: &content, Variables: vars})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v.Version)
	assert.Equal(t, content, v.Content)
	assert.Len(t, v.Variables, 2)

	// The live prompt body is untouched; only the pointer moved.
	got, err := svc.Get(ctx, prompt.ID, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
}

func TestPublishInvalidBumpLeavesNothingBehind(t *testing.T) {
	t.Parallel()
	svc, st, prompt := newFixture(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: "bogus"})
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))

	versions, err := st.ListVersions(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	got, err := st.GetPrompt(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.CurrentVersion)
}

func TestPublishMissingPrompt(t *testing.T) {
	t.Parallel()
	svc, _, _ := newFixture(t)

	_, err := svc.Publish(context.Background(), "missing", PublishRequest{Bump: BumpPatch})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestGetExactVersion(t *testing.T) {
	t.Parallel()
	svc, _, prompt := newFixture(t)
	ctx := context.Background()

	published, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: BumpPatch})
	require.NoError(t, err)

	got, err := svc.Get(ctx, prompt.ID, published.Version)
	require.NoError(t, err)
	assert.Equal(t, published.ID, got.ID)

	_, err = svc.Get(ctx, prompt.ID, "9.9.9")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound),
		"a named version with no row is a miss, never a fallback")
}

func TestGetCurrentFallsBackToLivePrompt(t *testing.T) {
	t.Parallel()
	svc, _, prompt := newFixture(t)
	ctx := context.Background()

	// No version row exists yet; "current" synthesizes one from the prompt.
	for _, name := range []string{Current, ""} {
		got, err := svc.Get(ctx, prompt.ID, name)
		require.NoError(t, err)
		assert.Empty(t, got.ID)
		assert.Equal(t, "1.0.0", got.Version)
		assert.Equal(t, prompt.Content, got.Content)
		assert.Equal(t, types.VersionStatusPublished, got.Status)
	}
}

func TestGetCurrentPrefersStoredRow(t *testing.T) {
	t.Parallel()
	svc, _, prompt := newFixture(t)
	ctx := context.Background()

	published, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: BumpMinor})
	require.NoError(t, err)

	got, err := svc.Get(ctx, prompt.ID, Current)
	require.NoError(t, err)
	assert.Equal(t, published.ID, got.ID)
	assert.Equal(t, "1.1.0", got.Version)
}

func TestGetMissingPrompt(t *testing.T) {
	t.Parallel()
	svc, _, _ := newFixture(t)

	_, err := svc.Get(context.Background(), "missing", Current)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	svc, _, prompt := newFixture(t)
	ctx := context.Background()

	for range 3 {
		_, err := svc.Publish(ctx, prompt.ID, PublishRequest{Bump: BumpPatch})
		require.NoError(t, err)
	}

	versions, err := svc.List(ctx, prompt.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "1.0.3", versions[0].Version)
	assert.Equal(t, "1.0.2", versions[1].Version)
	assert.Equal(t, "1.0.1", versions[2].Version)

	_, err = svc.List(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
