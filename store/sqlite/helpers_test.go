package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HyxiaoGe/prompthub/types"
)

// testEnv bundles a file-backed test store with seed helpers. Each test gets
// its own database under t.TempDir; in-memory SQLite shares state across
// connections in the same process, so a temp file is the safer isolation.
type testEnv struct {
	t     *testing.T
	Store *Store
	Ctx   context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{t: t, Store: newTestStore(t), Ctx: context.Background()}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err, "open test database")

	t.Cleanup(func() {
		require.NoError(t, s.Close(), "close test database")
	})
	return s
}

func (e *testEnv) SeedProject(slug string) *types.Project {
	e.t.Helper()
	p := &types.Project{Slug: slug, Name: "Project " + slug}
	require.NoError(e.t, e.Store.CreateProject(e.Ctx, p))
	return p
}

func (e *testEnv) SeedPrompt(projectID, slug string) *types.Prompt {
	e.t.Helper()
	p := &types.Prompt{
		ProjectID:      projectID,
		Slug:           slug,
		Name:           "Prompt " + slug,
		Content:        "Hello {{ name }}",
		Format:         "text",
		TemplateEngine: "jinja2",
		Variables:      []types.VariableDef{{Name: "name", Type: "string", Required: true}},
		CurrentVersion: "1.0.0",
	}
	require.NoError(e.t, e.Store.CreatePrompt(e.Ctx, p))
	return p
}

func (e *testEnv) SeedVersion(promptID, version string) *types.PromptVersion {
	e.t.Helper()
	v := &types.PromptVersion{
		PromptID: promptID,
		Version:  version,
		Content:  "content " + version,
		Status:   types.VersionStatusPublished,
	}
	require.NoError(e.t, e.Store.CreateVersion(e.Ctx, v))
	return v
}

func (e *testEnv) SeedScene(projectID, slug string, steps ...types.PipelineStep) *types.Scene {
	e.t.Helper()
	sc := &types.Scene{
		ProjectID:     projectID,
		Slug:          slug,
		Name:          "Scene " + slug,
		Pipeline:      types.PipelineConfig{Steps: steps},
		MergeStrategy: types.MergeConcat,
		Separator:     types.DefaultSeparator,
	}
	require.NoError(e.t, e.Store.CreateScene(e.Ctx, sc))
	return sc
}

func (e *testEnv) SeedRef(sourceID, targetID, refType string) *types.PromptRef {
	e.t.Helper()
	r := &types.PromptRef{
		SourcePromptID: sourceID,
		TargetPromptID: targetID,
		RefType:        refType,
	}
	require.NoError(e.t, e.Store.CreateRef(e.Ctx, r))
	return r
}

func step(id, promptID string) types.PipelineStep {
	return types.PipelineStep{ID: id, PromptRef: types.PromptRefSpec{PromptID: promptID}}
}
