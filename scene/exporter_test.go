package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

func TestDependencies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.seedPrompt("alpha", "alpha body")
	b := f.seedPrompt("beta", "beta body")

	require.NoError(t, f.st.CreateRef(f.ctx, &types.PromptRef{
		SourcePromptID: a.ID, TargetPromptID: b.ID,
		SourceProjectID: f.proj.ID, TargetProjectID: f.proj.ID,
		RefType: types.RefTypeIncludes,
	}))

	// alpha appears in two steps but must surface as one node.
	sc, err := f.svc.Create(f.ctx, CreateRequest{
		ProjectID: f.proj.ID, Slug: "flow", Name: "Flow",
		Pipeline: pipelineRaw(t, stepRef("s1", a.ID), stepRef("s2", b.ID), stepRef("s3", a.ID)),
	})
	require.NoError(t, err)

	graph, err := f.svc.Dependencies(f.ctx, sc.ID)
	require.NoError(t, err)

	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, types.DependencyNode{
		ID: a.ID, Name: "alpha", ProjectID: f.proj.ID, Version: "1.0.0",
	}, graph.Nodes[0])
	assert.Equal(t, b.ID, graph.Nodes[1].ID)

	require.Len(t, graph.Edges, 4)
	assert.Equal(t, types.DependencyEdge{
		Source: sc.ID, Target: a.ID, StepID: "s1", RefType: types.RefTypeComposes,
	}, graph.Edges[0])
	assert.Equal(t, types.DependencyEdge{
		Source: sc.ID, Target: b.ID, StepID: "s2", RefType: types.RefTypeComposes,
	}, graph.Edges[1])
	assert.Equal(t, types.DependencyEdge{
		Source: sc.ID, Target: a.ID, StepID: "s3", RefType: types.RefTypeComposes,
	}, graph.Edges[2])
	assert.Equal(t, types.DependencyEdge{
		Source: a.ID, Target: b.ID, RefType: types.RefTypeIncludes,
	}, graph.Edges[3])
}

func TestDependenciesSkipsDeletedPrompts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.seedPrompt("alpha", "alpha body")
	b := f.seedPrompt("beta", "beta body")

	require.NoError(t, f.st.CreateRef(f.ctx, &types.PromptRef{
		SourcePromptID: a.ID, TargetPromptID: b.ID,
		SourceProjectID: f.proj.ID, TargetProjectID: f.proj.ID,
		RefType: types.RefTypeIncludes,
	}))

	sc, err := f.svc.Create(f.ctx, CreateRequest{
		ProjectID: f.proj.ID, Slug: "flow", Name: "Flow",
		Pipeline: pipelineRaw(t, stepRef("s1", a.ID), stepRef("s2", b.ID)),
	})
	require.NoError(t, err)

	require.NoError(t, f.st.SoftDeletePrompt(f.ctx, b.ID))

	graph, err := f.svc.Dependencies(f.ctx, sc.ID)
	require.NoError(t, err)

	// The deleted prompt drops out of the nodes and loses its step edge,
	// but stored ref rows still appear so the UI can flag the dangling link.
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, a.ID, graph.Nodes[0].ID)

	require.Len(t, graph.Edges, 2)
	assert.Equal(t, "s1", graph.Edges[0].StepID)
	assert.Equal(t, types.DependencyEdge{
		Source: a.ID, Target: b.ID, RefType: types.RefTypeIncludes,
	}, graph.Edges[1])
}

func TestDependenciesSharedFlagCarried(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	other := &types.Project{Slug: "other", Name: "Other"}
	require.NoError(t, f.st.CreateProject(f.ctx, other))

	foreign := &types.Prompt{
		ProjectID: other.ID, Slug: "shared", Name: "shared",
		Content: "body", Format: "text", TemplateEngine: "jinja2",
		CurrentVersion: "2.0.0", IsShared: true,
	}
	require.NoError(t, f.st.CreatePrompt(f.ctx, foreign))

	sc, err := f.svc.Create(f.ctx, CreateRequest{
		ProjectID: f.proj.ID, Slug: "flow", Name: "Flow",
		Pipeline: pipelineRaw(t, stepRef("s1", foreign.ID)),
	})
	require.NoError(t, err)

	graph, err := f.svc.Dependencies(f.ctx, sc.ID)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, types.DependencyNode{
		ID: foreign.ID, Name: "shared", ProjectID: other.ID, Version: "2.0.0", IsShared: true,
	}, graph.Nodes[0])
}

func TestDependenciesEmptyPipeline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sc, err := f.svc.Create(f.ctx, CreateRequest{
		ProjectID: f.proj.ID, Slug: "empty", Name: "Empty",
		Pipeline: pipelineRaw(t),
	})
	require.NoError(t, err)

	graph, err := f.svc.Dependencies(f.ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, graph.Nodes)
	assert.Empty(t, graph.Edges)
}

func TestDependenciesMissingScene(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Dependencies(f.ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
