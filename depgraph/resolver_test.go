package depgraph

import (
	"context"
	"testing"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

// staticRefs serves a fixed ref list, filtering by endpoint membership the
// way the store does.
type staticRefs struct {
	refs []types.PromptRef
}

func (s *staticRefs) ListRefsTouching(_ context.Context, promptIDs []string) ([]types.PromptRef, error) {
	member := make(map[string]bool, len(promptIDs))
	for _, id := range promptIDs {
		member[id] = true
	}
	var out []types.PromptRef
	for _, ref := range s.refs {
		if member[ref.SourcePromptID] || member[ref.TargetPromptID] {
			out = append(out, ref)
		}
	}
	return out, nil
}

func ref(source, target string) types.PromptRef {
	return types.PromptRef{SourcePromptID: source, TargetPromptID: target, RefType: types.RefTypeIncludes}
}

func TestBuildFullGraph_TransitiveExpansion(t *testing.T) {
	r := NewResolver(&staticRefs{refs: []types.PromptRef{
		ref("a", "b"),
		ref("b", "c"),
		ref("c", "d"),
		ref("x", "y"), // unrelated component
	}})

	graph, err := r.BuildFullGraph(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, node := range []string{"a", "b", "c", "d"} {
		if _, ok := graph[node]; !ok {
			t.Errorf("Expected node %q in expanded graph", node)
		}
	}
	if _, ok := graph["x"]; ok {
		t.Error("Unrelated component leaked into the graph")
	}
	if !graph["a"]["b"] || !graph["b"]["c"] || !graph["c"]["d"] {
		t.Errorf("Missing edges in graph: %v", graph)
	}
}

func TestTopologicalSort_OrdersDependenciesFirst(t *testing.T) {
	g := make(Graph)
	g.addEdge("app", "lib")
	g.addEdge("lib", "base")

	order, err := TopologicalSort(g)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("Expected 3 nodes in order, got %v", order)
	}

	pos := make(map[string]int, len(order))
	for i, node := range order {
		pos[node] = i
	}
	if pos["base"] > pos["lib"] || pos["lib"] > pos["app"] {
		t.Errorf("Dependencies must come before dependents, got %v", order)
	}
}

func TestTopologicalSort_Diamond(t *testing.T) {
	g := make(Graph)
	g.addEdge("a", "b")
	g.addEdge("a", "c")
	g.addEdge("b", "d")
	g.addEdge("c", "d")

	if _, err := TopologicalSort(g); err != nil {
		t.Fatalf("Diamond is acyclic, got error: %v", err)
	}
}

func TestCheckNoCycles_AllowsSafeEdge(t *testing.T) {
	r := NewResolver(&staticRefs{refs: []types.PromptRef{
		ref("a", "b"),
		ref("b", "c"),
	}})

	if err := r.CheckNoCycles(context.Background(), "a", "c"); err != nil {
		t.Fatalf("Expected edge a→c to be accepted, got %v", err)
	}
}

func TestCheckNoCycles_RejectsDirectCycle(t *testing.T) {
	r := NewResolver(&staticRefs{refs: []types.PromptRef{
		ref("a", "b"),
	}})

	err := r.CheckNoCycles(context.Background(), "b", "a")
	if err == nil {
		t.Fatal("Expected cycle error, got nil")
	}
	if !apperrors.Is(err, apperrors.CodeCycleDetected) {
		t.Errorf("Expected CYCLE_DETECTED, got %v", err)
	}
}

func TestCheckNoCycles_RejectsTransitiveCycle(t *testing.T) {
	// A→B→C→D exists; adding D→A closes the loop.
	r := NewResolver(&staticRefs{refs: []types.PromptRef{
		ref("a", "b"),
		ref("b", "c"),
		ref("c", "d"),
	}})

	err := r.CheckNoCycles(context.Background(), "d", "a")
	if err == nil {
		t.Fatal("Expected cycle error, got nil")
	}
	if !apperrors.Is(err, apperrors.CodeCycleDetected) {
		t.Errorf("Expected CYCLE_DETECTED, got %v", err)
	}

	appErr, _ := apperrors.As(err)
	nodes, _ := appErr.Details["cycle_nodes"].([]string)
	if len(nodes) != 4 {
		t.Errorf("Expected all four nodes reported in the cycle, got %v", nodes)
	}
}

func TestCheckNoCycles_RejectsSelfReference(t *testing.T) {
	r := NewResolver(&staticRefs{})

	err := r.CheckNoCycles(context.Background(), "a", "a")
	if err == nil {
		t.Fatal("Expected self-reference to be rejected, got nil")
	}
	if !apperrors.Is(err, apperrors.CodeCycleDetected) {
		t.Errorf("Expected CYCLE_DETECTED, got %v", err)
	}
}

func TestValidatePipelineAcyclic(t *testing.T) {
	r := NewResolver(&staticRefs{refs: []types.PromptRef{
		ref("a", "b"),
		ref("b", "a"),
	}})

	err := r.ValidatePipelineAcyclic(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Expected cycle error for a<->b, got nil")
	}
	if !apperrors.Is(err, apperrors.CodeCycleDetected) {
		t.Errorf("Expected CYCLE_DETECTED, got %v", err)
	}

	clean := NewResolver(&staticRefs{refs: []types.PromptRef{ref("a", "b")}})
	if err := clean.ValidatePipelineAcyclic(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("Expected acyclic pipeline to validate, got %v", err)
	}
}

func TestBuildFullGraph_EmptySeed(t *testing.T) {
	r := NewResolver(&staticRefs{refs: []types.PromptRef{ref("a", "b")}})

	graph, err := r.BuildFullGraph(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(graph) != 0 {
		t.Errorf("Expected empty graph for empty seed, got %v", graph)
	}
}
