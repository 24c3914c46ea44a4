// Package depgraph builds the prompt reference graph and guards it against
// cycles. Nodes are prompt IDs; an edge A→B means "A depends on B". Every
// mutation that could introduce a cycle (creating a ref, saving a scene
// pipeline) runs through this package before it commits.
package depgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/types"
)

// Graph maps each node to the set of nodes it depends on.
type Graph map[string]map[string]bool

// addEdge inserts source→target, materializing both endpoints.
func (g Graph) addEdge(source, target string) {
	if g[source] == nil {
		g[source] = make(map[string]bool)
	}
	g[source][target] = true
	if g[target] == nil {
		g[target] = make(map[string]bool)
	}
}

// addNode materializes a node with no edges.
func (g Graph) addNode(id string) {
	if g[id] == nil {
		g[id] = make(map[string]bool)
	}
}

// RefSource is the narrow store view the resolver reads refs through.
type RefSource interface {
	// ListRefsTouching returns every PromptRef whose source or target is in
	// promptIDs.
	ListRefsTouching(ctx context.Context, promptIDs []string) ([]types.PromptRef, error)
}

// Resolver expands reference graphs and runs cycle checks over them.
type Resolver struct {
	refs RefSource
}

// NewResolver creates a resolver reading refs from the given source.
func NewResolver(refs RefSource) *Resolver {
	return &Resolver{refs: refs}
}

// BuildFullGraph expands the reference graph reachable from the seed set.
// Each round queries every ref touching the current frontier, inserts the
// edges, and moves the frontier to the newly discovered endpoints; the build
// terminates when a round discovers nothing new.
func (r *Resolver) BuildFullGraph(ctx context.Context, seed []string) (Graph, error) {
	graph := make(Graph, len(seed))
	visited := make(map[string]bool, len(seed))

	frontier := make([]string, 0, len(seed))
	for _, id := range seed {
		if id == "" || visited[id] {
			continue
		}
		visited[id] = true
		frontier = append(frontier, id)
		graph.addNode(id)
	}

	for len(frontier) > 0 {
		sort.Strings(frontier) // deterministic query order

		refs, err := r.refs.ListRefsTouching(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("expand reference graph: %w", err)
		}

		var next []string
		for _, ref := range refs {
			graph.addEdge(ref.SourcePromptID, ref.TargetPromptID)
			for _, endpoint := range []string{ref.SourcePromptID, ref.TargetPromptID} {
				if !visited[endpoint] {
					visited[endpoint] = true
					next = append(next, endpoint)
				}
			}
		}
		frontier = next
	}

	return graph, nil
}

// CheckNoCycles verifies that adding the edge source→target keeps the graph
// acyclic. The check expands the full graph reachable from both endpoints so
// cycles closed through arbitrarily long chains are caught. A self-reference
// is always a cycle.
func (r *Resolver) CheckNoCycles(ctx context.Context, sourceID, targetID string) error {
	graph, err := r.BuildFullGraph(ctx, []string{sourceID, targetID})
	if err != nil {
		return err
	}
	graph.addEdge(sourceID, targetID)

	_, err = TopologicalSort(graph)
	return err
}

// ValidatePipelineAcyclic expands the full graph from the pipeline's prompt
// IDs and rejects it if the references form a cycle.
func (r *Resolver) ValidatePipelineAcyclic(ctx context.Context, promptIDs []string) error {
	graph, err := r.BuildFullGraph(ctx, promptIDs)
	if err != nil {
		return err
	}
	_, err = TopologicalSort(graph)
	return err
}

// TopologicalSort orders the graph so every node appears after its
// dependencies, using Kahn's algorithm. If any cycle exists the sort cannot
// consume every node; the error lists the nodes left unordered.
func TopologicalSort(g Graph) ([]string, error) {
	// In-degree counts over the reverse edges dep→dependent: a node's
	// in-degree is the number of dependencies it still waits on.
	inDegree := make(map[string]int, len(g))
	dependents := make(map[string][]string, len(g))
	for node, deps := range g {
		if _, ok := inDegree[node]; !ok {
			inDegree[node] = 0
		}
		for dep := range deps {
			inDegree[node]++
			dependents[dep] = append(dependents[dep], node)
		}
	}

	// Seed the queue with every node that depends on nothing.
	var queue []string
	for node, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue) // deterministic ordering among peers

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(g) {
		ordered := make(map[string]bool, len(order))
		for _, node := range order {
			ordered[node] = true
		}
		var cycleNodes []string
		for node := range g {
			if !ordered[node] {
				cycleNodes = append(cycleNodes, node)
			}
		}
		sort.Strings(cycleNodes)

		err := apperrors.CycleDetected(fmt.Sprintf(
			"dependency cycle detected involving: %s", strings.Join(cycleNodes, ", ")))
		return nil, err.WithDetails(map[string]any{"cycle_nodes": cycleNodes})
	}

	return order, nil
}
