// Package graph implements the PackageGraph (spec §4.C): a directed
// acyclic graph over workspace Packages, topological ordering, and the
// affected-closure computation.
//
// Grounded on cli/internal/graph/graph.go and cli/internal/core/engine.go,
// both of which wrap github.com/pyr-sh/dag.AcyclicGraph; design note §9
// explicitly calls for storing the graph as adjacency maps keyed by
// PackageID rather than holding pointers between Package records.
package graph

import (
	"fmt"
	"sort"

	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/pyr-sh/dag"
)

// CyclicDependencyError is returned when the package dependency graph
// contains a cycle (spec §3 invariant, §4.C).
type CyclicDependencyError struct {
	Cycle []workspace.PackageID
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic package dependency: %v", e.Cycle)
}

// PackageGraph is the acyclic digraph over Packages built once per
// workspace-open (spec §3 Lifecycles).
type PackageGraph struct {
	packages map[workspace.PackageID]*workspace.Package
	dag      dag.AcyclicGraph
}

// Build constructs a PackageGraph from a Workspace's Packages,
// validating acyclicity (spec §3 invariant: "no self-loops; no
// cycles"). Cycle detection and DependenciesOf/DependentsOf are both
// answered directly from the dag.AcyclicGraph rather than a duplicate
// adjacency structure — cli/internal/util/graph.go's ValidateGraph uses
// AcyclicGraph.Cycles() rather than Validate() for exactly the reason
// this graph needs it too: Validate() requires a single root, but a
// workspace with several independent top-level packages is a
// multi-root (and still perfectly acyclic) graph.
func Build(ws *workspace.Workspace) (*PackageGraph, error) {
	g := &PackageGraph{packages: ws.Packages}
	for id := range ws.Packages {
		g.dag.Add(id)
	}
	for id, pkg := range ws.Packages {
		for _, dep := range pkg.DependsOn {
			if dep == id {
				continue // no self-loops
			}
			// Edge direction: id depends on dep, so dep must be
			// visited (topologically) before id -> edge id -> dep.
			g.dag.Connect(dag.BasicEdge(id, dep))
		}
	}
	if cycles := g.dag.Cycles(); len(cycles) > 0 {
		cycle := make([]workspace.PackageID, len(cycles[0]))
		for i, v := range cycles[0] {
			cycle[i] = v.(workspace.PackageID)
		}
		return nil, &CyclicDependencyError{Cycle: cycle}
	}
	return g, nil
}

// TopologicalOrder returns packages such that every dependency appears
// before its dependents, ties broken by lexical (ecosystem, name) order
// for determinism (spec §4.C, Kahn's algorithm).
func (g *PackageGraph) TopologicalOrder() ([]workspace.PackageID, error) {
	inDegree := map[workspace.PackageID]int{}
	// inDegree here counts "depends on" edges remaining, i.e. how many
	// dependencies of a node haven't been emitted yet.
	downEdgesOf := map[workspace.PackageID][]workspace.PackageID{} // dependents: q -> [p ...] where p depends_on q
	for id := range g.packages {
		inDegree[id] = 0
	}
	for id, pkg := range g.packages {
		for _, dep := range pkg.DependsOn {
			inDegree[id]++
			downEdgesOf[dep] = append(downEdgesOf[dep], id)
		}
	}

	var ready []workspace.PackageID
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortIDs(ready)

	var order []workspace.PackageID
	for len(ready) > 0 {
		sortIDs(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		dependents := append([]workspace.PackageID{}, downEdgesOf[next]...)
		sortIDs(dependents)
		for _, dependent := range dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(g.packages) {
		return nil, &CyclicDependencyError{}
	}
	return order, nil
}

func sortIDs(ids []workspace.PackageID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// DependenciesOf returns the packages the given package directly
// depends on, read from the dag's own down-edge set the way
// cli/internal/core/engine.go reads WorkspaceGraph.DownEdges(pkg)
// rather than walking Package.DependsOn again.
func (g *PackageGraph) DependenciesOf(id workspace.PackageID) []workspace.PackageID {
	if _, ok := g.packages[id]; !ok {
		return nil
	}
	var out []workspace.PackageID
	for v := range g.dag.DownEdges(id) {
		out = append(out, v.(workspace.PackageID))
	}
	sortIDs(out)
	return out
}

// DependentsOf returns the packages that directly depend on the given
// package, read from the dag's up-edge set.
func (g *PackageGraph) DependentsOf(id workspace.PackageID) []workspace.PackageID {
	if _, ok := g.packages[id]; !ok {
		return nil
	}
	var out []workspace.PackageID
	for v := range g.dag.UpEdges(id) {
		out = append(out, v.(workspace.PackageID))
	}
	sortIDs(out)
	return out
}

// Affected returns seed ∪ { p | ∃ path p → s ∈ seed }: the
// reverse-transitive closure of dependents (spec §4.C — "packages that
// depend on the seed, since when a dependency changes, dependents are
// affected"). Implemented by BFS on the reversed adjacency.
func (g *PackageGraph) Affected(seed map[workspace.PackageID]bool) map[workspace.PackageID]bool {
	result := map[workspace.PackageID]bool{}
	queue := make([]workspace.PackageID, 0, len(seed))
	for id := range seed {
		if !result[id] {
			result[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dependent := range g.DependentsOf(id) {
			if !result[dependent] {
				result[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	return result
}

// Packages exposes the underlying package map (read-only by
// convention; the PackageGraph owns it for the lifetime of the
// workspace, per spec §3 Ownership).
func (g *PackageGraph) Packages() map[workspace.PackageID]*workspace.Package {
	return g.packages
}
