// Package taskgraph implements the Task Graph Builder (spec §4.G):
// expands a requested task list over a filtered package set into a
// task DAG, honoring each TaskSpec's depends_on and
// depends_on_packages relations.
//
// Grounded on cli/internal/core/engine.go's task-graph construction,
// which also wraps github.com/pyr-sh/dag: cycle detection reuses
// AcyclicGraph.Cycles() the same way internal/graph and
// cli/internal/util/graph.go's ValidateGraph do, rather than a
// hand-rolled DFS over EdgesIn.
package taskgraph

import (
	"fmt"
	"sort"

	"github.com/forgecrew/launchcore/internal/graph"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/pyr-sh/dag"
)

// TaskCycleError is returned when the requested tasks and their
// depends_on declarations form a cycle (spec §4.G, §7 planning error).
type TaskCycleError struct {
	Cycle []taskspec.NodeKey
}

func (e *TaskCycleError) Error() string {
	return fmt.Sprintf("cyclic task dependency: %v", e.Cycle)
}

// TaskGraph is the materialized DAG of TaskNodes for one run (spec §3
// Lifecycles: "constructed per run invocation; dropped after the run").
type TaskGraph struct {
	nodes map[taskspec.NodeKey]*taskspec.TaskNode
	dag   dag.AcyclicGraph
}

// Selection describes what to plan: which task names to run, and which
// packages to scope them to (spec §4.G "optional package filter").
type Selection struct {
	TaskNames []string
	Packages  []workspace.PackageID
}

// Build expands Selection over pipeline × pkgGraph into a TaskGraph
// (spec §4.G).
func Build(pipeline taskspec.Pipeline, pkgGraph *graph.PackageGraph, sel Selection) (*TaskGraph, error) {
	for _, name := range sel.TaskNames {
		if _, ok := pipeline[name]; !ok {
			return nil, &taskspec.UnknownTaskError{TaskName: name}
		}
	}

	tg := &TaskGraph{nodes: map[taskspec.NodeKey]*taskspec.TaskNode{}}

	// Step 1: materialize every (task, package) pair in the selection.
	for _, taskName := range sel.TaskNames {
		spec := pipeline[taskName]
		for _, pkgID := range sel.Packages {
			node := taskspec.Materialize(spec, pkgID)
			key := node.Key()
			n := node
			tg.nodes[key] = &n
		}
	}

	// Step 2: wire edges.
	for key := range tg.nodes {
		tg.dag.Add(key)
	}

	for key, node := range tg.nodes {
		spec := pipeline[node.Task]

		// Rule 1: depends_on -> (dep_task, same_package), if selected.
		for _, depTask := range spec.DependsOn {
			depKey := taskspec.NodeKey{Package: node.Package, Task: depTask}
			if _, ok := tg.nodes[depKey]; !ok {
				continue // rule 3: elided, not an error
			}
			node.EdgesIn = append(node.EdgesIn, depKey)
			tg.dag.Connect(dag.BasicEdge(key, depKey))
		}

		// Rule 2: depends_on_packages -> (same_task, q) for every
		// direct package dependency q.
		if spec.DependsOnPackages {
			for _, depPkg := range pkgGraph.DependenciesOf(node.Package) {
				depKey := taskspec.NodeKey{Package: depPkg, Task: node.Task}
				if _, ok := tg.nodes[depKey]; !ok {
					continue
				}
				node.EdgesIn = append(node.EdgesIn, depKey)
				tg.dag.Connect(dag.BasicEdge(key, depKey))
			}
		}

		sortNodeKeys(node.EdgesIn)
	}

	if cycles := tg.dag.Cycles(); len(cycles) > 0 {
		cycle := make([]taskspec.NodeKey, len(cycles[0]))
		for i, v := range cycles[0] {
			cycle[i] = v.(taskspec.NodeKey)
		}
		return nil, &TaskCycleError{Cycle: cycle}
	}

	return tg, nil
}

func sortNodeKeys(keys []taskspec.NodeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Package != keys[j].Package {
			return keys[i].Package.Less(keys[j].Package)
		}
		return keys[i].Task < keys[j].Task
	})
}

// Nodes returns every TaskNode in the graph.
func (tg *TaskGraph) Nodes() map[taskspec.NodeKey]*taskspec.TaskNode {
	return tg.nodes
}

// Waves computes the sequence of ready-to-run sets as it would execute
// under unlimited parallelism (spec §4.I "the execution plan... is
// computed once up front and reported").
func (tg *TaskGraph) Waves() [][]taskspec.NodeKey {
	remaining := map[taskspec.NodeKey]int{}
	for key, node := range tg.nodes {
		remaining[key] = len(node.EdgesIn)
	}
	dependents := map[taskspec.NodeKey][]taskspec.NodeKey{}
	for key, node := range tg.nodes {
		for _, dep := range node.EdgesIn {
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var waves [][]taskspec.NodeKey
	for len(remaining) > 0 {
		var wave []taskspec.NodeKey
		for key, deg := range remaining {
			if deg == 0 {
				wave = append(wave, key)
			}
		}
		if len(wave) == 0 {
			break // shouldn't happen: Build already validated acyclicity
		}
		sortNodeKeys(wave)
		waves = append(waves, wave)
		for _, key := range wave {
			delete(remaining, key)
		}
		for _, key := range wave {
			for _, dependent := range dependents[key] {
				if _, ok := remaining[dependent]; ok {
					remaining[dependent]--
				}
			}
		}
	}
	return waves
}
