// Package testselect implements the Test Selector (spec §4.F): given a
// set of changed files and a per-language FileGraph, computes the
// minimal set of test files that transitively depend on a changed
// file, via reverse BFS.
//
// Grounded on the reverse-dependency BFS shape in
// other_examples/e9853263_..._package_graph.go (affected-by-change
// traversal over a file-level graph rather than a package-level one),
// composed with internal/importgraph's FileGraph.
package testselect

import "github.com/forgecrew/launchcore/internal/importgraph"

// Result is the outcome of a selection run (spec §4.F).
type Result struct {
	// SelectedTests is the set of test files to run.
	SelectedTests map[string]bool
	// RanEverything is true when a safety rule forced a full run
	// instead of a precise selection (spec §4.F fallback rules).
	RanEverything bool
	// Reason explains why RanEverything is set, for operator-facing
	// output.
	Reason string
}

// Selector computes minimal test selections over a FileGraph.
type Selector struct {
	Graph *importgraph.FileGraph
}

// NewSelector constructs a Selector over the union FileGraph for a
// change (spec §4.F: "the union of every language's FileGraph touched
// by the change").
func NewSelector(fg *importgraph.FileGraph) *Selector {
	return &Selector{Graph: fg}
}

// Select computes the test files reachable from changedFiles by
// reverse-BFS (a file B "reaches" a test T if T imports B, directly or
// transitively). Safety rules (spec §4.F):
//   - if any changed file is itself Unparseable, or any file in its
//     forward reachability set is Unparseable, fall back to running
//     every test (a parse failure must never silently under-select).
//   - if changedFiles is empty, no tests are selected (nothing changed
//     in source the graph covers).
func (s *Selector) Select(changedFiles []string) Result {
	if len(changedFiles) == 0 {
		return Result{SelectedTests: map[string]bool{}}
	}

	for _, f := range changedFiles {
		if s.Graph.Unparseable[f] {
			return s.runEverything("changed file " + f + " could not be parsed for imports")
		}
	}

	rev := s.Graph.Reverse()
	visited := map[string]bool{}
	queue := append([]string{}, changedFiles...)
	for _, f := range changedFiles {
		visited[f] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dependent := range rev[cur] {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			queue = append(queue, dependent)
		}
	}

	// Any unparseable file reachable in the forward direction from a
	// changed file means we cannot trust the graph's completeness for
	// that neighborhood; conservatively run everything.
	if s.anyUnparseableReachableFrom(changedFiles) {
		return s.runEverything("a file transitively imported by a changed file could not be parsed")
	}

	selected := map[string]bool{}
	for f := range visited {
		if s.Graph.TestFiles[f] {
			selected[f] = true
		}
	}
	return Result{SelectedTests: selected}
}

func (s *Selector) anyUnparseableReachableFrom(seed []string) bool {
	visited := map[string]bool{}
	queue := append([]string{}, seed...)
	for _, f := range seed {
		visited[f] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if s.Graph.Unparseable[cur] {
			return true
		}
		for _, to := range s.Graph.Edges[cur] {
			if visited[to] {
				continue
			}
			visited[to] = true
			queue = append(queue, to)
		}
	}
	return false
}

func (s *Selector) runEverything(reason string) Result {
	all := map[string]bool{}
	for f := range s.Graph.TestFiles {
		all[f] = true
	}
	return Result{SelectedTests: all, RanEverything: true, Reason: reason}
}
