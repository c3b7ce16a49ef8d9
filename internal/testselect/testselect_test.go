package testselect

import (
	"testing"

	"github.com/forgecrew/launchcore/internal/importgraph"
	"github.com/stretchr/testify/require"
)

func TestSelectFindsReverseDependentTests(t *testing.T) {
	fg := importgraph.NewFileGraph()
	fg.AddEdge("src/a_test.ts", "src/a.ts")
	fg.AddEdge("src/b.ts", "src/a.ts")
	fg.AddEdge("src/b_test.ts", "src/b.ts")
	fg.TestFiles["src/a_test.ts"] = true
	fg.TestFiles["src/b_test.ts"] = true

	sel := NewSelector(fg)
	result := sel.Select([]string{"src/a.ts"})

	require.False(t, result.RanEverything)
	require.True(t, result.SelectedTests["src/a_test.ts"])
	require.True(t, result.SelectedTests["src/b_test.ts"])
}

func TestSelectNoChangesSelectsNothing(t *testing.T) {
	fg := importgraph.NewFileGraph()
	sel := NewSelector(fg)
	result := sel.Select(nil)
	require.Empty(t, result.SelectedTests)
	require.False(t, result.RanEverything)
}

func TestSelectFallsBackOnUnparseableChangedFile(t *testing.T) {
	fg := importgraph.NewFileGraph()
	fg.TestFiles["src/a_test.ts"] = true
	fg.Unparseable["src/weird.ts"] = true

	sel := NewSelector(fg)
	result := sel.Select([]string{"src/weird.ts"})

	require.True(t, result.RanEverything)
	require.True(t, result.SelectedTests["src/a_test.ts"])
}

func TestSelectFallsBackOnUnparseableDownstreamFile(t *testing.T) {
	fg := importgraph.NewFileGraph()
	fg.AddEdge("src/a.ts", "src/weird.ts")
	fg.Unparseable["src/weird.ts"] = true
	fg.TestFiles["src/a_test.ts"] = true

	sel := NewSelector(fg)
	result := sel.Select([]string{"src/a.ts"})

	require.True(t, result.RanEverything)
}

func TestSelectDoesNotIncludeUnrelatedTests(t *testing.T) {
	fg := importgraph.NewFileGraph()
	fg.AddEdge("src/a_test.ts", "src/a.ts")
	fg.AddEdge("src/c_test.ts", "src/c.ts")
	fg.TestFiles["src/a_test.ts"] = true
	fg.TestFiles["src/c_test.ts"] = true

	sel := NewSelector(fg)
	result := sel.Select([]string{"src/a.ts"})

	require.True(t, result.SelectedTests["src/a_test.ts"])
	require.False(t, result.SelectedTests["src/c_test.ts"])
}
