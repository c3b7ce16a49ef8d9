package taskgraph

import (
	"testing"

	"github.com/forgecrew/launchcore/internal/ecosystem"
	"github.com/forgecrew/launchcore/internal/graph"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/stretchr/testify/require"
)

func twoPackageGraph(t *testing.T) (*graph.PackageGraph, workspace.PackageID, workspace.PackageID) {
	t.Helper()
	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	web := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "web"}
	ws := &workspace.Workspace{
		Packages: map[workspace.PackageID]*workspace.Package{
			core: {ID: core},
			web:  {ID: web, DependsOn: []workspace.PackageID{core}},
		},
	}
	g, err := graph.Build(ws)
	require.NoError(t, err)
	return g, core, web
}

func TestBuildOrdersDependsOnPackages(t *testing.T) {
	g, core, web := twoPackageGraph(t)
	pipeline := taskspec.Pipeline{
		"build": {Name: "build", DependsOnPackages: true, Outputs: []string{"target/**"}},
	}
	sel := Selection{TaskNames: []string{"build"}, Packages: []workspace.PackageID{core, web}}

	tg, err := Build(pipeline, g, sel)
	require.NoError(t, err)

	waves := tg.Waves()
	require.Len(t, waves, 2)
	require.Equal(t, []taskspec.NodeKey{{Package: core, Task: "build"}}, waves[0])
	require.Equal(t, []taskspec.NodeKey{{Package: web, Task: "build"}}, waves[1])
}

func TestBuildIntraPackageDependsOn(t *testing.T) {
	g, core, _ := twoPackageGraph(t)
	pipeline := taskspec.Pipeline{
		"build": {Name: "build", Outputs: []string{"target/**"}},
		"test":  {Name: "test", DependsOn: []string{"build"}},
	}
	sel := Selection{TaskNames: []string{"build", "test"}, Packages: []workspace.PackageID{core}}

	tg, err := Build(pipeline, g, sel)
	require.NoError(t, err)

	waves := tg.Waves()
	require.Len(t, waves, 2)
	require.Equal(t, taskspec.NodeKey{Package: core, Task: "build"}, waves[0][0])
	require.Equal(t, taskspec.NodeKey{Package: core, Task: "test"}, waves[1][0])
}

func TestBuildElidesEdgesToUnselectedNodes(t *testing.T) {
	g, core, _ := twoPackageGraph(t)
	pipeline := taskspec.Pipeline{
		"build": {Name: "build", Outputs: []string{"target/**"}},
		"test":  {Name: "test", DependsOn: []string{"build"}},
	}
	// Only "test" selected: the depends_on "build" edge target doesn't exist.
	sel := Selection{TaskNames: []string{"test"}, Packages: []workspace.PackageID{core}}

	tg, err := Build(pipeline, g, sel)
	require.NoError(t, err)
	require.Len(t, tg.Nodes(), 1)
	require.Empty(t, tg.Nodes()[taskspec.NodeKey{Package: core, Task: "test"}].EdgesIn)
}

func TestBuildDetectsTaskCycle(t *testing.T) {
	g, core, _ := twoPackageGraph(t)
	pipeline := taskspec.Pipeline{
		"test": {Name: "test", DependsOn: []string{"lint"}},
		"lint": {Name: "lint", DependsOn: []string{"test"}},
	}
	sel := Selection{TaskNames: []string{"test", "lint"}, Packages: []workspace.PackageID{core}}

	_, err := Build(pipeline, g, sel)
	require.Error(t, err)
	var cycleErr *TaskCycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestBuildRejectsUnknownTask(t *testing.T) {
	g, core, _ := twoPackageGraph(t)
	sel := Selection{TaskNames: []string{"missing"}, Packages: []workspace.PackageID{core}}
	_, err := Build(taskspec.Pipeline{}, g, sel)
	require.Error(t, err)
	var unknownErr *taskspec.UnknownTaskError
	require.ErrorAs(t, err, &unknownErr)
}
