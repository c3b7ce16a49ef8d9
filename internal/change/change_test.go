package change

import (
	"testing"

	"github.com/forgecrew/launchcore/internal/ecosystem"
	"github.com/forgecrew/launchcore/internal/graph"
	"github.com/forgecrew/launchcore/internal/vcs"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T) *graph.PackageGraph {
	t.Helper()
	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	web := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "web"}
	ws := &workspace.Workspace{
		Root: "/repo",
		Packages: map[workspace.PackageID]*workspace.Package{
			core: {ID: core, Root: "core"},
			web:  {ID: web, Root: "web", DependsOn: []workspace.PackageID{core}},
		},
	}
	g, err := graph.Build(ws)
	require.NoError(t, err)
	return g
}

func TestChangeDetectorDirectAndDependency(t *testing.T) {
	g := buildGraph(t)
	fake := vcs.NewFake()
	fake.SetChangedFiles("", "", []string{"core/src/lib.rs"})
	d := NewDetector(fake, g)

	cs, err := d.Detect("", "", Policy{})
	require.NoError(t, err)

	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	web := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "web"}
	require.Equal(t, Direct, cs.Packages[core])
	require.Equal(t, Dependency, cs.Packages[web])
}

func TestChangeDetectorSharedFilePolicy(t *testing.T) {
	g := buildGraph(t)
	fake := vcs.NewFake()
	fake.SetChangedFiles("", "", []string{"README.md"})
	d := NewDetector(fake, g)

	cs, err := d.Detect("", "", Policy{SharedAffectsAll: false})
	require.NoError(t, err)
	require.Empty(t, cs.Packages)
	require.True(t, cs.HasUnclassifiedShared)

	cs, err = d.Detect("", "", Policy{SharedAffectsAll: true})
	require.NoError(t, err)
	require.Len(t, cs.Packages, 2)
}

func TestChangeDetectorIgnoreGlob(t *testing.T) {
	g := buildGraph(t)
	fake := vcs.NewFake()
	fake.SetChangedFiles("", "", []string{"core/CHANGELOG.md"})
	d := NewDetector(fake, g)

	cs, err := d.Detect("", "", Policy{IgnoreChangesGlobs: []string{"**/CHANGELOG.md"}})
	require.NoError(t, err)
	require.Empty(t, cs.Packages)
}
