package planner

import (
	"context"
	"testing"

	"github.com/forgecrew/launchcore/internal/cachestore"
	"github.com/forgecrew/launchcore/internal/change"
	"github.com/forgecrew/launchcore/internal/ecosystem"
	"github.com/forgecrew/launchcore/internal/fingerprint"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/forgecrew/launchcore/internal/scheduler"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/forgecrew/launchcore/internal/vcs"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/stretchr/testify/require"
)

func writeTwoCargoPackages(t *testing.T, fs fsutil.FS) {
	t.Helper()
	require.NoError(t, fs.WriteAtomic("/repo/core/Cargo.toml", []byte(`
[package]
name = "core"
version = "0.1.0"
`)))
	require.NoError(t, fs.WriteAtomic("/repo/core/src/lib.rs", []byte("pub fn hello() {}")))
	require.NoError(t, fs.WriteAtomic("/repo/web/Cargo.toml", []byte(`
[package]
name = "web"
version = "0.1.0"

[dependencies]
core = { path = "../core" }
`)))
	require.NoError(t, fs.WriteAtomic("/repo/web/src/main.rs", []byte(`
use core::hello;
fn main() { hello(); }
`)))
}

func TestPlannerBuildsWorkspaceAndOrdersTasks(t *testing.T) {
	fs := fsutil.NewMem()
	writeTwoCargoPackages(t, fs)

	p := New(fs, vcs.NewFake(), nil)
	ws, err := p.BuildWorkspace("/repo")
	require.NoError(t, err)
	require.Len(t, ws.WS.Packages, 2)

	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	web := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "web"}
	require.Contains(t, ws.WS.Packages[web].DependsOn, core)

	pipeline := taskspec.Pipeline{
		"build": {Name: "build", Command: "true", DependsOnPackages: true, Outputs: []string{"target/**"}},
	}
	plan, err := p.Plan(ws, pipeline, []string{"build"}, PackageFilter{Names: []workspace.PackageID{core, web}})
	require.NoError(t, err)
	require.Len(t, plan.Waves, 2)
	require.Equal(t, core, plan.Waves[0][0].Package)
	require.Equal(t, web, plan.Waves[1][0].Package)

	dry := DryRun(plan)
	require.Len(t, dry.Waves, 2)
}

func TestPlannerDetectChangesAndSelectTests(t *testing.T) {
	fs := fsutil.NewMem()
	writeTwoCargoPackages(t, fs)

	fake := vcs.NewFake()
	fake.SetChangedFiles("", "", []string{"core/src/lib.rs"})

	p := New(fs, fake, nil)
	ws, err := p.BuildWorkspace("/repo")
	require.NoError(t, err)

	cs, err := p.DetectChanges(ws, "", "", change.Policy{})
	require.NoError(t, err)

	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	web := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "web"}
	require.Equal(t, change.Direct, cs.Packages[core])
	require.Equal(t, change.Dependency, cs.Packages[web])

	result, err := p.SelectTests(ws, cs, []string{"/repo/core/src/lib.rs"})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestPackageFilterResolvesDependents(t *testing.T) {
	fs := fsutil.NewMem()
	writeTwoCargoPackages(t, fs)
	p := New(fs, vcs.NewFake(), nil)
	ws, err := p.BuildWorkspace("/repo")
	require.NoError(t, err)

	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	web := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "web"}

	filter := PackageFilter{Names: []workspace.PackageID{core}, IncludeDependents: true}
	resolved := filter.Resolve(ws.Graph)
	require.ElementsMatch(t, []workspace.PackageID{core, web}, resolved)
}

func TestPlannerExecuteRunsPlan(t *testing.T) {
	fs := fsutil.NewMem()
	writeTwoCargoPackages(t, fs)
	p := New(fs, vcs.NewFake(), nil)
	ws, err := p.BuildWorkspace("/repo")
	require.NoError(t, err)

	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	pipeline := taskspec.Pipeline{
		"build": {Name: "build", Command: "true"},
	}
	plan, err := p.Plan(ws, pipeline, []string{"build"}, PackageFilter{Names: []workspace.PackageID{core}})
	require.NoError(t, err)

	store, err := cachestore.Open(fs, "/cache")
	require.NoError(t, err)
	exec := Executor{
		FS:          fs,
		Cache:       store,
		Fingerprint: fingerprint.New(fs),
		PackageRoot: PackageRootFunc(ws),
	}

	report, err := p.Execute(context.Background(), exec, plan, scheduler.Options{})
	require.NoError(t, err)
	require.Len(t, report.Nodes, 1)
	require.Equal(t, scheduler.OutcomeSuccess, report.Nodes[0].Outcome)
}

func TestSelectTestsExcludesGitIgnoredFiles(t *testing.T) {
	fs := fsutil.NewMem()
	writeTwoCargoPackages(t, fs)
	require.NoError(t, fs.WriteAtomic("/repo/core/.gitignore", []byte("scratch.rs\n")))
	require.NoError(t, fs.WriteAtomic("/repo/core/src/scratch.rs", []byte("fn unused() {}")))

	fake := vcs.NewFake()
	fake.SetChangedFiles("", "", []string{"core/src/lib.rs"})

	p := New(fs, fake, nil)
	ws, err := p.BuildWorkspace("/repo")
	require.NoError(t, err)

	core := workspace.PackageID{Ecosystem: ecosystem.Cargo, Name: "core"}
	require.Contains(t, ws.WS.Packages[core].GitIgnoreLines, "scratch.rs")

	cs, err := p.DetectChanges(ws, "", "", change.Policy{})
	require.NoError(t, err)

	result, err := p.SelectTests(ws, cs, []string{"/repo/core/src/lib.rs"})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestLoadConfigDerivesSchedulerOptionsAndGlobalHashInputs(t *testing.T) {
	raw := []byte(`{
		"tasks": { "concurrency": 3, "cache": { "grace_period": "2s" } },
		"monorepo": { "global_dependencies": ["Cargo.lock"] }
	}`)
	p := New(fsutil.NewMem(), vcs.NewFake(), nil)
	cfg, pipeline, err := p.LoadConfig(raw)
	require.NoError(t, err)
	require.Nil(t, pipeline)

	opts := SchedulerOptionsFromConfig(cfg)
	require.Equal(t, 3, opts.Concurrency)
	require.True(t, opts.CacheEnabled)

	in := GlobalHashInputsFromConfig(cfg, raw, "/repo/Cargo.lock")
	require.Equal(t, []string{"Cargo.lock"}, in.GlobalDependencyGlobs)
	require.Equal(t, "/repo/Cargo.lock", in.LockfilePath)
}

func TestGlobalHashChangesWithLockfile(t *testing.T) {
	fs := fsutil.NewMem()
	writeTwoCargoPackages(t, fs)
	require.NoError(t, fs.WriteAtomic("/repo/Cargo.lock", []byte("v1")))

	p := New(fs, vcs.NewFake(), nil)
	h1, err := p.GlobalHash("/repo", GlobalHashInputs{LockfilePath: "/repo/Cargo.lock"})
	require.NoError(t, err)

	require.NoError(t, fs.WriteAtomic("/repo/Cargo.lock", []byte("v2")))
	h2, err := p.GlobalHash("/repo", GlobalHashInputs{LockfilePath: "/repo/Cargo.lock"})
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}
