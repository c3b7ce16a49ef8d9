// Package planner implements the top-level build_workspace/detect_changes/
// select_tests/plan/execute API (spec §6), wiring the Workspace
// Discoverer, Package Graph, Change Detector, Import Graph Parser, Test
// Selector, Task Graph Builder, Cache Store, and Wave Scheduler into one
// entrypoint. Grounded on cli/internal/run/run.go, which performs the
// analogous wiring (context build -> scope resolution -> engine
// execution) for Turborepo's fixed pipeline.
package planner

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/forgecrew/launchcore/internal/cachestore"
	"github.com/forgecrew/launchcore/internal/change"
	"github.com/forgecrew/launchcore/internal/config"
	"github.com/forgecrew/launchcore/internal/fingerprint"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/forgecrew/launchcore/internal/graph"
	"github.com/forgecrew/launchcore/internal/importgraph"
	"github.com/forgecrew/launchcore/internal/scheduler"
	"github.com/forgecrew/launchcore/internal/taskgraph"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/forgecrew/launchcore/internal/testselect"
	"github.com/forgecrew/launchcore/internal/vcs"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/hashicorp/go-hclog"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Workspace bundles a discovered workspace with the PackageGraph built
// from it (spec §6: "build_workspace(root) -> Workspace").
type Workspace struct {
	WS    *workspace.Workspace
	Graph *graph.PackageGraph
}

// Planner wires the adapters the rest of the API needs (spec §6
// External Interfaces: the core talks only to the VCS and filesystem
// adapters, never directly to disk or git).
type Planner struct {
	FS     fsutil.FS
	VCS    vcs.Adapter
	Logger hclog.Logger
}

// New constructs a Planner. A nil logger defaults to a no-op logger,
// matching the teacher's hclog.Logger threading through every
// subsystem constructor.
func New(fs fsutil.FS, v vcs.Adapter, logger hclog.Logger) *Planner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Planner{FS: fs, VCS: v, Logger: logger}
}

// BuildWorkspace discovers Packages under root and builds their
// PackageGraph (spec §6: build_workspace).
func (p *Planner) BuildWorkspace(root string) (*Workspace, error) {
	disc := workspace.NewDiscoverer(p.FS)
	ws, err := disc.Discover(root)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(ws)
	if err != nil {
		return nil, err
	}
	p.Logger.Named("workspace").Debug("discovered workspace", "packages", len(ws.Packages))
	return &Workspace{WS: ws, Graph: g}, nil
}

// LoadConfig decodes raw (JSONC-tolerant) config bytes into a
// config.Config plus its embedded taskspec.Pipeline (spec §6), so
// callers never have to import internal/config directly just to drive
// a Planner.
func (p *Planner) LoadConfig(raw []byte) (*config.Config, taskspec.Pipeline, error) {
	return config.Decode(raw)
}

// SchedulerOptionsFromConfig derives scheduler.Options defaults from a
// decoded Config: Concurrency from tasks.concurrency, the process
// grace period from tasks.cache.grace_period via
// config.Config.CacheGracePeriod (5s when unset or unparsable), and
// caching enabled.
func SchedulerOptionsFromConfig(cfg *config.Config) scheduler.Options {
	return scheduler.Options{
		Concurrency:  cfg.Tasks.Concurrency,
		GracePeriod:  cfg.CacheGracePeriod(),
		CacheEnabled: true,
	}
}

// GlobalHashInputsFromConfig builds GlobalHashInputs from a decoded
// Config's monorepo.global_dependencies globs plus the raw config
// bytes themselves, the two inputs run/global_hash.go folds in ahead
// of the lockfile (SPEC_FULL §3).
func GlobalHashInputsFromConfig(cfg *config.Config, configBytes []byte, lockfilePath string) GlobalHashInputs {
	return GlobalHashInputs{
		ConfigBytes:           configBytes,
		GlobalDependencyGlobs: cfg.Monorepo.GlobalDependencies,
		LockfilePath:          lockfilePath,
	}
}

// DetectChanges computes the ChangeSet between fromRev and toRev (spec
// §6: detect_changes(ws, from, to) -> ChangeSet).
func (p *Planner) DetectChanges(ws *Workspace, fromRev, toRev string, policy change.Policy) (*change.ChangeSet, error) {
	detector := change.NewDetector(p.VCS, ws.Graph)
	return detector.Detect(fromRev, toRev, policy)
}

// SelectTests builds the union FileGraph over every changed package's
// source files and selects the tests reverse-reachable from the
// ChangeSet (spec §6: select_tests(ws, changeset) -> Set<TestFile>).
func (p *Planner) SelectTests(ws *Workspace, cs *change.ChangeSet, changedFiles []string) (testselect.Result, error) {
	var allFiles []string
	for id := range cs.Packages {
		pkg := ws.WS.Packages[id]
		if pkg == nil {
			continue
		}
		files, err := p.FS.Walk(pkg.Root, pkg.SourceGlobs, pkg.IgnoreGlobs)
		if err != nil {
			return testselect.Result{}, err
		}
		ignore := gitignore.CompileIgnoreLines(pkg.GitIgnoreLines...)
		for _, f := range files {
			if ignore.MatchesPath(f) {
				continue
			}
			allFiles = append(allFiles, pkg.Root+"/"+f)
		}
	}

	moduleRoots := map[string]string{}
	for id, pkg := range ws.WS.Packages {
		moduleRoots[id.Name] = pkg.Root
	}

	builder := importgraph.NewBuilder(p.FS)
	fg := builder.Build(ws.WS.Root, allFiles, moduleRoots)

	sel := testselect.NewSelector(fg)
	return sel.Select(changedFiles), nil
}

// PackageFilter selects a subset of a workspace's packages beyond plain
// "changed packages" (SPEC_FULL §3: "--filter-style package selection").
// Names lists exact PackageIDs to include; IncludeDependents/
// IncludeDependencies expand the selection along the PackageGraph, the
// `pkg...`/`...pkg` direction selectors.
type PackageFilter struct {
	Names               []workspace.PackageID
	IncludeDependents   bool
	IncludeDependencies bool
}

// Resolve expands a PackageFilter into a concrete package set (spec §6
// plan()'s filter argument).
func (f PackageFilter) Resolve(g *graph.PackageGraph) []workspace.PackageID {
	seed := map[workspace.PackageID]bool{}
	for _, id := range f.Names {
		seed[id] = true
	}
	if f.IncludeDependents {
		for id := range g.Affected(seed) {
			seed[id] = true
		}
	}
	if f.IncludeDependencies {
		for id := range seed {
			for _, dep := range g.DependenciesOf(id) {
				seed[dep] = true
			}
		}
	}
	out := make([]workspace.PackageID, 0, len(seed))
	for id := range seed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Plan materializes the TaskGraph for the given task selection and
// filter (spec §6: plan(ws, tasks, filter) -> TaskGraph). Computing
// Waves() here, not lazily, matches spec §4.I's "the execution plan...
// is computed once up front and reported."
type Plan struct {
	Graph *taskgraph.TaskGraph
	Waves [][]taskspec.NodeKey
}

func (p *Planner) Plan(ws *Workspace, pipeline taskspec.Pipeline, taskNames []string, filter PackageFilter) (*Plan, error) {
	packages := filter.Resolve(ws.Graph)
	sel := taskgraph.Selection{TaskNames: taskNames, Packages: packages}
	tg, err := taskgraph.Build(pipeline, ws.Graph, sel)
	if err != nil {
		return nil, err
	}
	return &Plan{Graph: tg, Waves: tg.Waves()}, nil
}

// DryRunReport renders a Plan's waves without executing anything
// (SPEC_FULL §3: "plan() can be rendered without executing").
type DryRunReport struct {
	Waves [][]string
}

// DryRun renders plan as a sequence of wave labels (SPEC_FULL §3).
func DryRun(plan *Plan) DryRunReport {
	report := DryRunReport{Waves: make([][]string, len(plan.Waves))}
	for i, wave := range plan.Waves {
		labels := make([]string, len(wave))
		for j, key := range wave {
			labels[j] = key.String()
		}
		report.Waves[i] = labels
	}
	return report
}

// GlobalHashInputs names everything that feeds the global hash
// (SPEC_FULL §3: "monorepo config, declared global dependency globs,
// and the lockfile content"), mirroring run/global_hash.go.
type GlobalHashInputs struct {
	ConfigBytes          []byte
	GlobalDependencyGlobs []string
	LockfilePath         string
}

// GlobalHash computes a workspace-wide hash over the config bytes, the
// global dependency files and the lockfile (SPEC_FULL §3). The
// scheduler does not mix it into task fingerprints, so a change to
// these inputs alone does not invalidate cached task results.
func (p *Planner) GlobalHash(root string, in GlobalHashInputs) (string, error) {
	h := sha256.New()
	h.Write(in.ConfigBytes)

	globalFiles, err := p.FS.Walk(root, in.GlobalDependencyGlobs, nil)
	if err != nil {
		return "", err
	}
	sort.Strings(globalFiles)
	for _, rel := range globalFiles {
		data, err := p.FS.Read(root + "/" + rel)
		if err != nil {
			return "", err
		}
		h.Write([]byte(rel))
		h.Write(data)
	}

	if in.LockfilePath != "" {
		data, err := p.FS.Read(in.LockfilePath)
		if err == nil {
			h.Write(data)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Executor ties a Plan to the filesystem, cache, and fingerprinter
// needed to run it (spec §6: execute(plan, options) -> RunReport).
type Executor struct {
	FS          fsutil.FS
	Cache       *cachestore.Store
	Fingerprint *fingerprint.Fingerprinter
	PackageRoot func(taskspec.NodeKey) string
	Output      scheduler.LineWriter
}

// Execute drives a Plan to completion (spec §6: execute(plan,
// options) -> RunReport).
func (p *Planner) Execute(ctx context.Context, exec Executor, plan *Plan, opts scheduler.Options) (*scheduler.RunReport, error) {
	sched := scheduler.New(plan.Graph, exec.FS, exec.Fingerprint, exec.Cache, exec.PackageRoot, exec.Output)
	return sched.Execute(ctx, opts)
}

// PackageRootFunc builds a taskspec.NodeKey -> absolute package root
// resolver from a discovered Workspace, the common case for wiring
// Executor.PackageRoot.
func PackageRootFunc(ws *Workspace) func(taskspec.NodeKey) string {
	return func(k taskspec.NodeKey) string {
		pkg := ws.WS.Packages[k.Package]
		if pkg == nil {
			return ""
		}
		return pkg.Root
	}
}
