// Package change implements the Change Detector (spec §4.D): given a
// (from_rev, to_rev) pair, computes the ChangeSet of affected packages.
//
// Grounded on cli/internal/scope/scope.go's affected-package computation
// and the "shared file" / ignoreChanges classification the teacher's
// scope filters apply, generalized to the spec's classification rules.
package change

import (
	"github.com/forgecrew/launchcore/internal/graph"
	"github.com/forgecrew/launchcore/internal/launchpath"
	"github.com/forgecrew/launchcore/internal/vcs"
	"github.com/forgecrew/launchcore/internal/workspace"
	"github.com/gobwas/glob"
)

// Kind annotates why a package is in a ChangeSet (spec §3).
type Kind string

const (
	Direct     Kind = "direct"
	Dependency Kind = "dependency"
	Shared     Kind = "shared"
)

// ChangeSet is a set of PackageIDs with a Kind annotation per package
// (spec §3).
type ChangeSet struct {
	Packages map[workspace.PackageID]Kind
	// HasUnclassifiedShared is true when a changed file lies outside
	// every package root and shared_affects_all is false, so the
	// caller can decide what to do (spec §4.D).
	HasUnclassifiedShared bool
}

// Policy configures classification (spec §6 monorepo.* config surface).
type Policy struct {
	IgnoreChangesGlobs []string
	SharedAffectsAll   bool
}

// Detector computes ChangeSets from a revision adapter and a
// PackageGraph.
type Detector struct {
	VCS   vcs.Adapter
	Graph *graph.PackageGraph
}

// NewDetector constructs a Detector.
func NewDetector(v vcs.Adapter, g *graph.PackageGraph) *Detector {
	return &Detector{VCS: v, Graph: g}
}

// Detect computes the ChangeSet between fromRev and toRev (spec §4.D).
// toRev == "" means "the current working tree".
func (d *Detector) Detect(fromRev, toRev string, policy Policy) (*ChangeSet, error) {
	changedFiles, err := d.VCS.ChangedFiles(fromRev, toRev)
	if err != nil {
		return nil, err
	}
	if toRev == "" {
		untracked, err := d.VCS.UntrackedFiles()
		if err != nil {
			return nil, err
		}
		changedFiles = append(changedFiles, untracked...)
	}

	ignorePatterns := make([]glob.Glob, 0, len(policy.IgnoreChangesGlobs))
	for _, pattern := range policy.IgnoreChangesGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		ignorePatterns = append(ignorePatterns, g)
	}

	cs := &ChangeSet{Packages: map[workspace.PackageID]Kind{}}

	hasShared := false
	for _, file := range dedupe(changedFiles) {
		if matchesAny(ignorePatterns, file) {
			continue // rule 1: ignored
		}
		owner, ok := deepestOwningPackage(d.Graph.Packages(), file)
		if !ok {
			hasShared = true
			continue // rule 4: shared, handled after the loop
		}
		cs.Packages[owner] = Direct // rules 2 & 3
	}

	if hasShared {
		if policy.SharedAffectsAll {
			for id := range d.Graph.Packages() {
				cs.Packages[id] = Direct
			}
		} else {
			cs.HasUnclassifiedShared = true
		}
	}

	// Dependents of direct packages become `dependency` via affected().
	directSeed := map[workspace.PackageID]bool{}
	for id, kind := range cs.Packages {
		if kind == Direct {
			directSeed[id] = true
		}
	}
	for id := range d.Graph.Affected(directSeed) {
		if _, already := cs.Packages[id]; !already {
			cs.Packages[id] = Dependency
		}
	}

	return cs, nil
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func matchesAny(globs []glob.Glob, file string) bool {
	for _, g := range globs {
		if g.Match(file) {
			return true
		}
	}
	return false
}

// deepestOwningPackage finds the package whose root is the longest
// path-prefix match for file (spec §4.D rule 3: "the deepest root
// wins"). pkg.Root and file must share the same anchoring
// (both repo-relative or both absolute).
func deepestOwningPackage(packages map[workspace.PackageID]*workspace.Package, file string) (workspace.PackageID, bool) {
	var best workspace.PackageID
	bestLen := -1
	found := false
	for id, pkg := range packages {
		if !launchpath.HasPrefixDir(file, pkg.Root) {
			continue
		}
		if len(pkg.Root) > bestLen {
			best = id
			bestLen = len(pkg.Root)
			found = true
		}
	}
	return best, found
}
