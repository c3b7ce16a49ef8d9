// Package workspace implements the Workspace Discoverer (spec §4.B):
// given a root directory, detect workspace markers and return the
// Packages they declare, including extracted internal dependency
// edges.
//
// Grounded on cli/internal/context/context.go (workspace build-up) and
// cli/internal/workspace/workspace.go (catalog-by-name), generalized
// from "JS workspaces" to the six ecosystems spec §4.B names.
package workspace

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgecrew/launchcore/internal/ecosystem"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/karrick/godirwalk"
)

// PackageID stably identifies a package: ecosystem tag + normalized
// name, unique within a workspace (spec §3 invariant).
type PackageID struct {
	Ecosystem ecosystem.Tag
	Name      string
}

func (id PackageID) String() string { return fmt.Sprintf("%s:%s", id.Ecosystem, id.Name) }

// Less provides a deterministic lexical ordering over PackageIDs, used
// to break topological-sort ties (spec §4.C).
func (id PackageID) Less(other PackageID) bool {
	if id.Ecosystem != other.Ecosystem {
		return id.Ecosystem < other.Ecosystem
	}
	return id.Name < other.Name
}

// Package is a single manifest-defined unit in a workspace (spec §3).
type Package struct {
	ID           PackageID
	Root         string // absolute path
	ManifestPath string // absolute path
	Version      string
	DependsOn    []PackageID
	SourceGlobs  []string
	IgnoreGlobs  []string
	// GitIgnoreLines holds the raw patterns from this package's own
	// .gitignore (if any), kept separate from IgnoreGlobs since gitignore
	// syntax isn't a doublestar glob: callers match it with
	// github.com/sabhiram/go-gitignore, not fsutil.FS.Walk's exclude list.
	GitIgnoreLines []string
}

// Workspace is the union of all discovered Packages under one root
// (spec §3 GLOSSARY).
type Workspace struct {
	Root     string
	Packages map[PackageID]*Package
}

// ManifestParseError is returned when a manifest can't be parsed,
// naming the offending file (spec §4.B).
type ManifestParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ManifestParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}
func (e *ManifestParseError) Unwrap() error { return e.Err }

// DuplicatePackageError is returned when two packages declare the same
// (ecosystem, name) within one workspace (spec §4.B, §3 invariant).
type DuplicatePackageError struct {
	ID        PackageID
	FirstPath string
	SecondPath string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("duplicate package %s declared at both %s and %s", e.ID, e.FirstPath, e.SecondPath)
}

// Discoverer discovers Packages under a root directory.
type Discoverer struct {
	FS fsutil.FS
}

// NewDiscoverer constructs a Discoverer backed by fs.
func NewDiscoverer(fs fsutil.FS) *Discoverer {
	return &Discoverer{FS: fs}
}

// Discover walks root, finds every recognized workspace marker, and
// returns the resulting Workspace. Order of marker checks follows
// ecosystem.Markers ("first match wins per ecosystem", spec §4.B).
func (d *Discoverer) Discover(root string) (*Workspace, error) {
	ws := &Workspace{Root: root, Packages: map[PackageID]*Package{}}
	deps := map[PackageID][]declaredDep{}

	manifestDirs, err := d.findManifestDirs(root)
	if err != nil {
		return nil, err
	}

	for _, dir := range manifestDirs {
		if err := d.addDirManifests(ws, deps, dir); err != nil {
			return nil, err
		}
	}

	resolveInternalDeps(ws, deps, loadYarnLock(d.FS, root))
	return ws, nil
}

// dirMarkerCandidate is one readable manifest found in a directory for
// some ecosystem tag, kept around until every marker for that tag has
// been tried.
type dirMarkerCandidate struct {
	marker ecosystem.Marker
	path   string
	data   []byte
}

// addDirManifests resolves every ecosystem present in dir. Markers are
// tried in ecosystem.Markers order, but "first match wins per
// ecosystem" (spec §4.B) means first WORKSPACE match, not first
// readable file: npm's pnpm-workspace.yaml and lerna.json must still be
// tried when a root package.json exists but carries no "workspaces"
// field, which is true of most real pnpm/lerna monorepos. Only when no
// marker for a tag declares any workspace members does the first
// readable one win, as a single-package fallback.
func (d *Discoverer) addDirManifests(ws *Workspace, deps map[PackageID][]declaredDep, dir string) error {
	byTag := map[ecosystem.Tag][]dirMarkerCandidate{}
	var tagOrder []ecosystem.Tag
	for _, marker := range ecosystem.Markers {
		manifestPath := filepath.Join(dir, marker.ManifestName)
		data, statErr := d.FS.Read(manifestPath)
		if statErr != nil {
			continue
		}
		if _, ok := byTag[marker.Tag]; !ok {
			tagOrder = append(tagOrder, marker.Tag)
		}
		byTag[marker.Tag] = append(byTag[marker.Tag], dirMarkerCandidate{marker: marker, path: manifestPath, data: data})
	}

	for _, tag := range tagOrder {
		candidates := byTag[tag]
		chosen := candidates[0]
		for _, c := range candidates {
			if c.marker.WorkspaceMembers == nil {
				continue
			}
			members, err := c.marker.WorkspaceMembers(c.data)
			if err != nil {
				return &ManifestParseError{Path: c.path, Err: err}
			}
			if len(members) > 0 {
				chosen = c
				break
			}
		}
		if err := d.addFromManifest(ws, deps, chosen.marker, dir, chosen.path, chosen.data); err != nil {
			return err
		}
	}
	return nil
}

// findManifestDirs returns every directory under root that contains
// at least one recognized manifest file, using godirwalk for a fast
// recursive scan ahead of glob-based source enumeration (spec §4.B).
func (d *Discoverer) findManifestDirs(root string) ([]string, error) {
	names := make(map[string]bool, len(ecosystem.Markers))
	for _, m := range ecosystem.Markers {
		names[m.ManifestName] = true
	}

	dirSet := map[string]bool{}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				base := filepath.Base(path)
				if base == "node_modules" || base == ".git" || base == "target" || base == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if names[filepath.Base(path)] {
				dirSet[filepath.Dir(path)] = true
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (d *Discoverer) addFromManifest(ws *Workspace, deps map[PackageID][]declaredDep, marker ecosystem.Marker, dir, manifestPath string, data []byte) error {
	var memberGlobs []string
	if marker.WorkspaceMembers != nil {
		members, err := marker.WorkspaceMembers(data)
		if err != nil {
			return &ManifestParseError{Path: manifestPath, Err: err}
		}
		memberGlobs = members
	}

	if len(memberGlobs) == 0 {
		// Single-package manifest.
		res, err := buildPackage(marker.Tag, dir, manifestPath, data)
		if err != nil {
			return err
		}
		return d.addPackage(ws, deps, res)
	}

	// Workspace-root manifest: expand member globs to member dirs.
	memberDirs, err := d.expandMemberGlobs(ws.Root, dir, memberGlobs)
	if err != nil {
		return &ManifestParseError{Path: manifestPath, Err: err}
	}
	for _, memberDir := range memberDirs {
		for _, innerMarker := range ecosystem.Markers {
			if innerMarker.Tag != marker.Tag {
				continue
			}
			innerManifest := filepath.Join(memberDir, innerMarker.ManifestName)
			innerData, err := d.FS.Read(innerManifest)
			if err != nil {
				continue
			}
			res, err := buildPackage(marker.Tag, memberDir, innerManifest, innerData)
			if err != nil {
				return err
			}
			if err := d.addPackage(ws, deps, res); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (d *Discoverer) expandMemberGlobs(root, anchor string, globs []string) ([]string, error) {
	var patterns []string
	for _, g := range globs {
		g = strings.TrimSuffix(g, "/")
		patterns = append(patterns, g+"/package.json", g+"/Cargo.toml", g+"/go.mod", g+"/pom.xml", g+"/pyproject.toml")
	}
	matches, err := d.FS.Walk(anchor, patterns, nil)
	if err != nil {
		return nil, err
	}
	dirSet := map[string]bool{}
	for _, m := range matches {
		dirSet[filepath.Join(anchor, filepath.Dir(m))] = true
	}
	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (d *Discoverer) addPackage(ws *Workspace, deps map[PackageID][]declaredDep, res *buildResult) error {
	pkg := res.pkg
	if existing, ok := ws.Packages[pkg.ID]; ok {
		if existing.ManifestPath == pkg.ManifestPath {
			// Same manifest reached twice: as a workspace member and as its own manifest directory.
			return nil
		}
		return &DuplicatePackageError{ID: pkg.ID, FirstPath: existing.ManifestPath, SecondPath: pkg.ManifestPath}
	}
	pkg.GitIgnoreLines = d.readGitIgnore(pkg.Root)
	ws.Packages[pkg.ID] = pkg
	deps[pkg.ID] = res.deps
	return nil
}

// readGitIgnore loads a package-local .gitignore, respected only at the
// package root the way cli/internal/context's loadPackageDepsHash hack
// does ("we only respect .gitignore in the root and in the directory of
// a package"). Absent file is not an error.
func (d *Discoverer) readGitIgnore(dir string) []string {
	data, err := d.FS.Read(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
