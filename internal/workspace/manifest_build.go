package workspace

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/forgecrew/launchcore/internal/ecosystem"
	toml "github.com/pelletier/go-toml/v2"
)

// declaredDep is a raw, not-yet-resolved internal dependency reference
// pulled out of a manifest. Resolution against actually-discovered
// package names happens in resolveInternalDeps; unresolvable refs are
// dropped silently per spec §4.B ("Unknown dependency references to
// out-of-workspace names are discarded (not an error)").
type declaredDep struct {
	name string
	// versionSpec is set for npm dependencies declared with a plain
	// semver range instead of a workspace:/file: protocol prefix;
	// resolveInternalDeps only counts these as internal when yarn.lock
	// confirms the range resolves to the sibling's exact version.
	// Empty for every other dependency kind, which always resolves by
	// name alone.
	versionSpec string
}

// buildResult carries a freshly-built Package plus its raw,
// not-yet-resolved dependency references. Kept out of any package-level
// state so a Discoverer never leaks data between concurrent Discover
// calls or tests — global state is disallowed (design note §9).
type buildResult struct {
	pkg  *Package
	deps []declaredDep
}

func buildPackage(tag ecosystem.Tag, dir, manifestPath string, data []byte) (*buildResult, error) {
	switch tag {
	case ecosystem.NPM:
		return buildNPMPackage(dir, manifestPath, data)
	case ecosystem.Cargo:
		return buildCargoPackage(dir, manifestPath, data)
	case ecosystem.Go:
		return buildGoPackage(dir, manifestPath, data)
	case ecosystem.Maven:
		return buildMavenPackage(dir, manifestPath, data)
	case ecosystem.Python:
		return buildPythonPackage(dir, manifestPath, data)
	case ecosystem.Docker:
		return buildDockerPackage(dir, manifestPath)
	default:
		return nil, fmt.Errorf("unsupported ecosystem %s", tag)
	}
}

func newPackage(tag ecosystem.Tag, name, version, dir, manifestPath string) *Package {
	return &Package{
		ID:           PackageID{Ecosystem: tag, Name: name},
		Root:         dir,
		ManifestPath: manifestPath,
		Version:      version,
		SourceGlobs:  []string{"**"},
	}
}

func buildNPMPackage(dir, manifestPath string, data []byte) (*buildResult, error) {
	var doc struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
		PackageManager  string            `json:"packageManager"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ManifestParseError{Path: manifestPath, Err: err}
	}
	name := doc.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	if doc.PackageManager != "" {
		// Non-fatal: a malformed packageManager field doesn't
		// invalidate the package, it just loses version validation.
		_, _, _ = parsePackageManagerVersion(doc.PackageManager)
	}
	pkg := newPackage(ecosystem.NPM, name, doc.Version, dir, manifestPath)
	var deps []declaredDep
	addDeps := func(specs map[string]string) {
		for depName, spec := range specs {
			if isWorkspaceProtocolOrLocalPath(spec) {
				deps = append(deps, declaredDep{name: depName})
				continue
			}
			// A plain semver range: only internal if yarn.lock later
			// confirms it resolves to the sibling's exact version.
			deps = append(deps, declaredDep{name: depName, versionSpec: spec})
		}
	}
	addDeps(doc.Dependencies)
	addDeps(doc.DevDependencies)
	return &buildResult{pkg: pkg, deps: deps}, nil
}

func isWorkspaceProtocolOrLocalPath(spec string) bool {
	return strings.HasPrefix(spec, "workspace:") ||
		strings.HasPrefix(spec, "file:") ||
		strings.HasPrefix(spec, "link:") ||
		strings.HasPrefix(spec, "*")
}

// parsePackageManagerVersion validates the "npm@8.1.0"-style
// packageManager field using semver, grounded on
// cli/internal/packagemanager/packagemanager.go's ParsePackageManagerString.
func parsePackageManagerVersion(field string) (manager string, version *semver.Version, err error) {
	re := regexp.MustCompile(`^(npm|pnpm|yarn|bun)@(.+)$`)
	m := re.FindStringSubmatch(field)
	if m == nil {
		return "", nil, fmt.Errorf("invalid packageManager field %q", field)
	}
	v, err := semver.NewVersion(m[2])
	if err != nil {
		return "", nil, err
	}
	return m[1], v, nil
}

func buildCargoPackage(dir, manifestPath string, data []byte) (*buildResult, error) {
	var doc struct {
		Package *struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"package"`
		Dependencies map[string]cargoDepSpec `toml:"dependencies"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ManifestParseError{Path: manifestPath, Err: err}
	}
	name := filepath.Base(dir)
	version := ""
	if doc.Package != nil {
		if doc.Package.Name != "" {
			name = doc.Package.Name
		}
		version = doc.Package.Version
	}
	pkg := newPackage(ecosystem.Cargo, name, version, dir, manifestPath)
	var deps []declaredDep
	for depName, spec := range doc.Dependencies {
		if spec.Path != "" {
			deps = append(deps, declaredDep{name: depName})
		}
	}
	return &buildResult{pkg: pkg, deps: deps}, nil
}

// cargoDepSpec handles both `dep = "1.0"` and `dep = { path = "../x" }`
// forms by implementing a custom unmarshaler.
type cargoDepSpec struct {
	Path string
}

func (c *cargoDepSpec) UnmarshalTOML(data interface{}) error {
	if m, ok := data.(map[string]interface{}); ok {
		if p, ok := m["path"].(string); ok {
			c.Path = p
		}
	}
	return nil
}

func buildGoPackage(dir, manifestPath string, data []byte) (*buildResult, error) {
	name := ""
	var requires []string
	inBlock := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "module "):
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "module "))
		case strings.HasPrefix(trimmed, "require ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			if fields := strings.Fields(trimmed); len(fields) > 0 {
				requires = append(requires, fields[0])
			}
		case strings.HasPrefix(trimmed, "require "):
			if fields := strings.Fields(strings.TrimPrefix(trimmed, "require ")); len(fields) > 0 {
				requires = append(requires, fields[0])
			}
		}
	}
	if name == "" {
		name = filepath.Base(dir)
	}
	pkg := newPackage(ecosystem.Go, name, "", dir, manifestPath)
	var deps []declaredDep
	for _, r := range requires {
		deps = append(deps, declaredDep{name: r})
	}
	return &buildResult{pkg: pkg, deps: deps}, nil
}

func buildMavenPackage(dir, manifestPath string, data []byte) (*buildResult, error) {
	var doc struct {
		ArtifactID   string `xml:"artifactId"`
		Version      string `xml:"version"`
		Dependencies struct {
			Dependency []struct {
				ArtifactID string `xml:"artifactId"`
			} `xml:"dependency"`
		} `xml:"dependencies"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ManifestParseError{Path: manifestPath, Err: err}
	}
	name := doc.ArtifactID
	if name == "" {
		name = filepath.Base(dir)
	}
	pkg := newPackage(ecosystem.Maven, name, doc.Version, dir, manifestPath)
	var deps []declaredDep
	for _, d := range doc.Dependencies.Dependency {
		deps = append(deps, declaredDep{name: d.ArtifactID})
	}
	return &buildResult{pkg: pkg, deps: deps}, nil
}

func buildPythonPackage(dir, manifestPath string, data []byte) (*buildResult, error) {
	name := filepath.Base(dir)
	version := ""
	if strings.HasSuffix(manifestPath, "pyproject.toml") {
		var doc struct {
			Project *struct {
				Name    string `toml:"name"`
				Version string `toml:"version"`
			} `toml:"project"`
			Tool struct {
				Poetry *struct {
					Name    string `toml:"name"`
					Version string `toml:"version"`
				} `toml:"poetry"`
			} `toml:"tool"`
		}
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, &ManifestParseError{Path: manifestPath, Err: err}
		}
		if doc.Project != nil && doc.Project.Name != "" {
			name = doc.Project.Name
			version = doc.Project.Version
		} else if doc.Tool.Poetry != nil && doc.Tool.Poetry.Name != "" {
			name = doc.Tool.Poetry.Name
			version = doc.Tool.Poetry.Version
		}
	}
	return &buildResult{pkg: newPackage(ecosystem.Python, name, version, dir, manifestPath)}, nil
}

func buildDockerPackage(dir, manifestPath string) (*buildResult, error) {
	return &buildResult{pkg: newPackage(ecosystem.Docker, filepath.Base(dir), "", dir, manifestPath)}, nil
}

// resolveInternalDeps converts every declaredDep collected during
// manifest parsing into a real PackageID edge, discarding references
// that don't resolve to a package discovered in this workspace (spec
// §4.B).
func resolveInternalDeps(ws *Workspace, deps map[PackageID][]declaredDep, yarnLock yarnLockLinks) {
	byName := map[ecosystem.Tag]map[string]PackageID{}
	for id := range ws.Packages {
		if byName[id.Ecosystem] == nil {
			byName[id.Ecosystem] = map[string]PackageID{}
		}
		byName[id.Ecosystem][id.Name] = id
	}
	for id, pkg := range ws.Packages {
		for _, dep := range deps[id] {
			resolved, ok := byName[id.Ecosystem][dep.name]
			if !ok || resolved == id {
				continue
			}
			if dep.versionSpec != "" && !yarnLock.resolvesToVersion(dep.name, dep.versionSpec, ws.Packages[resolved].Version) {
				continue
			}
			pkg.DependsOn = append(pkg.DependsOn, resolved)
		}
	}
}
