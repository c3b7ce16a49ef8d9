package importgraph

import (
	"path"
	"regexp"
	"strings"
)

// rustParser lexically scans `mod` declarations and `crate::`/`self::`/
// `super::` paths, resolving them to sibling files within the same
// crate per Rust's module-file convention (spec §4.E).
type rustParser struct{}

func NewRustParser() Parser { return rustParser{} }

func (rustParser) Language() Language { return Rust }

func (rustParser) IsTestFile(p string) bool {
	return strings.HasSuffix(p, "/tests/") || strings.Contains(p, "/tests/") ||
		strings.HasPrefix(path.Base(p), "test_") ||
		strings.HasSuffix(p, "_test.rs")
}

var (
	rustModDeclRe       = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)\s*;`)
	rustUsePathRe       = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+((?:crate|self|super)(?:::\w+)*)`)
	rustExternUsePathRe = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+(\w+(?:::\w+)*)`)
)

// Parse resolves `mod foo;` declarations to foo.rs or foo/mod.rs
// siblings, and `use crate::a::b` / `use self::a` / `use super::a`
// paths, plus `use other_crate::a::b` where other_crate names a Cargo
// workspace member (moduleRoots), to their file by walking the crate's
// module tree textually. Unresolvable paths (external crates,
// macro-generated modules) are silently dropped, matching spec §4.E's
// "best-effort, never fail the build" guidance.
func (p rustParser) Parse(filePath string, contents []byte, packageFiles []string, moduleRoots map[string]string) ([]string, bool) {
	src := string(contents)
	fileSet := map[string]bool{}
	for _, f := range packageFiles {
		fileSet[f] = true
	}

	var targets []string
	seen := map[string]bool{}
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}

	dir := path.Dir(filePath)
	stem := strings.TrimSuffix(path.Base(filePath), ".rs")
	var modDir string
	if stem == "mod" || stem == "lib" || stem == "main" {
		modDir = dir
	} else {
		modDir = path.Join(dir, stem)
	}

	for _, m := range rustModDeclRe.FindAllStringSubmatch(src, -1) {
		name := m[1]
		for _, candidate := range []string{
			path.Join(modDir, name+".rs"),
			path.Join(modDir, name, "mod.rs"),
		} {
			if fileSet[candidate] {
				add(candidate)
			}
		}
	}

	crateRoot := findCrateRoot(filePath, fileSet)
	for _, m := range rustUsePathRe.FindAllStringSubmatch(src, -1) {
		resolved := resolveRustUsePath(m[1], dir, crateRoot, fileSet)
		add(resolved)
	}
	for _, m := range rustExternUsePathRe.FindAllStringSubmatch(src, -1) {
		resolved := resolveRustExternUsePath(m[1], moduleRoots, fileSet)
		add(resolved)
	}

	return targets, true
}

// findCrateRoot walks up from filePath to locate src/lib.rs or
// src/main.rs, the anchor for `crate::` paths.
func findCrateRoot(filePath string, fileSet map[string]bool) string {
	dir := filePath
	for {
		dir = path.Dir(dir)
		for _, root := range []string{path.Join(dir, "lib.rs"), path.Join(dir, "main.rs")} {
			if fileSet[root] {
				return dir
			}
		}
		if dir == "." || dir == "/" {
			return ""
		}
	}
}

func resolveRustUsePath(usePath, fromDir, crateRoot string, fileSet map[string]bool) string {
	segments := strings.Split(usePath, "::")
	var base string
	switch segments[0] {
	case "crate":
		base = crateRoot
	case "self":
		base = fromDir
	case "super":
		base = path.Dir(fromDir)
	default:
		return ""
	}
	return walkRustModulePath(base, segments[1:], fileSet)
}

// resolveRustExternUsePath resolves `use other_crate::a::b` where
// other_crate is a Cargo workspace member (moduleRoots maps crate name
// to package root), per spec §4.E ("workspace-member crate names").
// crate/self/super are handled by resolveRustUsePath, not here.
func resolveRustExternUsePath(usePath string, moduleRoots map[string]string, fileSet map[string]bool) string {
	segments := strings.Split(usePath, "::")
	switch segments[0] {
	case "crate", "self", "super":
		return ""
	}
	root, ok := moduleRoots[segments[0]]
	if !ok {
		return "" // external crate, not a workspace member: drop
	}
	base := path.Join(root, "src")
	rest := segments[1:]
	if len(rest) == 0 {
		// Bare `use other_crate;`: point at the crate's own root module.
		if fileSet[path.Join(base, "lib.rs")] {
			return path.Join(base, "lib.rs")
		}
		return ""
	}
	return walkRustModulePath(base, rest, fileSet)
}

// walkRustModulePath descends a `::`-separated module path from base,
// resolving the final segment to foo.rs or foo/mod.rs.
func walkRustModulePath(base string, rest []string, fileSet map[string]bool) string {
	if len(rest) == 0 {
		return ""
	}
	cur := base
	for i, seg := range rest {
		isLast := i == len(rest)-1
		asFile := path.Join(cur, seg+".rs")
		asDir := path.Join(cur, seg)
		asModRs := path.Join(asDir, "mod.rs")
		switch {
		case isLast && fileSet[asFile]:
			return asFile
		case isLast && fileSet[asModRs]:
			return asModRs
		default:
			cur = asDir
		}
	}
	return ""
}
