package importgraph

import (
	"path"
	"regexp"
	"strings"
)

// pythonParser lexically scans `import` and `from ... import` statements,
// resolving package-relative and dotted-relative specifiers against the
// package's known file set (spec §4.E).
type pythonParser struct{}

func NewPythonParser() Parser { return pythonParser{} }

func (pythonParser) Language() Language { return Python }

func (pythonParser) IsTestFile(p string) bool {
	base := path.Base(p)
	return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") ||
		strings.Contains(p, "/tests/")
}

var (
	pyFromImportRe = regexp.MustCompile(`(?m)^\s*from\s+(\.{0,}[\w.]*)\s+import\s+([\w, ()*]+)`)
	pyImportRe     = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
)

// Parse handles three forms: `import a.b.c`, `from a.b import c`, and
// `from . import c` / `from .. import c` (relative imports), resolving
// each to a module file (foo.py or foo/__init__.py) when it exists
// within packageFiles.
func (p pythonParser) Parse(filePath string, contents []byte, packageFiles []string, moduleRoots map[string]string) ([]string, bool) {
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

	for _, m := range pyFromImportRe.FindAllStringSubmatch(src, -1) {
		module := m[1]
		names := strings.Split(m[2], ",")
		base := resolvePythonModuleDir(module, dir)
		if base == "" {
			continue
		}
		add(resolvePythonModuleFile(base, fileSet))
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" || n == "*" {
				continue
			}
			add(resolvePythonModuleFile(path.Join(base, n), fileSet))
		}
	}

	for _, m := range pyImportRe.FindAllStringSubmatch(src, -1) {
		for _, mod := range strings.Split(m[1], ",") {
			mod = strings.TrimSpace(mod)
			if mod == "" {
				continue
			}
			modPath := strings.ReplaceAll(mod, ".", "/")
			add(resolvePythonModuleFile(modPath, fileSet))
		}
	}

	return targets, true
}

// resolvePythonModuleDir turns a `from` clause's module spec into a
// directory, handling leading dots as relative-package levels.
func resolvePythonModuleDir(module, fromDir string) string {
	dots := 0
	for dots < len(module) && module[dots] == '.' {
		dots++
	}
	rest := module[dots:]
	base := fromDir
	for i := 1; i < dots; i++ {
		base = path.Dir(base)
	}
	if rest != "" {
		base = path.Join(base, strings.ReplaceAll(rest, ".", "/"))
	}
	return base
}

func resolvePythonModuleFile(modPath string, fileSet map[string]bool) string {
	for _, candidate := range []string{modPath + ".py", path.Join(modPath, "__init__.py")} {
		if fileSet[candidate] {
			return candidate
		}
	}
	return ""
}
