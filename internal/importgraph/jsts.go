package importgraph

import (
	"path"
	"regexp"
	"strings"
)

// jstsParser scans JavaScript/TypeScript/JSX/TSX source for import and
// require specifiers lexically, without building an AST, per spec
// §4.E ("lexical scan, not a full parser; tolerate syntax errors").
type jstsParser struct{}

func NewJSTSParser() Parser { return jstsParser{} }

func (jstsParser) Language() Language { return JSTS }

var jstsTestPathRe = regexp.MustCompile(`(?:^|/)(__tests__/|.*\.(test|spec))\.[jt]sx?$`)

func (jstsParser) IsTestFile(p string) bool {
	return jstsTestPathRe.MatchString(p) || strings.Contains(p, "__tests__/")
}

var (
	jstsImportFromRe = regexp.MustCompile(`(?:import|export)\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`)
	jstsBareImportRe = regexp.MustCompile(`import\s+['"]([^'"]+)['"]`)
	jstsRequireRe    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	jstsDynImportRe  = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
)

// Parse extracts every quoted specifier following import/export/require
// syntax and resolves the relative ones ("./x", "../x") against the
// package's known file set. Bare specifiers are resolved against
// moduleRoots (the nearest package.json's workspace name map, per spec
// §4.E); a bare specifier naming no workspace package is external and
// dropped.
func (p jstsParser) Parse(filePath string, contents []byte, packageFiles []string, moduleRoots map[string]string) ([]string, bool) {
	src := string(contents)
	var specifiers []string
	for _, re := range []*regexp.Regexp{jstsImportFromRe, jstsBareImportRe, jstsRequireRe, jstsDynImportRe} {
		for _, m := range re.FindAllStringSubmatch(src, -1) {
			specifiers = append(specifiers, m[1])
		}
	}

	fileSet := map[string]bool{}
	for _, f := range packageFiles {
		fileSet[f] = true
	}

	var targets []string
	seen := map[string]bool{}
	for _, spec := range specifiers {
		var resolved string
		if strings.HasPrefix(spec, ".") {
			resolved = resolveJSTSSpecifier(filePath, spec, fileSet)
		} else {
			resolved = resolveJSTSBareSpecifier(spec, moduleRoots, fileSet)
		}
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		targets = append(targets, resolved)
	}
	return targets, true
}

var jstsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// resolveJSTSSpecifier maps a relative import specifier to a concrete
// file in fileSet, trying extensionless, explicit-extension, and
// index-file resolution in that order, matching Node/bundler
// resolution order closely enough for change-impact purposes.
func resolveJSTSSpecifier(fromFile, spec string, fileSet map[string]bool) string {
	base := path.Join(path.Dir(fromFile), spec)
	candidates := []string{base}
	for _, ext := range jstsExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range jstsExtensions {
		candidates = append(candidates, path.Join(base, "index"+ext))
	}
	for _, c := range candidates {
		if fileSet[c] {
			return c
		}
	}
	return ""
}

// splitBareSpecifier splits a bare import specifier into the workspace
// package name it could name and the subpath requested within it, e.g.
// "@scope/pkg/sub" -> ("@scope/pkg", "sub"), "pkg/sub" -> ("pkg", "sub").
func splitBareSpecifier(spec string) (name, subpath string) {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) < 2 {
			return spec, ""
		}
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	parts := strings.SplitN(spec, "/", 2)
	name = parts[0]
	if len(parts) == 2 {
		subpath = parts[1]
	}
	return name, subpath
}

// resolveJSTSBareSpecifier resolves a bare specifier against the
// workspace name map: moduleRoots keyed by package name, per spec §4.E
// ("nearest package.json's workspace name map"). The package's own
// root is treated like a module entry point, tried the same
// extensionless/explicit-extension/index order as a relative import.
func resolveJSTSBareSpecifier(spec string, moduleRoots map[string]string, fileSet map[string]bool) string {
	name, subpath := splitBareSpecifier(spec)
	root, ok := moduleRoots[name]
	if !ok {
		return "" // not a workspace package: external, drop
	}
	base := root
	if subpath != "" {
		base = path.Join(root, subpath)
	}
	candidates := []string{base}
	for _, ext := range jstsExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range jstsExtensions {
		candidates = append(candidates, path.Join(base, "index"+ext))
	}
	for _, c := range candidates {
		if fileSet[c] {
			return c
		}
	}
	return ""
}
