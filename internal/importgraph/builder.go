package importgraph

import (
	"path/filepath"
	"strings"

	"github.com/forgecrew/launchcore/internal/fsutil"
)

// Builder walks a package's source files, dispatches each to the
// Parser for its language by extension, and assembles a FileGraph.
// Grounded on the same shape as the pack's package-graph builders
// (other_examples' package_graph.go): discover files, parse each,
// union the edges; adapted here to recover from per-file parse panics
// rather than fail the whole build, per spec §4.E's fail-safe.
type Builder struct {
	FS      fsutil.FS
	Parsers []Parser
}

// NewBuilder wires the three language parsers together.
func NewBuilder(fs fsutil.FS) *Builder {
	return &Builder{
		FS: fs,
		Parsers: []Parser{
			NewRustParser(),
			NewJSTSParser(),
			NewPythonParser(),
		},
	}
}

var extToLanguage = map[string]Language{
	".rs":   Rust,
	".js":   JSTS,
	".jsx":  JSTS,
	".ts":   JSTS,
	".tsx":  JSTS,
	".mjs":  JSTS,
	".cjs":  JSTS,
	".py":   Python,
}

func (b *Builder) parserFor(lang Language) Parser {
	for _, p := range b.Parsers {
		if p.Language() == lang {
			return p
		}
	}
	return nil
}

// Build parses every file under root matching a known source
// extension, relative to repoRoot for edge naming, and returns the
// union FileGraph (spec §4.E, §4.F). moduleRoots maps a workspace
// package/crate name to its root directory, the "nearest package.json's
// workspace name map" / "workspace-member crate names" spec §4.E asks
// bare specifiers to be resolved against.
func (b *Builder) Build(repoRoot string, files []string, moduleRoots map[string]string) *FileGraph {
	fg := NewFileGraph()

	byLang := map[Language][]string{}
	for _, f := range files {
		lang, ok := extToLanguage[strings.ToLower(filepath.Ext(f))]
		if !ok {
			continue
		}
		byLang[lang] = append(byLang[lang], f)
	}

	for lang, langFiles := range byLang {
		parser := b.parserFor(lang)
		if parser == nil {
			continue
		}
		for _, f := range langFiles {
			if parser.IsTestFile(f) {
				fg.TestFiles[f] = true
			}
			b.parseOne(fg, parser, repoRoot, f, langFiles, moduleRoots)
		}
	}

	return fg
}

// parseOne parses a single file, recovering from any panic in a
// Parser implementation and marking the file Unparseable instead of
// propagating the failure: a malformed or unusually-shaped source file
// must never abort change detection (spec §4.E).
func (b *Builder) parseOne(fg *FileGraph, parser Parser, repoRoot, file string, packageFiles []string, moduleRoots map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			fg.Unparseable[file] = true
		}
	}()

	contents, err := b.FS.Read(filepath.Join(repoRoot, file))
	if err != nil {
		fg.Unparseable[file] = true
		return
	}

	targets, ok := parser.Parse(file, contents, packageFiles, moduleRoots)
	if !ok {
		fg.Unparseable[file] = true
		return
	}
	for _, t := range targets {
		fg.AddEdge(file, t)
	}
}
