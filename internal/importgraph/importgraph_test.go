package importgraph

import (
	"testing"

	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/stretchr/testify/require"
)

func TestJSTSParserResolvesRelativeImports(t *testing.T) {
	p := NewJSTSParser()
	files := []string{"src/index.ts", "src/util.ts", "src/widgets/button.tsx"}
	targets, ok := p.Parse("src/index.ts", []byte(`
import { helper } from "./util";
import Button from "./widgets/button";
import external from "react";
const x = require("./util");
`), files, nil)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"src/util.ts", "src/widgets/button.tsx"}, targets)
}

func TestJSTSParserResolvesBareWorkspaceSpecifier(t *testing.T) {
	p := NewJSTSParser()
	files := []string{"packages/app/src/index.ts", "packages/ui/src/index.ts", "packages/ui/src/button.ts"}
	moduleRoots := map[string]string{
		"@acme/ui": "packages/ui/src",
	}
	targets, ok := p.Parse("packages/app/src/index.ts", []byte(`
import { Button } from "@acme/ui/button";
import { Widget } from "@acme/ui";
import react from "react";
`), files, moduleRoots)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"packages/ui/src/button.ts", "packages/ui/src/index.ts"}, targets)
}

func TestJSTSParserDropsBareSpecifierNotInWorkspace(t *testing.T) {
	p := NewJSTSParser()
	files := []string{"src/index.ts"}
	targets, ok := p.Parse("src/index.ts", []byte(`import lodash from "lodash";`), files, map[string]string{
		"@acme/ui": "packages/ui/src",
	})
	require.True(t, ok)
	require.Empty(t, targets)
}

func TestJSTSIsTestFile(t *testing.T) {
	p := NewJSTSParser()
	require.True(t, p.IsTestFile("src/util.test.ts"))
	require.True(t, p.IsTestFile("src/__tests__/util.ts"))
	require.False(t, p.IsTestFile("src/util.ts"))
}

func TestRustParserResolvesModAndUse(t *testing.T) {
	p := NewRustParser()
	files := []string{"src/lib.rs", "src/widgets.rs", "src/widgets/button.rs"}
	targets, ok := p.Parse("src/lib.rs", []byte(`
mod widgets;
use crate::widgets::button;
`), files, nil)
	require.True(t, ok)
	require.Contains(t, targets, "src/widgets.rs")
}

func TestRustParserResolvesWorkspaceMemberCrateUse(t *testing.T) {
	p := NewRustParser()
	files := []string{
		"crates/app/src/lib.rs",
		"crates/widgets/src/lib.rs",
		"crates/widgets/src/button.rs",
	}
	moduleRoots := map[string]string{
		"widgets": "crates/widgets",
	}
	targets, ok := p.Parse("crates/app/src/lib.rs", []byte(`
use widgets::button;
`), files, moduleRoots)
	require.True(t, ok)
	require.Contains(t, targets, "crates/widgets/src/button.rs")
}

func TestRustParserDropsUseOfNonWorkspaceCrate(t *testing.T) {
	p := NewRustParser()
	files := []string{"crates/app/src/lib.rs"}
	targets, ok := p.Parse("crates/app/src/lib.rs", []byte(`
use serde::Serialize;
`), files, map[string]string{"widgets": "crates/widgets"})
	require.True(t, ok)
	require.Empty(t, targets)
}

func TestPythonParserResolvesFromImport(t *testing.T) {
	p := NewPythonParser()
	files := []string{"pkg/__init__.py", "pkg/util.py", "pkg/sub/__init__.py"}
	targets, ok := p.Parse("pkg/__init__.py", []byte(`
from . import util
from .sub import thing
import os
`), files, nil)
	require.True(t, ok)
	require.Contains(t, targets, "pkg/util.py")
	require.Contains(t, targets, "pkg/sub/__init__.py")
}

func TestBuilderBuildsUnionGraph(t *testing.T) {
	memFS := fsutil.NewMem()
	require.NoError(t, memFS.WriteAtomic("/repo/src/index.ts", []byte(`import "./util";`)))
	require.NoError(t, memFS.WriteAtomic("/repo/src/util.ts", []byte(`export const x = 1;`)))

	b := NewBuilder(memFS)
	fg := b.Build("/repo", []string{"src/index.ts", "src/util.ts"}, nil)

	require.Contains(t, fg.Edges["src/index.ts"], "src/util.ts")
	require.Empty(t, fg.Unparseable)
}

func TestBuilderMarksUnreadableFileUnparseable(t *testing.T) {
	memFS := fsutil.NewMem()
	b := NewBuilder(memFS)
	fg := b.Build("/repo", []string{"src/missing.py"}, nil)
	require.True(t, fg.Unparseable["src/missing.py"])
}

func TestBuilderResolvesBareSpecifierAcrossPackagesViaModuleRoots(t *testing.T) {
	memFS := fsutil.NewMem()
	require.NoError(t, memFS.WriteAtomic("/repo/packages/app/src/index.ts", []byte(`import { Button } from "@acme/ui";`)))
	require.NoError(t, memFS.WriteAtomic("/repo/packages/ui/src/index.ts", []byte(`export const Button = 1;`)))

	b := NewBuilder(memFS)
	fg := b.Build("/repo", []string{"packages/app/src/index.ts", "packages/ui/src/index.ts"}, map[string]string{
		"@acme/ui": "packages/ui/src",
	})

	require.Contains(t, fg.Edges["packages/app/src/index.ts"], "packages/ui/src/index.ts")
}
