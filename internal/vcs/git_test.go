package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// gitRun executes git in dir the way Git.run does, failing the test on
// error — grounded on cli/internal/scm/scm_test.go's exec.Command
// fixture helpers.
func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "user.name", "test")
	return dir
}

func TestChangedFilesToRevExcludesWorkingTreeEdits(t *testing.T) {
	dir := newTestRepo(t)
	writeFile(t, dir, "a.txt", "one")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "first")
	base := gitRun(t, dir, "rev-parse", "HEAD")

	writeFile(t, dir, "b.txt", "two")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "second")
	head := trimNL(gitRun(t, dir, "rev-parse", "HEAD"))

	// Uncommitted edit made after the commit we're diffing to — must
	// never show up when toRev names a fixed revision.
	writeFile(t, dir, "c.txt", "dirty")

	g := NewGit(dir)
	files, err := g.ChangedFiles(trimNL(base), head)
	require.NoError(t, err)
	require.Contains(t, files, "b.txt")
	require.NotContains(t, files, "c.txt")
}

func TestChangedFilesEmptyToRevIncludesWorkingTreeEdits(t *testing.T) {
	dir := newTestRepo(t)
	writeFile(t, dir, "a.txt", "one")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "first")

	writeFile(t, dir, "a.txt", "one edited")

	g := NewGit(dir)
	files, err := g.ChangedFiles("", "")
	require.NoError(t, err)
	require.Contains(t, files, "a.txt")
}

func TestChangedFilesEmptyFromRevDiffsAgainstParent(t *testing.T) {
	dir := newTestRepo(t)
	writeFile(t, dir, "a.txt", "one")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "first")

	writeFile(t, dir, "b.txt", "two")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "second")
	head := trimNL(gitRun(t, dir, "rev-parse", "HEAD"))

	g := NewGit(dir)
	files, err := g.ChangedFiles("", head)
	require.NoError(t, err)
	require.Contains(t, files, "b.txt")
	require.NotContains(t, files, "a.txt")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
