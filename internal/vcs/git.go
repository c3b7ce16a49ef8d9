package vcs

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Git is the git-backed Adapter implementation. Grounded on
// cli/internal/scm/git_go.go's exec.Command("git", ...) idiom.
type Git struct {
	RepoRoot string
}

var _ Adapter = (*Git)(nil)

// NewGit returns a Git adapter rooted at repoRoot.
func NewGit(repoRoot string) *Git {
	return &Git{RepoRoot: repoRoot}
}

func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.RepoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "git %s", strings.Join(args, " "))
	}
	return string(out), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ChangedFiles returns the union of:
//   - committed changes between fromRev and toRev (diff --name-only),
//     or between toRev's parent and toRev if fromRev is empty;
//   - unstaged/staged working tree modifications relative to HEAD, only
//     when toRev is empty — a non-empty toRev names a fixed revision,
//     so the result must never include uncommitted local edits.
func (g *Git) ChangedFiles(fromRev, toRev string) ([]string, error) {
	target := toRev
	if target == "" {
		target = "HEAD"
	}

	seen := make(map[string]bool)
	var files []string
	add := func(lines []string) {
		for _, l := range lines {
			if !seen[l] {
				seen[l] = true
				files = append(files, l)
			}
		}
	}

	if toRev == "" {
		// target is the working tree's parent commit (HEAD by default):
		// a plain diff against it picks up uncommitted edits too. A
		// non-empty toRev names a fixed revision, so this working-tree
		// comparison must not run — the result must be exactly
		// fromRev..toRev, per Adapter's doc.
		out, err := g.run("diff", "--name-only", target)
		if err != nil {
			return nil, err
		}
		add(splitLines(out))
	}

	effectiveFrom := fromRev
	if effectiveFrom == "" && toRev != "" {
		// No base given for a fixed target revision: fall back to the
		// target's own parent, so the result is that commit's changes
		// rather than silently empty.
		effectiveFrom = target + "~1"
	}
	if effectiveFrom != "" {
		out, err := g.run("diff", "--name-only", effectiveFrom+"..."+target)
		if err != nil {
			return nil, err
		}
		add(splitLines(out))
	}

	if toRev == "" {
		// unstaged/staged modifications relative to the working tree
		out, err := g.run("status", "--porcelain")
		if err != nil {
			return nil, err
		}
		for _, line := range splitLines(out) {
			if len(line) > 3 {
				add([]string{strings.TrimSpace(line[3:])})
			}
		}
	}

	return files, nil
}

// CurrentHead returns the current commit SHA.
func (g *Git) CurrentHead() (string, error) {
	out, err := g.run("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsDirty reports whether there are any uncommitted changes.
func (g *Git) IsDirty() (bool, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// UntrackedFiles returns files present on disk but not tracked by git.
func (g *Git) UntrackedFiles() ([]string, error) {
	out, err := g.run("ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}
