package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/forgecrew/launchcore/internal/fsutil"
	yarnlock "github.com/iseki0/go-yarnlock"
)

// yarnLockLinks wraps a parsed yarn.lock so npm-ecosystem dependency
// resolution can confirm that a plain semver-range dependency (no
// workspace:/file: protocol prefix) actually resolves to a sibling
// package's exact on-disk version, the classic-Yarn-workspaces case
// spec §4.B's "Unknown dependency references ... are discarded" rule
// doesn't otherwise distinguish from a genuine external npm dependency.
// Grounded on cli/internal/lockfile/yarn_lockfile.go's ResolvePackage
// (yarnPossibleKeys + LockFileEntry.Version lookup), adapted from "does
// this lockfile know this package" to "does this lockfile's resolution
// match this workspace-local version".
type yarnLockLinks struct {
	inner yarnlock.LockFile
}

// loadYarnLock reads root/yarn.lock via fs, returning a zero-value
// (empty-map) yarnLockLinks when absent so callers never special-case
// "no yarn.lock".
func loadYarnLock(fs fsutil.FS, root string) yarnLockLinks {
	data, err := fs.Read(filepath.Join(root, "yarn.lock"))
	if err != nil {
		return yarnLockLinks{}
	}
	lf, err := yarnlock.ParseLockFileData(data)
	if err != nil {
		return yarnLockLinks{}
	}
	return yarnLockLinks{inner: lf}
}

// resolvesToVersion reports whether yarn.lock resolves name@versionSpec
// to exactly localVersion, the signal that versionSpec is actually
// satisfied by a workspace sibling rather than a published package.
func (y yarnLockLinks) resolvesToVersion(name, versionSpec, localVersion string) bool {
	if y.inner == nil || versionSpec == "" || localVersion == "" {
		return false
	}
	for _, key := range []string{
		fmt.Sprintf("%s@%s", name, versionSpec),
		fmt.Sprintf("%s@npm:%s", name, versionSpec),
		fmt.Sprintf("%s@workspace:%s", name, versionSpec),
	} {
		if entry, ok := y.inner[key]; ok {
			return entry.Version == localVersion
		}
	}
	return false
}
