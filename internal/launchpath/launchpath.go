// Package launchpath provides small path value types so that paths
// anchored at different roots (a workspace root vs. a package root)
// are never silently mixed up.
//
// Adapted from the turbopath package's absolute/anchored path split.
package launchpath

import (
	"path/filepath"
	"strings"
)

// AbsoluteSystemPath is a path known to be absolute, in the host's
// native separator style.
type AbsoluteSystemPath string

// AnchoredSystemPath is a path known to be relative to some anchor
// (typically a package or workspace root), in the host's native
// separator style.
type AnchoredSystemPath string

// AnchoredUnixPath is an AnchoredSystemPath normalized to forward
// slashes, suitable for cross-platform cache keys and fingerprints.
type AnchoredUnixPath string

// New wraps an already-absolute path. Callers must ensure absoluteness;
// this constructor does not call os.Getwd.
func New(p string) AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Clean(p))
}

// Join joins additional path segments onto the receiver.
func (a AbsoluteSystemPath) Join(elem ...string) AbsoluteSystemPath {
	parts := append([]string{string(a)}, elem...)
	return AbsoluteSystemPath(filepath.Join(parts...))
}

// ToString returns the raw string form.
func (a AbsoluteSystemPath) ToString() string {
	return string(a)
}

// RelativeTo returns p expressed as an AnchoredSystemPath relative to
// the receiver. Returns an error if p does not lie under the receiver.
func (a AbsoluteSystemPath) RelativeTo(p AbsoluteSystemPath) (AnchoredSystemPath, error) {
	rel, err := filepath.Rel(string(a), string(p))
	if err != nil {
		return "", err
	}
	return AnchoredSystemPath(rel), nil
}

// ToUnixPath converts an anchored system path to forward-slash form.
func (a AnchoredSystemPath) ToUnixPath() AnchoredUnixPath {
	return AnchoredUnixPath(filepath.ToSlash(string(a)))
}

// ToString returns the raw string form.
func (a AnchoredSystemPath) ToString() string {
	return string(a)
}

// RestoreAnchor joins an anchored path back onto an absolute root.
func (a AnchoredSystemPath) RestoreAnchor(root AbsoluteSystemPath) AbsoluteSystemPath {
	return root.Join(string(a))
}

// ToString returns the raw string form.
func (a AnchoredUnixPath) ToString() string {
	return string(a)
}

// HasPrefixDir reports whether dir is a path-component prefix of p
// (i.e. p == dir or p is nested inside dir). Both must be in the same
// separator style. Used to pick the deepest containing package root.
func HasPrefixDir(p, dir string) bool {
	if p == dir {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(p, strings.TrimSuffix(dir, sep)+sep)
}
