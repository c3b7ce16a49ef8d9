// Package fsutil is the filesystem adapter the core consumes (spec §6):
// Walk, Read, WriteAtomic, Rename. It is backed by afero.Fs so tests can
// swap in an in-memory filesystem instead of touching disk, the same
// pattern the teacher's internal/globby package uses afero for.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/yookoala/realpath"
)

// FS is the filesystem adapter interface consumed by the rest of the
// core. Production code wires OS; tests wire an in-memory afero fs.
type FS interface {
	// Walk returns paths under root matching globsIn and not matching
	// globsOut, relative to root, in lexicographic order.
	Walk(root string, globsIn, globsOut []string) ([]string, error)
	Read(path string) ([]byte, error)
	WriteAtomic(path string, data []byte) error
	Rename(src, dst string) error
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string) error
	// EvalSymlinks resolves path through its real filesystem location,
	// used by the fingerprinter to hash symlink targets rather than
	// the link bytes themselves (spec §4.A). Implementations that
	// don't model symlinks (the in-memory Mem backend) return path
	// unchanged.
	EvalSymlinks(path string) (string, error)
}

// OS is the production FS backed by the real filesystem via afero.
type OS struct {
	afero afero.Fs
	// resolveSymlink implements EvalSymlinks; real disk uses
	// github.com/yookoala/realpath, the in-memory backend is a no-op
	// since afero's MemMapFs does not model symlinks.
	resolveSymlink func(path string) (string, error)
}

// NewOS constructs an OS-backed FS.
func NewOS() *OS {
	return &OS{afero: afero.NewOsFs(), resolveSymlink: realpath.Realpath}
}

// NewMem constructs an in-memory FS, suitable for hermetic tests.
func NewMem() *OS {
	return &OS{
		afero:          afero.NewMemMapFs(),
		resolveSymlink: func(path string) (string, error) { return path, nil },
	}
}

func (o *OS) EvalSymlinks(path string) (string, error) {
	return o.resolveSymlink(path)
}

// Afero exposes the underlying afero.Fs for packages (globby-style
// walkers, doublestar) that need the raw interface.
func (o *OS) Afero() afero.Fs { return o.afero }

func (o *OS) Stat(path string) (os.FileInfo, error) {
	return o.afero.Stat(path)
}

func (o *OS) MkdirAll(path string) error {
	return o.afero.MkdirAll(path, 0o755)
}

func (o *OS) Read(path string) ([]byte, error) {
	f, err := o.afero.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// WriteAtomic writes data to path via a temp file in the same
// directory followed by a rename, so a crash never leaves a partially
// written file visible at path. Grounded on fs.copy_file.go's
// temp-file+rename idiom.
func (o *OS) WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := o.afero.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating dir %s", dir)
	}
	tmp, err := afero.TempFile(o.afero, dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = o.afero.Remove(tmpName)
		return errors.Wrapf(err, "writing temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = o.afero.Remove(tmpName)
		return errors.Wrap(err, "closing temp file")
	}
	if err := o.afero.Rename(tmpName, path); err != nil {
		_ = o.afero.Remove(tmpName)
		return errors.Wrapf(err, "renaming temp file to %s", path)
	}
	return nil
}

func (o *OS) Rename(src, dst string) error {
	if err := o.afero.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return o.afero.Rename(src, dst)
}

// Walk expands the include globs rooted at root, drops anything
// matching an exclude glob, and returns the surviving paths relative
// to root in lexicographic order. Grounded on internal/globby's
// doublestar.GlobWalk-over-afero approach, generalized to operate
// directly against the FS's afero.Fs rather than only io/fs.
func (o *OS) Walk(root string, globsIn, globsOut []string) ([]string, error) {
	if len(globsIn) == 0 {
		globsIn = []string{"**"}
	}
	excluded := make(map[string]bool, 64)
	for _, ex := range globsOut {
		matches, err := globWalk(o.afero, root, ex)
		if err != nil {
			continue
		}
		for _, m := range matches {
			excluded[m] = true
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, in := range globsIn {
		matches, err := globWalk(o.afero, root, in)
		if err != nil {
			return nil, errors.Wrapf(err, "walking glob %s under %s", in, root)
		}
		for _, m := range matches {
			if excluded[m] || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func globWalk(aferoFs afero.Fs, root, pattern string) ([]string, error) {
	sub := afero.NewBasePathFs(aferoFs, root)
	iofs := afero.NewIOFS(sub)
	var results []string
	err := doublestar.GlobWalk(iofs, filepath.ToSlash(pattern), func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		results = append(results, filepath.ToSlash(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ErrSymlinkCycle is a sentinel for a detected symlink cycle. Nothing in
// this module returns it; the fingerprint package reports cycles with its
// own fingerprint.ErrSymlinkCycle type.
var ErrSymlinkCycle = fmt.Errorf("symlink cycle detected")
