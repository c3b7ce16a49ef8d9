package cachestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"
	"github.com/cenkalti/backoff/v4"
	"github.com/nightlyone/lockfile"
)

// DefaultRoot returns the default cache directory outside the repo
// (spec §6 tasks.cache.dir default), grounded on
// cli/internal/fs/get_turbo_data_dir_go.go's use of xdg.DataHome.
func DefaultRoot() string {
	return filepath.Join(xdg.DataHome, "launchcore", "cache")
}

// manifestEntry pairs a manifest's path with its last-modified time and
// the set of blobs it references, for LRU eviction bookkeeping.
type manifestEntry struct {
	path    string
	modTime time.Time
	size    int64
	blobs   []string
}

// Sweep enforces maxBytes by evicting whole CacheEntries (manifest +
// referenced blobs) oldest-first until the store's estimated size is
// at or under budget (spec §4.H, §6: "LRU sweep runs at process start
// when size exceeds budget; it removes whole entries"). A
// cross-process file lock (github.com/nightlyone/lockfile) ensures two
// processes never sweep concurrently; lock acquisition retries with
// github.com/cenkalti/backoff/v4 since a held lock is expected to be
// transient.
func (s *Store) Sweep(maxBytes int64) error {
	if maxBytes <= 0 {
		return nil
	}

	lock, err := lockfile.New(filepath.Join(s.Root, "sweep.lock"))
	if err != nil {
		return err
	}

	acquire := func() error {
		err := lock.TryLock()
		if err == lockfile.ErrBusy {
			return err // retryable
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(acquire, bo); err != nil {
		// Another process is sweeping, or the lock could not be taken
		// for a non-retryable reason: skip this run's sweep rather than
		// block the scheduler (spec §7: cache errors never propagate
		// upward as run failures on their own).
		return nil
	}
	defer func() { _ = lock.Unlock() }()

	entries, totalSize, err := s.listManifests()
	if err != nil {
		return err
	}
	if totalSize <= maxBytes {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })

	referenced := map[string]int{}
	for _, e := range entries {
		for _, b := range e.blobs {
			referenced[b]++
		}
	}

	for _, e := range entries {
		if totalSize <= maxBytes {
			break
		}
		if err := s.FS.Rename(e.path, e.path+".evicted"); err != nil {
			continue
		}
		_ = os.Remove(e.path + ".evicted")
		totalSize -= e.size
		for _, b := range e.blobs {
			referenced[b]--
			if referenced[b] == 0 {
				_ = os.Remove(s.blobPath(b))
			}
		}
	}
	return nil
}

func (s *Store) listManifests() ([]manifestEntry, int64, error) {
	manifestDir := filepath.Join(s.Root, "manifests")
	var entries []manifestEntry
	var total int64

	dirEntries, err := os.ReadDir(manifestDir)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(manifestDir, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		data, err := s.FS.Read(path)
		if err != nil {
			continue
		}
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}

		size := info.Size()
		for _, out := range m.Outputs {
			if bi, err := os.Stat(s.blobPath(out.SHA256)); err == nil {
				size += bi.Size()
			}
		}
		total += size

		blobs := make([]string, len(m.Outputs))
		for i, out := range m.Outputs {
			blobs[i] = out.SHA256
		}
		entries = append(entries, manifestEntry{path: path, modTime: info.ModTime(), size: size, blobs: blobs})
	}
	return entries, total, nil
}
