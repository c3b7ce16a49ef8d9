package cachestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgecrew/launchcore/internal/fingerprint"
	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/stretchr/testify/require"
)

func testDigest(b byte) fingerprint.Digest {
	var d fingerprint.Digest
	d[0] = b
	return d
}

func TestLookupMissesWhenNoManifest(t *testing.T) {
	memFS := fsutil.NewMem()
	store, err := Open(memFS, "/cache")
	require.NoError(t, err)

	_, hit, err := store.Lookup(testDigest(1))
	require.NoError(t, err)
	require.False(t, hit)
}

func TestInsertThenLookupRoundTrips(t *testing.T) {
	memFS := fsutil.NewMem()
	store, err := Open(memFS, "/cache")
	require.NoError(t, err)

	require.NoError(t, memFS.WriteAtomic("/repo/core/target/out.txt", []byte("built artifact")))

	fp := testDigest(2)
	err = store.Insert(fp, 0, "stdout here", "", []string{"/repo/core/target/out.txt"}, "/repo/core")
	require.NoError(t, err)

	entry, hit, err := store.Lookup(fp)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "stdout here", entry.Stdout)
	require.Len(t, entry.Outputs, 1)
	require.Equal(t, "target/out.txt", entry.Outputs[0].RelPath)
}

func TestInsertSkipsNonZeroExit(t *testing.T) {
	memFS := fsutil.NewMem()
	store, err := Open(memFS, "/cache")
	require.NoError(t, err)

	fp := testDigest(3)
	require.NoError(t, store.Insert(fp, 1, "", "boom", nil, "/repo/core"))

	_, hit, err := store.Lookup(fp)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestInsertFailsOnMissingOutput(t *testing.T) {
	memFS := fsutil.NewMem()
	store, err := Open(memFS, "/cache")
	require.NoError(t, err)

	fp := testDigest(4)
	err = store.Insert(fp, 0, "", "", []string{"/repo/core/target/missing.txt"}, "/repo/core")
	require.Error(t, err)
	var missing *MissingOutputError
	require.ErrorAs(t, err, &missing)
}

func TestLookupTreatsMissingBlobAsMiss(t *testing.T) {
	memFS := fsutil.NewMem()
	store, err := Open(memFS, "/cache")
	require.NoError(t, err)

	require.NoError(t, memFS.WriteAtomic("/repo/core/target/out.txt", []byte("built artifact")))
	fp := testDigest(5)
	require.NoError(t, store.Insert(fp, 0, "", "", []string{"/repo/core/target/out.txt"}, "/repo/core"))

	entry, hit, err := store.Lookup(fp)
	require.NoError(t, err)
	require.True(t, hit)

	// Simulate corruption: delete the referenced blob.
	require.NoError(t, memFS.Rename(store.blobPath(entry.Outputs[0].SHA256), store.blobPath(entry.Outputs[0].SHA256)+".gone"))

	_, hit, err = store.Lookup(fp)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestReplayMaterializesOutputs(t *testing.T) {
	memFS := fsutil.NewMem()
	store, err := Open(memFS, "/cache")
	require.NoError(t, err)

	require.NoError(t, memFS.WriteAtomic("/repo/core/target/out.txt", []byte("built artifact")))
	fp := testDigest(6)
	require.NoError(t, store.Insert(fp, 0, "", "", []string{"/repo/core/target/out.txt"}, "/repo/core"))

	entry, hit, err := store.Lookup(fp)
	require.NoError(t, err)
	require.True(t, hit)

	require.NoError(t, store.Replay(entry, "/restore"))
	data, err := memFS.Read("/restore/target/out.txt")
	require.NoError(t, err)
	require.Equal(t, "built artifact", string(data))
}

func TestSweepWithinBudgetIsNoOpUnderRealDisk(t *testing.T) {
	dir := t.TempDir()
	osFS := fsutil.NewOS()
	store, err := Open(osFS, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keepme.txt"), []byte("x"), 0o644))
	fp := testDigest(7)
	require.NoError(t, osFS.WriteAtomic(filepath.Join(dir, "out.txt"), []byte("small output")))
	require.NoError(t, store.Insert(fp, 0, "", "", []string{filepath.Join(dir, "out.txt")}, dir))

	// A generous budget: sweep should be a no-op and not error.
	require.NoError(t, store.Sweep(1<<30))
}
