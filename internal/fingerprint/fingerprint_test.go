package fingerprint

import (
	"os"
	"strconv"
	"testing"

	"github.com/forgecrew/launchcore/internal/fsutil"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministicAndOrderIndependent(t *testing.T) {
	memFS := fsutil.NewMem()
	require.NoError(t, memFS.WriteAtomic("/repo/core/a.txt", []byte("hello")))
	require.NoError(t, memFS.WriteAtomic("/repo/core/b.txt", []byte("world")))

	fp := New(memFS)
	d1, err := fp.Fingerprint("/repo/core", []string{"/repo/core/a.txt", "/repo/core/b.txt"}, "echo hi", nil)
	require.NoError(t, err)
	d2, err := fp.Fingerprint("/repo/core", []string{"/repo/core/b.txt", "/repo/core/a.txt"}, "echo hi", nil)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	memFS := fsutil.NewMem()
	require.NoError(t, memFS.WriteAtomic("/repo/core/a.txt", []byte("hello")))
	fp := New(memFS)

	d1, err := fp.Fingerprint("/repo/core", []string{"/repo/core/a.txt"}, "echo hi", nil)
	require.NoError(t, err)

	require.NoError(t, memFS.WriteAtomic("/repo/core/a.txt", []byte("hellp")))
	d2, err := fp.Fingerprint("/repo/core", []string{"/repo/core/a.txt"}, "echo hi", nil)
	require.NoError(t, err)

	require.NotEqual(t, d1, d2)
}

func TestFingerprintMissingInputErrors(t *testing.T) {
	memFS := fsutil.NewMem()
	fp := New(memFS)
	_, err := fp.Fingerprint("/repo/core", []string{"/repo/core/missing.txt"}, "echo hi", nil)
	require.Error(t, err)
	var missing *MissingInputError
	require.ErrorAs(t, err, &missing)
}

func TestFingerprintCapturesEnvWithUnsetSentinel(t *testing.T) {
	memFS := fsutil.NewMem()
	fp := New(memFS)

	require.NoError(t, os.Unsetenv("LAUNCHCORE_TEST_ENV_ABSENT"))
	d1, err := fp.Fingerprint("/repo/core", nil, "echo hi", []string{"LAUNCHCORE_TEST_ENV_ABSENT"})
	require.NoError(t, err)

	require.NoError(t, os.Setenv("LAUNCHCORE_TEST_ENV_ABSENT", ""))
	defer os.Unsetenv("LAUNCHCORE_TEST_ENV_ABSENT")
	d2, err := fp.Fingerprint("/repo/core", nil, "echo hi", []string{"LAUNCHCORE_TEST_ENV_ABSENT"})
	require.NoError(t, err)

	require.NotEqual(t, d1, d2, "unset and empty-string env must hash differently")
}

func TestFingerprintHashesMoreInputsThanTheConcurrencyGate(t *testing.T) {
	memFS := fsutil.NewMem()
	var inputs []string
	for i := 0; i < maxConcurrentHashes*2+3; i++ {
		path := "/repo/core/f" + strconv.Itoa(i) + ".txt"
		require.NoError(t, memFS.WriteAtomic(path, []byte("x")))
		inputs = append(inputs, path)
	}

	fp := New(memFS)
	_, err := fp.Fingerprint("/repo/core", inputs, "echo hi", nil)
	require.NoError(t, err)
}

func TestFingerprintLengthPrefixAvoidsFieldCollision(t *testing.T) {
	memFS := fsutil.NewMem()
	require.NoError(t, memFS.WriteAtomic("/repo/core/ab", []byte("c")))
	require.NoError(t, memFS.WriteAtomic("/repo/core/a", []byte("bc")))
	fp := New(memFS)

	d1, err := fp.Fingerprint("/repo/core", []string{"/repo/core/ab"}, "", nil)
	require.NoError(t, err)
	d2, err := fp.Fingerprint("/repo/core", []string{"/repo/core/a"}, "", nil)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
}
