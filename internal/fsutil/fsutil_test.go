package fsutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAtomicAndRead(t *testing.T) {
	fsys := NewMem()
	err := fsys.WriteAtomic("/repo/pkg/out.txt", []byte("hello"))
	require.NoError(t, err)

	data, err := fsys.Read("/repo/pkg/out.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestWalkIncludeExclude(t *testing.T) {
	fsys := NewMem()
	require.NoError(t, fsys.WriteAtomic("/repo/src/a.go", []byte("a")))
	require.NoError(t, fsys.WriteAtomic("/repo/src/b.go", []byte("b")))
	require.NoError(t, fsys.WriteAtomic("/repo/src/b_test.go", []byte("b test")))

	matches, err := fsys.Walk("/repo", []string{"src/**/*.go"}, []string{"src/**/*_test.go"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"src/a.go", "src/b.go"}, matches)
}
