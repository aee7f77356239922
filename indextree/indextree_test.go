package indextree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateReserveRelease(t *testing.T) {
	arena := NewArena()
	tree, err := Create(arena)
	require.NoError(t, err)
	require.NotEqual(t, "", tree.incarnation)
	require.Equal(t, int64(1), arena.Used())

	require.NoError(t, Reserve(tree))
	Release(tree)
	Release(tree)
}

func TestReserveAfterShutdownFails(t *testing.T) {
	arena := NewArena()
	tree, err := Create(arena)
	require.NoError(t, err)

	roots := NewRootStore()
	require.NoError(t, Shutdown(tree, roots, "7"))
	require.Equal(t, int64(0), arena.Used())

	err = Reserve(tree)
	require.Error(t, err)
}

func TestResumeRecoversIncarnation(t *testing.T) {
	arena := NewArena()
	roots := NewRootStore()

	orig, err := Create(arena)
	require.NoError(t, err)
	require.NoError(t, Shutdown(orig, roots, "3"))

	resumed, err := Resume(arena, roots, "3")
	require.NoError(t, err)
	require.Equal(t, orig.incarnation, resumed.incarnation)
}

func TestResumeWithoutPriorRootCreatesFresh(t *testing.T) {
	arena := NewArena()
	roots := NewRootStore()

	tree, err := Resume(arena, roots, "no-such-key")
	require.NoError(t, err)
	require.NotEqual(t, "", tree.incarnation)
}

func TestSizeOnEmptyTree(t *testing.T) {
	arena := NewArena()
	tree, err := Create(arena)
	require.NoError(t, err)
	require.Equal(t, 0, Size(tree))
}
