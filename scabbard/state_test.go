package scabbard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/wire"
)

func mustOpenStateTree(t *testing.T) *StateTree {
	t.Helper()
	tree, err := OpenStateTree(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func testAddress(seed byte) string {
	b := make([]byte, 35)
	for i := range b {
		b[i] = seed
	}
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 70)
	for i, v := range b {
		out[2*i] = hexDigits[v>>4]
		out[2*i+1] = hexDigits[v&0xf]
	}
	return string(out)
}

func TestStateTree_CommitAndGet(t *testing.T) {
	tree := mustOpenStateTree(t)
	root := tree.EmptyRoot()

	addr := testAddress(0xAB)
	newRoot, err := tree.Commit(root, []wire.StateChange{
		{Type: wire.StateSet, Key: addr, Value: []byte("hello")},
	})
	require.NoError(t, err)
	require.NotEqual(t, root, newRoot)

	value, ok, err := tree.Get(newRoot, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), value)

	_, ok, err = tree.Get(root, addr)
	require.NoError(t, err)
	require.False(t, ok, "old root must not see the new write")
}

func TestStateTree_DryRunDoesNotPersist(t *testing.T) {
	tree := mustOpenStateTree(t)
	root := tree.EmptyRoot()
	addr := testAddress(0x01)

	dryRoot, err := tree.DryRunCommit(root, []wire.StateChange{
		{Type: wire.StateSet, Key: addr, Value: []byte("dry")},
	})
	require.NoError(t, err)
	require.NotEqual(t, root, dryRoot)

	_, ok, err := tree.Get(dryRoot, addr)
	require.Error(t, err, "dry-run root's nodes were never persisted")
	require.False(t, ok)
}

func TestStateTree_FilterIter(t *testing.T) {
	tree := mustOpenStateTree(t)
	root := tree.EmptyRoot()

	addr1 := testAddress(0x10)
	addr2 := testAddress(0x20)
	root, err := tree.Commit(root, []wire.StateChange{
		{Type: wire.StateSet, Key: addr1, Value: []byte("a")},
		{Type: wire.StateSet, Key: addr2, Value: []byte("b")},
	})
	require.NoError(t, err)

	all, err := tree.FilterIter(root, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestStateTree_PruneKeepsRootsStillShared(t *testing.T) {
	tree := mustOpenStateTree(t)
	root0 := tree.EmptyRoot()
	addr1 := testAddress(0x11)
	addr2 := testAddress(0x22)

	root1, err := tree.Commit(root0, []wire.StateChange{{Type: wire.StateSet, Key: addr1, Value: []byte("one")}})
	require.NoError(t, err)

	root2, err := tree.Commit(root1, []wire.StateChange{{Type: wire.StateSet, Key: addr2, Value: []byte("two")}})
	require.NoError(t, err)

	// root1 is superseded by root2, but every node on addr1's path is still
	// reachable from root2, so pruning root1 must not remove addr1's entry.
	removed, err := tree.Prune([]string{root1})
	require.NoError(t, err)
	require.Empty(t, removed, "addr1's nodes are still referenced by root2")

	_, ok, err := tree.Get(root1, addr1)
	require.Error(t, err, "root1's own node was deleted")
	require.False(t, ok)

	value, ok, err := tree.Get(root2, addr1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("one"), value)
}

func TestStateTree_PruneIsIdempotentAndRemovesUnreferencedKeys(t *testing.T) {
	tree := mustOpenStateTree(t)
	root0 := tree.EmptyRoot()
	addr := testAddress(0x33)

	root1, err := tree.Commit(root0, []wire.StateChange{{Type: wire.StateSet, Key: addr, Value: []byte("only")}})
	require.NoError(t, err)

	removed, err := tree.Prune([]string{root1})
	require.NoError(t, err)
	require.Equal(t, []string{addr}, removed)

	_, ok, err := tree.Get(root1, addr)
	require.Error(t, err, "get(r,k) after prune(r) must fail")
	require.False(t, ok)

	// Pruning the same root again finds nothing left to remove.
	removed, err = tree.Prune([]string{root1})
	require.NoError(t, err)
	require.Empty(t, removed)
}

func TestStateTree_DeleteRemovesValue(t *testing.T) {
	tree := mustOpenStateTree(t)
	root := tree.EmptyRoot()
	addr := testAddress(0x42)

	root, err := tree.Commit(root, []wire.StateChange{{Type: wire.StateSet, Key: addr, Value: []byte("x")}})
	require.NoError(t, err)

	root, err = tree.Commit(root, []wire.StateChange{{Type: wire.StateDelete, Key: addr}})
	require.NoError(t, err)

	_, ok, err := tree.Get(root, addr)
	require.NoError(t, err)
	require.False(t, ok)
}
