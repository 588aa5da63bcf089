package blockmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeQuadrantOf(t *testing.T) {
	n := node{cell: Cell{0, 0}, size: 16}

	require.Equal(t, topLeft, n.quadrantOf(Cell{7, 7}))
	require.Equal(t, topRight, n.quadrantOf(Cell{8, 7}))
	require.Equal(t, bottomLeft, n.quadrantOf(Cell{7, 8}))
	require.Equal(t, bottomRight, n.quadrantOf(Cell{8, 8}))

	require.Equal(t, Cell{8, 0}, n.childCell(topRight))
	require.Equal(t, Cell{0, 8}, n.childCell(bottomLeft))
	require.Equal(t, Cell{8, 8}, n.childCell(bottomRight))
}

func TestQuadtreeFindLeaf(t *testing.T) {
	tree := newQuadtree[int](16)
	require.Equal(t, 1, tree.nodes.Len())

	t.Run("missing leaf is not created", func(t *testing.T) {
		leaf, ok := tree.findLeaf(Cell{3, 5}, false)
		require.False(t, ok)
		require.Nil(t, leaf)
		require.Equal(t, 1, tree.nodes.Len())
	})

	t.Run("leaf is created on demand", func(t *testing.T) {
		leaf, ok := tree.findLeaf(Cell{3, 5}, true)
		require.True(t, ok)
		require.True(t, leaf.isLeaf())
		require.Equal(t, Cell{3, 5}, leaf.cell)
		require.Equal(t, 5, tree.nodes.Len())
	})

	t.Run("same cell resolves to the same leaf", func(t *testing.T) {
		a, ok := tree.findLeaf(Cell{3, 5}, true)
		require.True(t, ok)

		b, ok := tree.findLeaf(Cell{3, 5}, false)
		require.True(t, ok)
		require.Same(t, a, b)
		require.Equal(t, 5, tree.nodes.Len())
	})

	t.Run("siblings share their parents", func(t *testing.T) {
		leaf, ok := tree.findLeaf(Cell{2, 5}, true)
		require.True(t, ok)
		require.Equal(t, Cell{2, 5}, leaf.cell)
		require.Equal(t, 6, tree.nodes.Len())
	})
}

func TestQuadtreeRing(t *testing.T) {
	tree := newQuadtree[int](4)

	_, ok := tree.ring(Cell{1, 1}, false)
	require.False(t, ok)
	require.Zero(t, tree.rings.Len())

	r, ok := tree.ring(Cell{1, 1}, true)
	require.True(t, ok)
	r.Link(7)

	r2, ok := tree.ring(Cell{1, 1}, false)
	require.True(t, ok)
	require.Same(t, r, r2)
	require.Equal(t, 1, r2.Len())
	require.Equal(t, 1, tree.rings.Len())
}

func TestQuadtreeForAllLeaves(t *testing.T) {
	tree := newQuadtree[int](8)
	cells := []Cell{{0, 0}, {7, 7}, {3, 4}}
	for _, c := range cells {
		tree.findLeaf(c, true)
	}

	var visited []Cell
	tree.forAllLeaves(func(n *node) LoopResult {
		visited = append(visited, n.cell)
		return LoopContinue
	})
	require.ElementsMatch(t, cells, visited)

	count := 0
	res := tree.forAllLeaves(func(n *node) LoopResult {
		count++
		return LoopAbort
	})
	require.Equal(t, LoopAbort, res)
	require.Equal(t, 1, count)
}

func TestQuadtreeReset(t *testing.T) {
	tree := newQuadtree[int](8)
	r, _ := tree.ring(Cell{5, 5}, true)
	r.Link(1)

	tree.reset()
	require.Equal(t, 1, tree.nodes.Len())
	require.Zero(t, tree.rings.Len())

	_, ok := tree.ring(Cell{5, 5}, false)
	require.False(t, ok)
}
