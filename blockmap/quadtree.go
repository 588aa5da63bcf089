package blockmap

import "github.com/aukilabs/blockmap/arena"

type quadrant int

const (
	topLeft quadrant = iota
	topRight
	bottomLeft
	bottomRight
)

// node is a quadtree node covering a size x size square of cells whose top
// left cell is cell. A node of size 1 is a leaf and may own a ring.
type node struct {
	cell     Cell
	size     uint32
	children [4]arena.Index
	ring     arena.Index
}

func (n *node) isLeaf() bool {
	return n.size == 1
}

// quadrantOf classifies target against the node center. Ties go to the lower
// valued quadrant on each axis.
func (n *node) quadrantOf(target Cell) quadrant {
	half := n.size >> 1

	q := topLeft
	if target.X >= n.cell.X+half {
		q |= topRight
	}
	if target.Y >= n.cell.Y+half {
		q |= bottomLeft
	}
	return q
}

func (n *node) childCell(q quadrant) Cell {
	half := n.size >> 1

	c := n.cell
	if q&topRight != 0 {
		c.X += half
	}
	if q&bottomLeft != 0 {
		c.Y += half
	}
	return c
}

// quadtree is a sparse region quadtree over a square power of two cell space.
// Nodes and rings are allocated lazily from pools and only released together.
type quadtree[T comparable] struct {
	nodes arena.Pool[node]
	rings arena.Pool[CellRing[T]]
	root  arena.Index
	size  uint32
}

func newQuadtree[T comparable](size uint32) *quadtree[T] {
	t := &quadtree[T]{
		size: size,
	}
	t.root = t.newNode(Cell{}, size)
	return t
}

func (t *quadtree[T]) newNode(cell Cell, size uint32) arena.Index {
	idx, n := t.nodes.Alloc()
	n.cell = cell
	n.size = size
	n.children = [4]arena.Index{arena.Null, arena.Null, arena.Null, arena.Null}
	n.ring = arena.Null
	return idx
}

// findLeaf descends to the leaf holding target. When canCreate is false and
// the leaf was never materialized, it returns false without allocating.
func (t *quadtree[T]) findLeaf(target Cell, canCreate bool) (*node, bool) {
	n := t.nodes.Get(t.root)
	for !n.isLeaf() {
		q := n.quadrantOf(target)

		child := n.children[q]
		if child == arena.Null {
			if !canCreate {
				return nil, false
			}
			child = t.newNode(n.childCell(q), n.size>>1)
			n.children[q] = child
		}
		n = t.nodes.Get(child)
	}
	return n, true
}

// ring returns the ring of the leaf holding target, creating the leaf and the
// ring when canCreate is set.
func (t *quadtree[T]) ring(target Cell, canCreate bool) (*CellRing[T], bool) {
	leaf, ok := t.findLeaf(target, canCreate)
	if !ok {
		return nil, false
	}

	if leaf.ring == arena.Null {
		if !canCreate {
			return nil, false
		}
		leaf.ring, _ = t.rings.Alloc()
	}
	return t.rings.Get(leaf.ring), true
}

// forAllLeaves calls f with every materialized leaf, depth first.
func (t *quadtree[T]) forAllLeaves(f func(*node) LoopResult) LoopResult {
	return t.walk(t.root, f)
}

func (t *quadtree[T]) walk(idx arena.Index, f func(*node) LoopResult) LoopResult {
	n := t.nodes.Get(idx)
	if n.isLeaf() {
		return f(n)
	}

	for _, child := range n.children {
		if child == arena.Null {
			continue
		}
		if res := t.walk(child, f); res != LoopContinue {
			return res
		}
	}
	return LoopContinue
}

// reset releases every node and ring and allocates a new root.
func (t *quadtree[T]) reset() {
	t.nodes.Reset()
	t.rings.Reset()
	t.root = t.newNode(Cell{}, t.size)
}
