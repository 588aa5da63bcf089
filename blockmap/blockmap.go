// Package blockmap implements a 2D spatial index over a bounded map.
//
// The map is divided into square cells of a fixed size. Objects are linked
// into the cells covered by a point, a box or a line segment, and queries
// visit the objects of a cell, of a box's cells or of every cell crossed by a
// path, in path order.
//
// Cells are stored as the leaves of a sparse quadtree that is only
// materialized where cells have been linked into. Objects are identified by
// value: T is usually a pointer or an id, and its zero value is never linked.
//
// A Blockmap is not safe for concurrent use.
package blockmap

import (
	"math"

	"github.com/aukilabs/blockmap/arena"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Blockmap is a spatial index of T over a bounded map.
type Blockmap[T comparable] struct {
	bounds     AABox
	cellSize   float64
	dimensions Cell
	tree       *quadtree[T]
}

// New creates a blockmap covering bounds with square cells of cellSize map
// units.
func New[T comparable](bounds AABox, cellSize float64) (*Blockmap[T], error) {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		return nil, errors.New("invalid cell size").
			WithType(ErrTypeInvalidCellSize).
			WithTag("cell_size", cellSize)
	}

	if !(bounds.Width() > 0) || !(bounds.Height() > 0) ||
		math.IsInf(bounds.Width(), 0) || math.IsInf(bounds.Height(), 0) {
		return nil, errors.New("invalid bounds").
			WithType(ErrTypeInvalidBounds).
			WithTag("min", bounds.Min).
			WithTag("max", bounds.Max)
	}

	width := math.Ceil(bounds.Width() / cellSize)
	height := math.Ceil(bounds.Height() / cellSize)
	if width > maxDimension || height > maxDimension {
		return nil, errors.New("too many cells").
			WithType(ErrTypeInvalidCellSize).
			WithTag("cell_size", cellSize).
			WithTag("width", width).
			WithTag("height", height)
	}

	dimensions := Cell{
		X: uint32(width),
		Y: uint32(height),
	}

	return &Blockmap[T]{
		bounds:     bounds,
		cellSize:   cellSize,
		dimensions: dimensions,
		tree:       newQuadtree[T](ceilPowerOfTwo(max(dimensions.X, dimensions.Y))),
	}, nil
}

const (
	ErrTypeInvalidCellSize = "blockmap_invalid_cell_size"
	ErrTypeInvalidBounds   = "blockmap_invalid_bounds"

	maxDimension = 1 << 16
)

func (bm *Blockmap[T]) Bounds() AABox {
	return bm.bounds
}

// Origin returns the map space position of the top left corner of cell (0,0).
func (bm *Blockmap[T]) Origin() Vec2 {
	return bm.bounds.Min
}

func (bm *Blockmap[T]) CellSize() float64 {
	return bm.cellSize
}

// Dimensions returns the number of cells on each axis.
func (bm *Blockmap[T]) Dimensions() Cell {
	return bm.dimensions
}

// ToCell returns the cell containing p. Coordinates outside the map are
// clamped to the closest cell and clamped is set.
func (bm *Blockmap[T]) ToCell(p Vec2) (cell Cell, clamped bool) {
	x, clampedX := bm.toCellCoord(p.X, bm.bounds.Min.X, bm.bounds.Max.X, bm.dimensions.X)
	y, clampedY := bm.toCellCoord(p.Y, bm.bounds.Min.Y, bm.bounds.Max.Y, bm.dimensions.Y)
	return Cell{X: x, Y: y}, clampedX || clampedY
}

func (bm *Blockmap[T]) toCellCoord(v, lo, hi float64, dimension uint32) (uint32, bool) {
	clamped := false
	switch {
	case v < lo || math.IsNaN(v):
		v = lo
		clamped = true

	case v >= hi:
		v = hi
		clamped = true
	}

	c := uint32((v - lo) / bm.cellSize)
	if c >= dimension {
		c = dimension - 1
	}
	return c, clamped
}

// ToCellBlock returns the block of cells covered by box.
func (bm *Blockmap[T]) ToCellBlock(box AABox) CellBlock {
	minCell, _ := bm.ToCell(box.Min)
	maxCell, _ := bm.ToCell(box.Max)
	maxCell.X++
	maxCell.Y++

	return CellBlock{
		Min: minCell,
		Max: maxCell,
	}
}

// ClipCellBlock clamps the block to the blockmap dimensions and reports whether
// it was changed.
func (bm *Blockmap[T]) ClipCellBlock(block *CellBlock) bool {
	return clipCellBlock(block, bm.dimensions)
}

func (bm *Blockmap[T]) validCell(c Cell) bool {
	return c.X < bm.dimensions.X && c.Y < bm.dimensions.Y
}

func (bm *Blockmap[T]) linkInCell(c Cell, obj T) bool {
	if !bm.validCell(c) {
		return false
	}

	ring, _ := bm.tree.ring(c, true)
	ring.Link(obj)
	return true
}

func (bm *Blockmap[T]) unlinkInCell(c Cell, obj T) bool {
	if !bm.validCell(c) {
		return false
	}

	ring, ok := bm.tree.ring(c, false)
	if !ok {
		return false
	}
	return ring.Unlink(obj)
}

func isNull[T comparable](obj T) bool {
	var null T
	return obj == null
}

// Link links obj into the cell containing p.
func (bm *Blockmap[T]) Link(p Vec2, obj T) bool {
	if isNull(obj) {
		return false
	}

	cell, _ := bm.ToCell(p)
	return bm.linkInCell(cell, obj)
}

// LinkBox links obj into every cell covered by box. It returns true when obj
// was linked into at least one cell.
func (bm *Blockmap[T]) LinkBox(box AABox, obj T) bool {
	if isNull(obj) {
		return false
	}

	block := bm.ToCellBlock(box)
	bm.ClipCellBlock(&block)

	linked := false
	for y := block.Min.Y; y < block.Max.Y; y++ {
		for x := block.Min.X; x < block.Max.X; x++ {
			if bm.linkInCell(Cell{X: x, Y: y}, obj) {
				linked = true
			}
		}
	}
	return linked
}

// Unlink unlinks obj from the cell containing p.
func (bm *Blockmap[T]) Unlink(p Vec2, obj T) bool {
	if isNull(obj) {
		return false
	}

	cell, _ := bm.ToCell(p)
	return bm.unlinkInCell(cell, obj)
}

// UnlinkBox unlinks obj from every cell covered by box. The box must be the one
// obj was linked with. It returns true when obj was unlinked from at least one
// cell.
func (bm *Blockmap[T]) UnlinkBox(box AABox, obj T) bool {
	if isNull(obj) {
		return false
	}

	block := bm.ToCellBlock(box)
	bm.ClipCellBlock(&block)

	unlinked := false
	for y := block.Min.Y; y < block.Max.Y; y++ {
		for x := block.Min.X; x < block.Max.X; x++ {
			if bm.unlinkInCell(Cell{X: x, Y: y}, obj) {
				unlinked = true
			}
		}
	}
	return unlinked
}

// LinkLine links obj into every cell crossed by the segment from-to, including
// both cells around a grid corner the segment passes through. A segment
// starting outside the map is walked from its other end. Segments with both
// ends outside the map are not linked.
func (bm *Blockmap[T]) LinkLine(from, to Vec2, obj T) bool {
	if isNull(obj) {
		return false
	}

	linked := false
	bm.forAllCellsInLine(from, to, func(c Cell) LoopResult {
		if bm.linkInCell(c, obj) {
			linked = true
		}
		return LoopContinue
	})
	return linked
}

// UnlinkLine unlinks obj from every cell crossed by the segment from-to.
func (bm *Blockmap[T]) UnlinkLine(from, to Vec2, obj T) bool {
	if isNull(obj) {
		return false
	}

	unlinked := false
	bm.forAllCellsInLine(from, to, func(c Cell) LoopResult {
		if bm.unlinkInCell(c, obj) {
			unlinked = true
		}
		return LoopContinue
	})
	return unlinked
}

func (bm *Blockmap[T]) forAllCellsInLine(from, to Vec2, f func(Cell) LoopResult) LoopResult {
	if !bm.bounds.Contains(from) && bm.bounds.Contains(to) {
		from, to = to, from
	}
	return bm.forAllCellsInPath(from, to, true, f)
}

// UnlinkAll unlinks every object from every materialized cell.
func (bm *Blockmap[T]) UnlinkAll() {
	bm.tree.forAllLeaves(func(n *node) LoopResult {
		if n.ring != arena.Null {
			bm.tree.rings.Get(n.ring).UnlinkAll()
		}
		return LoopContinue
	})
}

// Reset releases all cells at once.
func (bm *Blockmap[T]) Reset() {
	bm.tree.reset()
}

// CellElementCount returns the number of objects linked into cell.
func (bm *Blockmap[T]) CellElementCount(cell Cell) int {
	if !bm.validCell(cell) {
		return 0
	}

	ring, ok := bm.tree.ring(cell, false)
	if !ok {
		return 0
	}
	return ring.Len()
}

// ForAllInCell calls f with every object linked into cell. Iteration stops at
// the first result other than LoopContinue, which is returned.
func (bm *Blockmap[T]) ForAllInCell(cell Cell, f func(T) LoopResult) LoopResult {
	if !bm.validCell(cell) {
		return LoopContinue
	}

	ring, ok := bm.tree.ring(cell, false)
	if !ok {
		return LoopContinue
	}
	return ring.ForAll(f)
}

// ForAllInBox calls f with the objects of every cell covered by box, row by
// row. An object linked into several cells is visited once per cell.
func (bm *Blockmap[T]) ForAllInBox(box AABox, f func(T) LoopResult) LoopResult {
	block := bm.ToCellBlock(box)
	bm.ClipCellBlock(&block)

	for y := block.Min.Y; y < block.Max.Y; y++ {
		for x := block.Min.X; x < block.Max.X; x++ {
			if res := bm.ForAllInCell(Cell{X: x, Y: y}, f); res != LoopContinue {
				return res
			}
		}
	}
	return LoopContinue
}

// VisitOnce wraps f so that an object linked into several cells is only
// passed once to f.
func VisitOnce[T comparable](f func(T) LoopResult) func(T) LoopResult {
	seen := make(map[T]struct{})
	return func(obj T) LoopResult {
		if _, ok := seen[obj]; ok {
			return LoopContinue
		}
		seen[obj] = struct{}{}
		return f(obj)
	}
}
