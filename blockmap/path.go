package blockmap

import "math"

const (
	// The distance an axis parallel path end is moved off its axis.
	pathNudge = 1.0 / 1024

	// The crossing step of an axis along which a path never changes cell.
	noCrossing = 256.0

	crossingEpsilon = 1e-9
)

// ForAllInPath calls f with the objects of every cell crossed by the segment
// from-to, cell by cell in path order. Paths starting outside the map visit
// nothing, and the part of a path beyond the map edge is ignored.
func (bm *Blockmap[T]) ForAllInPath(from, to Vec2, f func(T) LoopResult) LoopResult {
	return bm.forAllCellsInPath(from, to, false, func(c Cell) LoopResult {
		return bm.ForAllInCell(c, f)
	})
}

// PathCells returns the cells crossed by the segment from-to in path order.
func (bm *Blockmap[T]) PathCells(from, to Vec2) []Cell {
	var cells []Cell
	bm.forAllCellsInPath(from, to, false, func(c Cell) LoopResult {
		cells = append(cells, c)
		return LoopContinue
	})
	return cells
}

// TraceCells returns the path cells of from-to in path order plus, where the
// segment passes exactly through a grid corner, the two cells touching that
// corner. These are the cells LinkLine uses, so a trace over them meets every
// line crossing it.
func (bm *Blockmap[T]) TraceCells(from, to Vec2) []Cell {
	var cells []Cell
	bm.forAllCellsInPath(from, to, true, func(c Cell) LoopResult {
		cells = append(cells, c)
		return LoopContinue
	})
	return cells
}

// forAllCellsInPath walks the cells crossed by from-to. With corners set, a
// step through a grid corner also visits both cells touching that corner.
func (bm *Blockmap[T]) forAllCellsInPath(from, to Vec2, corners bool, f func(Cell) LoopResult) LoopResult {
	b := bm.bounds

	if !b.Contains(from) {
		return LoopContinue
	}

	if (from.X < b.Min.X && to.X < b.Min.X) ||
		(from.X > b.Max.X && to.X > b.Max.X) ||
		(from.Y < b.Min.Y && to.Y < b.Min.Y) ||
		(from.Y > b.Max.Y && to.Y > b.Max.Y) {
		return LoopContinue
	}

	if EqualWithEpsilon((to.X-from.X)/bm.cellSize, 0, crossingEpsilon) {
		to.X = nudge(to.X, b.Min.X, b.Max.X)
	}
	if EqualWithEpsilon((to.Y-from.Y)/bm.cellSize, 0, crossingEpsilon) {
		to.Y = nudge(to.Y, b.Min.Y, b.Max.Y)
	}

	if !b.Contains(to) {
		to, _ = b.ClipSegment(from, to)
	}

	origin, _ := bm.ToCell(from)
	dest, _ := bm.ToCell(to)

	// Work in cell units relative to the map origin.
	start := Mul(Sub(from, b.Min), 1/bm.cellSize)
	delta := Mul(Sub(to, from), 1/bm.cellSize)

	x := newAxisWalk(origin.X, dest.X, start.X, delta.X)
	y := newAxisWalk(origin.Y, dest.Y, start.Y, delta.Y)

	cell := origin
	maxPasses := int(bm.dimensions.X) + int(bm.dimensions.Y) + 1

	for pass := 0; pass < maxPasses; pass++ {
		if res := f(cell); res != LoopContinue {
			return res
		}

		if cell == dest {
			break
		}

		stepX := cell.X != dest.X
		stepY := cell.Y != dest.Y
		if stepX && stepY {
			switch {
			case x.next < y.next-crossingEpsilon:
				stepY = false

			case y.next < x.next-crossingEpsilon:
				stepX = false
			}
		}

		if corners && stepX && stepY {
			if res := f(Cell{X: x.peek(cell.X), Y: cell.Y}); res != LoopContinue {
				return res
			}
			if res := f(Cell{X: cell.X, Y: y.peek(cell.Y)}); res != LoopContinue {
				return res
			}
		}

		if stepX {
			x.advance(&cell.X)
		}
		if stepY {
			y.advance(&cell.Y)
		}
	}

	return LoopContinue
}

// nudge moves v off a grid aligned axis without leaving [lo, hi].
func nudge(v, lo, hi float64) float64 {
	if v+pathNudge > hi {
		return v - pathNudge
	}
	return v + pathNudge
}

// axisWalk tracks when a path crosses the next grid line of one axis. next and
// step are expressed as a fraction of the path length. Partials are measured
// from the origin cell rather than from the start coordinate so that a start
// clamped onto the far map edge still walks its own cell first.
type axisWalk struct {
	dir  int
	next float64
	step float64
}

func newAxisWalk(origin, dest uint32, start, delta float64) axisWalk {
	switch {
	case dest > origin:
		partial := math.Max(float64(origin)+1-start, 0)
		return axisWalk{
			dir:  1,
			next: partial / math.Abs(delta),
			step: 1 / math.Abs(delta),
		}

	case dest < origin:
		partial := math.Max(start-float64(origin), 0)
		return axisWalk{
			dir:  -1,
			next: partial / math.Abs(delta),
			step: 1 / math.Abs(delta),
		}

	default:
		return axisWalk{
			next: noCrossing,
			step: noCrossing,
		}
	}
}

// peek returns the coordinate following c along the walk.
func (a *axisWalk) peek(c uint32) uint32 {
	if a.dir < 0 {
		return c - 1
	}
	return c + 1
}

func (a *axisWalk) advance(c *uint32) {
	*c = a.peek(*c)
	a.next += a.step
}
