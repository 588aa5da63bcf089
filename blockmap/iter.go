package blockmap

import "iter"

// InCell returns an iterator over the objects linked into cell.
func (bm *Blockmap[T]) InCell(cell Cell) iter.Seq[T] {
	return func(yield func(T) bool) {
		bm.ForAllInCell(cell, yielder(yield))
	}
}

// InBox returns an iterator over the objects of every cell covered by box.
func (bm *Blockmap[T]) InBox(box AABox) iter.Seq[T] {
	return func(yield func(T) bool) {
		bm.ForAllInBox(box, yielder(yield))
	}
}

// InPath returns an iterator over the objects of every cell crossed by the
// segment from-to, in path order.
func (bm *Blockmap[T]) InPath(from, to Vec2) iter.Seq[T] {
	return func(yield func(T) bool) {
		bm.ForAllInPath(from, to, yielder(yield))
	}
}

func yielder[T any](yield func(T) bool) func(T) LoopResult {
	return func(obj T) LoopResult {
		if !yield(obj) {
			return LoopAbort
		}
		return LoopContinue
	}
}
