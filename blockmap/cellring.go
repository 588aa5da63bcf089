package blockmap

// LoopResult is returned by visitors to control an iteration. Any value other
// than LoopContinue stops the iteration and is returned to the caller.
type LoopResult int

const (
	LoopContinue LoopResult = iota
	LoopAbort
)

// CellRing holds the objects linked into one cell.
//
// A slot holding the zero value of T is empty. Slots are never released: an
// unlinked slot is reused by the next Link.
type CellRing[T comparable] struct {
	slots     []T
	elemCount int
}

// Link stores obj into the first empty slot, growing the ring when none is
// left. obj must not be the zero value of T.
func (r *CellRing[T]) Link(obj T) {
	var empty T

	r.elemCount++
	for i := range r.slots {
		if r.slots[i] == empty {
			r.slots[i] = obj
			return
		}
	}
	r.slots = append(r.slots, obj)
}

// Unlink empties the slot holding obj. It returns false when obj is not
// linked.
func (r *CellRing[T]) Unlink(obj T) bool {
	var empty T
	if obj == empty {
		return false
	}

	for i := range r.slots {
		if r.slots[i] == obj {
			r.slots[i] = empty
			r.elemCount--
			return true
		}
	}
	return false
}

// UnlinkAll empties every slot.
func (r *CellRing[T]) UnlinkAll() {
	clear(r.slots)
	r.elemCount = 0
}

// Len returns the number of linked objects.
func (r *CellRing[T]) Len() int {
	return r.elemCount
}

// Cap returns the number of allocated slots, empty or not.
func (r *CellRing[T]) Cap() int {
	return len(r.slots)
}

// ForAll calls f with each linked object in slot order.
func (r *CellRing[T]) ForAll(f func(T) LoopResult) LoopResult {
	if r.elemCount == 0 {
		return LoopContinue
	}

	var empty T
	for _, obj := range r.slots {
		if obj == empty {
			continue
		}
		if res := f(obj); res != LoopContinue {
			return res
		}
	}
	return LoopContinue
}
