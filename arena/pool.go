// Package arena provides index-addressed pools for structures that are only
// ever released in bulk.
package arena

// Index addresses an element allocated from a Pool.
type Index int32

// Null is the index of no element.
const Null Index = -1

const (
	pageShift = 8
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

// Pool is a paged pool of T. Pages are never reallocated once created, so a
// pointer returned by Alloc or Get stays valid until Reset.
//
// Elements cannot be freed individually.
type Pool[T any] struct {
	pages [][]T
	count int
}

// Alloc allocates a zeroed element and returns its index and address.
func (p *Pool[T]) Alloc() (Index, *T) {
	last := len(p.pages) - 1
	if last < 0 || len(p.pages[last]) == pageSize {
		p.pages = append(p.pages, make([]T, 0, pageSize))
		last++
	}

	// The page capacity is fixed so this append never moves the page.
	p.pages[last] = append(p.pages[last], *new(T))
	idx := Index(last<<pageShift | (len(p.pages[last]) - 1))
	p.count++
	return idx, &p.pages[last][len(p.pages[last])-1]
}

// Get returns the element at the given index. It panics when the index was not
// allocated.
func (p *Pool[T]) Get(idx Index) *T {
	return &p.pages[int(idx)>>pageShift][int(idx)&pageMask]
}

// Len returns the number of allocated elements.
func (p *Pool[T]) Len() int {
	return p.count
}

// Reset releases every element at once. The first page is kept for reuse.
func (p *Pool[T]) Reset() {
	if len(p.pages) == 0 {
		return
	}

	first := p.pages[0]
	clear(first)
	p.pages = [][]T{first[:0]}
	p.count = 0
}
