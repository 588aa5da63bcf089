package blockmap

import "math"

// Vec2 is a point or a direction in map space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Add(a Vec2, b Vec2) Vec2 {
	return Vec2{a.X + b.X, a.Y + b.Y}
}

func Sub(a Vec2, b Vec2) Vec2 {
	return Vec2{a.X - b.X, a.Y - b.Y}
}

func Mul(a Vec2, s float64) Vec2 {
	return Vec2{a.X * s, a.Y * s}
}

// Cross returns the z component of the 3D cross product of a and b.
func Cross(a Vec2, b Vec2) float64 {
	return a.X*b.Y - a.Y*b.X
}

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// AABox is an axis-aligned bounding box in map space.
type AABox struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

func NewAABox(minX, minY, maxX, maxY float64) AABox {
	return AABox{
		Min: Vec2{minX, minY},
		Max: Vec2{maxX, maxY},
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b AABox) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Clamp returns p moved onto the closest point of the box.
func (b AABox) Clamp(p Vec2) Vec2 {
	return Vec2{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
	}
}

func (b AABox) Width() float64 {
	return b.Max.X - b.Min.X
}

func (b AABox) Height() float64 {
	return b.Max.Y - b.Min.Y
}

// corners returns the box corners in winding order.
func (b AABox) corners() [4]Vec2 {
	return [4]Vec2{
		{b.Min.X, b.Min.Y},
		{b.Max.X, b.Min.Y},
		{b.Max.X, b.Max.Y},
		{b.Min.X, b.Max.Y},
	}
}

// Intercept intersects the segments a1-a2 and b1-b2. It returns the parameter
// along a1-a2 where they meet and the meeting point. ok is false for parallel
// segments or when the intersection lies outside either segment.
func Intercept(a1, a2, b1, b2 Vec2) (t float64, p Vec2, ok bool) {
	da := Sub(a2, a1)
	db := Sub(b2, b1)

	denominator := Cross(da, db)
	if denominator == 0 {
		return 0, Vec2{}, false
	}

	w := Sub(b1, a1)
	t = Cross(w, db) / denominator
	u := Cross(w, da) / denominator
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, Vec2{}, false
	}
	return t, Add(a1, Mul(da, t)), true
}

// ClipSegment returns the point where a segment starting inside the box first
// crosses one of its edges. ok is false when the segment never crosses an
// edge.
func (b AABox) ClipSegment(from, to Vec2) (Vec2, bool) {
	corners := b.corners()

	best := math.Inf(1)
	var clipped Vec2
	for i := 0; i < 4; i++ {
		t, p, ok := Intercept(from, to, corners[i], corners[(i+1)%4])
		if ok && t < best {
			best = t
			clipped = p
		}
	}

	if math.IsInf(best, 1) {
		return to, false
	}
	return clipped, true
}

// Cell is a cell coordinate in the blockmap grid.
type Cell struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// CellBlock is a rectangular range of cells, inclusive on Min and exclusive on
// Max.
type CellBlock struct {
	Min Cell `json:"min"`
	Max Cell `json:"max"`
}

// Empty reports whether the block contains no cell.
func (b CellBlock) Empty() bool {
	return b.Min.X >= b.Max.X || b.Min.Y >= b.Max.Y
}

// Contains reports whether c lies in the block.
func (b CellBlock) Contains(c Cell) bool {
	return c.X >= b.Min.X && c.X < b.Max.X &&
		c.Y >= b.Min.Y && c.Y < b.Max.Y
}

// Count returns the number of cells in the block.
func (b CellBlock) Count() int {
	if b.Empty() {
		return 0
	}
	return int(b.Max.X-b.Min.X) * int(b.Max.Y-b.Min.Y)
}

// clipCellBlock clamps both corners of the block to dimensions and reports
// whether anything changed.
func clipCellBlock(b *CellBlock, dimensions Cell) bool {
	didClip := false

	clip := func(v *uint32, limit uint32) {
		if *v > limit {
			*v = limit
			didClip = true
		}
	}

	clip(&b.Min.X, dimensions.X)
	clip(&b.Min.Y, dimensions.Y)
	clip(&b.Max.X, dimensions.X)
	clip(&b.Max.Y, dimensions.Y)
	return didClip
}

// ceilPowerOfTwo returns the smallest power of two greater or equal than v.
func ceilPowerOfTwo(v uint32) uint32 {
	p := uint32(1)
	for p < v {
		p <<= 1
	}
	return p
}
