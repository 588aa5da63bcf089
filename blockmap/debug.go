package blockmap

import "github.com/aukilabs/blockmap/arena"

// Occupancy is only reported for maps with at most this many cells.
const maxOccupancyCells = 1 << 16

// DebugInfo is a snapshot of the blockmap internals.
type DebugInfo struct {
	Bounds     AABox   `json:"bounds"`
	CellSize   float64 `json:"cell_size"`
	Dimensions Cell    `json:"dimensions"`
	RootSize   uint32  `json:"root_size"`
	NodeCount  int     `json:"node_count"`
	RingCount  int     `json:"ring_count"`
	LinkCount  int     `json:"link_count"`

	// The number of objects linked into each cell, row by row. Empty on maps
	// with too many cells to report.
	Occupancy []uint32 `json:"occupancy,omitempty"`
}

func (bm *Blockmap[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		Bounds:     bm.bounds,
		CellSize:   bm.cellSize,
		Dimensions: bm.dimensions,
		RootSize:   bm.tree.size,
		NodeCount:  bm.tree.nodes.Len(),
		RingCount:  bm.tree.rings.Len(),
	}

	cells := int(bm.dimensions.X) * int(bm.dimensions.Y)
	if cells <= maxOccupancyCells {
		info.Occupancy = make([]uint32, cells)
	}

	bm.tree.forAllLeaves(func(n *node) LoopResult {
		if n.ring == arena.Null || !bm.validCell(n.cell) {
			return LoopContinue
		}

		count := bm.tree.rings.Get(n.ring).Len()
		if info.Occupancy != nil {
			info.Occupancy[int(n.cell.Y)*int(bm.dimensions.X)+int(n.cell.X)] = uint32(count)
		}
		info.LinkCount += count
		return LoopContinue
	})

	return info
}
