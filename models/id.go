package models

import "sync"

// SequentialIDGenerator hands out increasing ids starting from 1. Released
// ids are handed out again, smallest first, before new ones are created.
type SequentialIDGenerator struct {
	mutex       sync.Mutex
	lastID      uint32
	reusableIDs map[uint32]struct{}
}

func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.reusableIDs) != 0 {
		var smallest uint32
		for id := range g.reusableIDs {
			if smallest == 0 || id < smallest {
				smallest = id
			}
		}
		delete(g.reusableIDs, smallest)
		return smallest
	}

	g.lastID++
	return g.lastID
}

// Reuse releases id so it can be handed out again. Zero and ids that were
// never handed out are ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.lastID {
		return
	}

	if g.reusableIDs == nil {
		g.reusableIDs = make(map[uint32]struct{})
	}
	g.reusableIDs[id] = struct{}{}
}

// Reset forgets every generated id.
func (g *SequentialIDGenerator) Reset() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.lastID = 0
	clear(g.reusableIDs)
}
