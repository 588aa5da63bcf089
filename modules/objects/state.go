package objects

import (
	"cmp"
	"slices"
	"sync"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/protocol"
)

// State holds the objects of a map and the blockmap they are linked into.
type State struct {
	mapName string

	mutex    sync.RWMutex
	blockmap *blockmap.Blockmap[uint32]
	objects  map[uint32]protocol.Object
	ids      models.SequentialIDGenerator
}

func NewState(def models.MapDef) (*State, error) {
	bm, err := blockmap.New[uint32](def.Bounds, def.CellSize)
	if err != nil {
		return nil, err
	}

	return &State{
		mapName:  def.Name,
		blockmap: bm,
		objects:  make(map[uint32]protocol.Object),
	}, nil
}

// Link registers a new object and links it into the cells covered by box.
func (s *State) Link(ownerID uint32, box blockmap.AABox, persist bool) protocol.Object {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	obj := protocol.Object{
		ID:      s.ids.New(),
		OwnerID: ownerID,
		Box:     box,
		Persist: persist,
	}

	s.objects[obj.ID] = obj
	s.blockmap.LinkBox(box, obj.ID)
	instrumentLinkedObjects(s.mapName, len(s.objects))
	return obj
}

// Move relinks the object with the given id into the cells covered by box.
func (s *State) Move(id uint32, box blockmap.AABox) (protocol.Object, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return protocol.Object{}, false
	}

	s.blockmap.UnlinkBox(obj.Box, id)
	obj.Box = box
	s.blockmap.LinkBox(box, id)
	s.objects[id] = obj
	return obj, true
}

// Unlink removes the object with the given id from the map.
func (s *State) Unlink(id uint32) (protocol.Object, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return protocol.Object{}, false
	}

	s.blockmap.UnlinkBox(obj.Box, id)
	delete(s.objects, id)
	instrumentLinkedObjects(s.mapName, len(s.objects))
	return obj, true
}

func (s *State) Object(id uint32) (protocol.Object, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	obj, ok := s.objects[id]
	return obj, ok
}

// Objects returns the objects sorted by id.
func (s *State) Objects() []protocol.Object {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	objects := make([]protocol.Object, 0, len(s.objects))
	for _, obj := range s.objects {
		objects = append(objects, obj)
	}
	slices.SortFunc(objects, func(a, b protocol.Object) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return objects
}

// QueryBox returns the ids of the objects linked into the cells covered by
// box, each id once, in row major cell order.
func (s *State) QueryBox(box blockmap.AABox) []uint32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := []uint32{}
	s.blockmap.ForAllInBox(box, blockmap.VisitOnce(func(id uint32) blockmap.LoopResult {
		ids = append(ids, id)
		return blockmap.LoopContinue
	}))

	instrumentQuery(s.mapName, boxQuery)
	return ids
}

// QueryPath returns the ids of the objects linked into the cells crossed by
// the segment from-to, each id once, in path order. The query stops after
// limit objects when limit is positive.
func (s *State) QueryPath(from, to blockmap.Vec2, limit int) []uint32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := []uint32{}
	s.blockmap.ForAllInPath(from, to, blockmap.VisitOnce(func(id uint32) blockmap.LoopResult {
		ids = append(ids, id)
		if limit > 0 && len(ids) >= limit {
			return blockmap.LoopAbort
		}
		return blockmap.LoopContinue
	}))

	instrumentQuery(s.mapName, pathQuery)
	return ids
}

// PathCells returns the cells crossed by the segment from-to.
func (s *State) PathCells(from, to blockmap.Vec2) []blockmap.Cell {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cells := s.blockmap.PathCells(from, to)
	instrumentPathCells(s.mapName, len(cells))
	return cells
}

// RemoveOwnedBy unlinks the objects with the given ids that belong to the
// given owner and do not persist, and returns them.
func (s *State) RemoveOwnedBy(ownerID uint32, ids []uint32) []protocol.Object {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var removed []protocol.Object
	for _, id := range ids {
		obj, ok := s.objects[id]
		if !ok || obj.OwnerID != ownerID || obj.Persist {
			continue
		}

		s.blockmap.UnlinkBox(obj.Box, id)
		delete(s.objects, id)
		removed = append(removed, obj)
	}

	slices.SortFunc(removed, func(a, b protocol.Object) int {
		return cmp.Compare(a.ID, b.ID)
	})
	instrumentLinkedObjects(s.mapName, len(s.objects))
	return removed
}

func (s *State) DebugInfo() blockmap.DebugInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.blockmap.DebugInfo()
}

// Reset unlinks every object. Cells already materialized are kept for reuse.
func (s *State) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.blockmap.UnlinkAll()
	clear(s.objects)
	s.ids.Reset()
	instrumentLinkedObjects(s.mapName, 0)
}

// Close unlinks every object and releases the cells.
func (s *State) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.blockmap.Reset()
	clear(s.objects)
	s.ids.Reset()
	instrumentLinkedObjects(s.mapName, 0)
}
