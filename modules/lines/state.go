package lines

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeLineOutOfBounds = "line_out_of_bounds"
)

// State holds the static and dynamic lines of a map and the blockmap they are
// linked into.
type State struct {
	mapName string

	mutex    sync.RWMutex
	blockmap *blockmap.Blockmap[uint32]
	lines    map[uint32]protocol.Line
	ids      models.SequentialIDGenerator
}

// NewState creates the line state of a map and links its static lines.
func NewState(def models.MapDef) (*State, error) {
	bm, err := blockmap.New[uint32](def.Bounds, def.CellSize)
	if err != nil {
		return nil, err
	}

	s := &State{
		mapName:  def.Name,
		blockmap: bm,
		lines:    make(map[uint32]protocol.Line, len(def.Lines)),
	}

	for i, l := range def.Lines {
		line := protocol.Line{
			ID:     s.ids.New(),
			From:   l.From,
			To:     l.To,
			Static: true,
		}

		if !bm.LinkLine(line.From, line.To, line.ID) {
			return nil, errors.New("static line is outside of map bounds").
				WithType(ErrTypeLineOutOfBounds).
				WithTag("map", def.Name).
				WithTag("line", i)
		}
		s.lines[line.ID] = line
	}

	instrumentLines(s.mapName, len(s.lines))
	return s, nil
}

// Add links a dynamic line owned by the given client. It returns false when
// the line does not cross the map.
func (s *State) Add(ownerID uint32, from, to blockmap.Vec2) (protocol.Line, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	line := protocol.Line{
		ID:      s.ids.New(),
		OwnerID: ownerID,
		From:    from,
		To:      to,
	}

	if !s.blockmap.LinkLine(from, to, line.ID) {
		s.ids.Reuse(line.ID)
		return protocol.Line{}, false
	}

	s.lines[line.ID] = line
	instrumentLines(s.mapName, len(s.lines))
	return line, true
}

// Remove unlinks the line with the given id. Static lines are never removed.
func (s *State) Remove(id uint32) (protocol.Line, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	line, ok := s.lines[id]
	if !ok || line.Static {
		return protocol.Line{}, false
	}

	s.remove(line)
	return line, true
}

func (s *State) remove(line protocol.Line) {
	s.blockmap.UnlinkLine(line.From, line.To, line.ID)
	delete(s.lines, line.ID)
	instrumentLines(s.mapName, len(s.lines))
}

func (s *State) Line(id uint32) (protocol.Line, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	line, ok := s.lines[id]
	return line, ok
}

// Lines returns the lines sorted by id.
func (s *State) Lines() []protocol.Line {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return sortedLines(s.lines, func(protocol.Line) bool { return true })
}

// RemoveOwnedBy removes the dynamic lines of the given owner and returns them.
func (s *State) RemoveOwnedBy(ownerID uint32) []protocol.Line {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := sortedLines(s.lines, func(l protocol.Line) bool {
		return !l.Static && l.OwnerID == ownerID
	})
	for _, line := range removed {
		s.remove(line)
	}
	return removed
}

// Sight is the result of a line of sight trace.
type Sight struct {
	Visible bool

	// The closest line crossing the trace and where it is crossed, when the
	// trace is blocked.
	Line protocol.Line
	Hit  blockmap.Vec2
}

// LineOfSight traces from-to and reports the line crossing it closest to
// from. Cells are visited in path order and the trace stops as soon as the
// cell holding the closest hit so far has been visited, since no line found
// further along can be hit earlier.
func (s *State) LineOfSight(from, to blockmap.Vec2) Sight {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	bestT := math.Inf(1)
	var sight Sight
	var hitCell blockmap.Cell

	visited := make(map[blockmap.Cell]struct{})
	tested := make(map[uint32]struct{})

	for _, cell := range s.blockmap.TraceCells(from, to) {
		visited[cell] = struct{}{}

		for id := range s.blockmap.InCell(cell) {
			if _, ok := tested[id]; ok {
				continue
			}
			tested[id] = struct{}{}

			line := s.lines[id]
			t, p, ok := blockmap.Intercept(from, to, line.From, line.To)
			if !ok || t >= bestT {
				continue
			}

			bestT = t
			sight.Line = line
			sight.Hit = p
			hitCell, _ = s.blockmap.ToCell(p)
		}

		if math.IsInf(bestT, 1) {
			continue
		}
		if _, ok := visited[hitCell]; ok {
			break
		}
	}

	instrumentTrace(s.mapName, len(visited), !math.IsInf(bestT, 1))

	if math.IsInf(bestT, 1) {
		return Sight{Visible: true}
	}
	return sight
}

func (s *State) DebugInfo() blockmap.DebugInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.blockmap.DebugInfo()
}

// Reset removes the dynamic lines. Static lines stay linked.
func (s *State) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.blockmap.UnlinkAll()
	for id, line := range s.lines {
		if !line.Static {
			delete(s.lines, id)
			continue
		}
		s.blockmap.LinkLine(line.From, line.To, line.ID)
	}

	instrumentLines(s.mapName, len(s.lines))
}

// Close drops every line, static lines included, and releases the cells.
func (s *State) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.blockmap.Reset()
	clear(s.lines)
	s.ids.Reset()
	instrumentLines(s.mapName, 0)
}

func sortedLines(lines map[uint32]protocol.Line, keep func(protocol.Line) bool) []protocol.Line {
	sorted := make([]protocol.Line, 0, len(lines))
	for _, line := range lines {
		if keep(line) {
			sorted = append(sorted, line)
		}
	}

	slices.SortFunc(sorted, func(a, b protocol.Line) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}
