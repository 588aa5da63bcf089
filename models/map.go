package models

import (
	"context"
	"slices"
	"sync"

	"github.com/aukilabs/blockmap/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Map is a loaded map that clients join to link and query objects.
type Map struct {
	ID      uint32
	MapUUID string
	Def     MapDef

	clientIDs   SequentialIDGenerator
	clientMutex sync.RWMutex
	clients     map[uint32]*Client

	moduleMutex  sync.RWMutex
	moduleStates map[string]any
}

// Resetter is implemented by module states that can drop what clients
// linked into a map.
type Resetter interface {
	Reset()
}

// Closer is implemented by module states that release their memory when the
// map is unloaded.
type Closer interface {
	Close()
}

func NewMap(id uint32, def MapDef) *Map {
	return &Map{
		ID:           id,
		MapUUID:      uuid.New().String(),
		Def:          def,
		clients:      make(map[uint32]*Client),
		moduleStates: make(map[string]any),
	}
}

func (m *Map) Name() string {
	return m.Def.Name
}

func (m *Map) NewClientID() uint32 {
	return m.clientIDs.New()
}

// ReleaseClientID makes the id of a client that never joined available again.
func (m *Map) ReleaseClientID(id uint32) {
	m.clientIDs.Reuse(id)
}

func (m *Map) AddClient(c *Client) {
	m.clientMutex.Lock()
	defer m.clientMutex.Unlock()

	m.clients[c.ID] = c
	instrumentIncreaseClientGauge(m.Name())
}

func (m *Map) RemoveClient(c *Client) {
	m.clientMutex.Lock()
	defer m.clientMutex.Unlock()

	if _, ok := m.clients[c.ID]; !ok {
		return
	}

	delete(m.clients, c.ID)
	m.clientIDs.Reuse(c.ID)
	instrumentDecreaseClientGauge(m.Name())
}

func (m *Map) GetClients() []*Client {
	m.clientMutex.RLock()
	defer m.clientMutex.RUnlock()

	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	return clients
}

// ClientIDs returns the ids of the connected clients in ascending order.
func (m *Map) ClientIDs() []uint32 {
	m.clientMutex.RLock()
	defer m.clientMutex.RUnlock()

	ids := make([]uint32, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Map) ClientCount() int {
	m.clientMutex.RLock()
	defer m.clientMutex.RUnlock()

	return len(m.clients)
}

// Broadcast sends the payload to every client but the sender.
func (m *Map) Broadcast(sender *Client, p protocol.Payload) {
	msg, err := protocol.MsgFromPayload(p)
	if err != nil {
		logs.WithTag("map", m.Name()).
			WithTag("msg_type", p.MsgType()).
			Debug(err)
		return
	}

	m.clientMutex.RLock()
	defer m.clientMutex.RUnlock()

	for _, c := range m.clients {
		if c == sender {
			continue
		}
		c.Responder.SendMsg(msg)
	}
}

func (m *Map) SetModuleState(moduleName string, state any) {
	m.moduleMutex.Lock()
	defer m.moduleMutex.Unlock()

	m.moduleStates[moduleName] = state
}

func (m *Map) ModuleState(moduleName string) (any, bool) {
	m.moduleMutex.RLock()
	defer m.moduleMutex.RUnlock()

	state, ok := m.moduleStates[moduleName]
	return state, ok
}

// LoadOrStoreModuleState returns the state of the given module, creating it
// with newState when the map has none yet.
func (m *Map) LoadOrStoreModuleState(moduleName string, newState func() (any, error)) (any, error) {
	if state, ok := m.ModuleState(moduleName); ok {
		return state, nil
	}

	m.moduleMutex.Lock()
	defer m.moduleMutex.Unlock()

	if state, ok := m.moduleStates[moduleName]; ok {
		return state, nil
	}

	state, err := newState()
	if err != nil {
		return nil, errors.New("creating module state failed").
			WithTag("module", moduleName).
			WithTag("map", m.Name()).
			Wrap(err)
	}

	m.moduleStates[moduleName] = state
	return state, nil
}

// Reset resets every module state and forgets the objects clients linked.
func (m *Map) Reset() {
	m.moduleMutex.RLock()
	for _, state := range m.moduleStates {
		if r, ok := state.(Resetter); ok {
			r.Reset()
		}
	}
	m.moduleMutex.RUnlock()

	for _, c := range m.GetClients() {
		c.ClearObjects()
	}
}

// Close closes the module states, or resets those that cannot be closed, and
// releases them.
func (m *Map) Close() {
	m.moduleMutex.Lock()
	defer m.moduleMutex.Unlock()

	for _, state := range m.moduleStates {
		switch s := state.(type) {
		case Closer:
			s.Close()

		case Resetter:
			s.Reset()
		}
	}
	clear(m.moduleStates)
}

// MapStore holds the loaded maps by name.
type MapStore struct {
	initOnce sync.Once
	mutex    sync.RWMutex
	maps     map[string]*Map
	ids      SequentialIDGenerator
}

func (s *MapStore) init() {
	s.maps = make(map[string]*Map)
}

// Load validates the definition and loads the map.
func (s *MapStore) Load(ctx context.Context, def MapDef) (*Map, error) {
	s.initOnce.Do(s.init)

	if err := def.Validate(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.maps[def.Name]; ok {
		return nil, errors.New("map already loaded").
			WithType(ErrTypeMapAlreadyLoaded).
			WithTag("map", def.Name)
	}

	m := NewMap(s.ids.New(), def)
	s.maps[def.Name] = m

	instrumentIncreaseMapGauge(def.Name)
	logs.WithTag("map", def.Name).
		WithTag("map_uuid", m.MapUUID).
		WithTag("bounds", def.Bounds).
		WithTag("cell_size", def.CellSize).
		WithTag("lines", len(def.Lines)).
		Info("map loaded")
	return m, nil
}

// Unload removes the map from the store and releases its module states. It
// returns false when no map with that name is loaded.
func (s *MapStore) Unload(ctx context.Context, name string) bool {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, ok := s.maps[name]
	if !ok {
		return false
	}

	delete(s.maps, name)
	m.Close()
	s.ids.Reuse(m.ID)

	instrumentDecreaseMapGauge(name)
	logs.WithTag("map", name).
		WithTag("map_uuid", m.MapUUID).
		Info("map unloaded")
	return true
}

func (s *MapStore) GetByName(name string) (*Map, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	m, ok := s.maps[name]
	return m, ok
}

// Names returns the names of the loaded maps in ascending order.
func (s *MapStore) Names() []string {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.maps))
	for name := range s.maps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *MapStore) Len() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.maps)
}
