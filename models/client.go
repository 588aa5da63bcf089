package models

import (
	"slices"
	"sync"

	"github.com/aukilabs/blockmap/protocol"
)

// A client connected to a map.
type Client struct {
	ID        uint32
	Responder protocol.ResponseSender

	mutex     sync.Mutex
	objectIDs map[uint32]struct{}
}

// AddObject records an object linked by the client.
func (c *Client) AddObject(id uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.objectIDs == nil {
		c.objectIDs = make(map[uint32]struct{})
	}
	c.objectIDs[id] = struct{}{}
}

func (c *Client) RemoveObject(id uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.objectIDs, id)
}

// ObjectIDs returns the ids of the objects linked by the client, in ascending
// order.
func (c *Client) ObjectIDs() []uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ids := make([]uint32, 0, len(c.objectIDs))
	for id := range c.objectIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Client) ClearObjects() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(c.objectIDs)
}
