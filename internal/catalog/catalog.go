// Package catalog maintains the client's view of every room it knows about,
// partitioned into the rooms the user has joined and the rooms it could
// join. A room id lives in exactly one of the two lists at any time; every
// membership change goes through one of the transition methods below so the
// partition can never be observed in an intermediate state.
package catalog

import (
	"sync"

	"chatsync/client/internal/models"
)

// Catalog holds the two room lists behind a single mutex. Both the push-event
// path and the user-action path mutate it, always through these methods.
type Catalog struct {
	mu           sync.RWMutex
	joined       []models.Room
	discoverable []models.Room
	loaded       bool
}

func New() *Catalog {
	return &Catalog{}
}

// LoadSnapshot replaces both lists wholesale with the bootstrap result and
// marks the catalog as loaded, which is what gates the rejoin handshake.
func (c *Catalog) LoadSnapshot(joined, discoverable []models.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append([]models.Room(nil), joined...)
	c.discoverable = append([]models.Room(nil), discoverable...)
	c.loaded = true
}

// Loaded reports whether a snapshot has been applied at least once.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// AdmitCreated inserts a freshly created room at the front of the joined
// list when it is the user's own, otherwise at the front of the discoverable
// list. Returns false without mutating anything when the id is already known
// in either list, which absorbs duplicate delivery of the create event.
func (c *Catalog) AdmitCreated(room models.Room, mine bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if indexOf(c.joined, room.ID) >= 0 || indexOf(c.discoverable, room.ID) >= 0 {
		return false
	}
	room.UnreadCount = 0
	if mine {
		c.joined = append([]models.Room{room}, c.joined...)
	} else {
		c.discoverable = append([]models.Room{room}, c.discoverable...)
	}
	return true
}

// MarkJoined moves a room from discoverable to joined, resetting its unread
// counter. No-op when the room is already joined or entirely unknown.
func (c *Catalog) MarkJoined(roomID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if indexOf(c.joined, roomID) >= 0 {
		return
	}
	i := indexOf(c.discoverable, roomID)
	if i < 0 {
		return
	}
	room := c.discoverable[i]
	c.discoverable = append(c.discoverable[:i], c.discoverable[i+1:]...)
	room.UnreadCount = 0
	c.joined = append(c.joined, room)
}

// MarkLeft moves a room from joined back to discoverable, dropping its
// unread counter. No-op when the room is not joined.
func (c *Catalog) MarkLeft(roomID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := indexOf(c.joined, roomID)
	if i < 0 {
		return
	}
	room := c.joined[i]
	c.joined = append(c.joined[:i], c.joined[i+1:]...)
	room.UnreadCount = 0
	c.discoverable = append(c.discoverable, room)
}

// Remove deletes the room from whichever list holds it. Returns false when
// the id is unknown, so duplicate delete notifications degrade to a no-op.
func (c *Catalog) Remove(roomID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.joined, roomID); i >= 0 {
		c.joined = append(c.joined[:i], c.joined[i+1:]...)
		return true
	}
	if i := indexOf(c.discoverable, roomID); i >= 0 {
		c.discoverable = append(c.discoverable[:i], c.discoverable[i+1:]...)
		return true
	}
	return false
}

// IncrementUnread bumps the unread counter of a joined room. Messages for
// rooms the user has not joined never accrue unread counts.
func (c *Catalog) IncrementUnread(roomID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.joined, roomID); i >= 0 {
		c.joined[i].UnreadCount++
	}
}

// ClearUnread zeroes the unread counter of a joined room. Called when the
// room becomes active.
func (c *Catalog) ClearUnread(roomID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.joined, roomID); i >= 0 {
		c.joined[i].UnreadCount = 0
	}
}

// Joined returns a copy of the joined list in display order.
func (c *Catalog) Joined() []models.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Room(nil), c.joined...)
}

// Discoverable returns a copy of the discoverable list in display order.
func (c *Catalog) Discoverable() []models.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Room(nil), c.discoverable...)
}

// JoinedIDs returns the ids of all joined rooms, in display order. This is
// the payload of the rejoin handshake.
func (c *Catalog) JoinedIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.joined))
	for _, r := range c.joined {
		ids = append(ids, r.ID)
	}
	return ids
}

// IsJoined reports whether the room is currently in the joined list.
func (c *Catalog) IsJoined(roomID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return indexOf(c.joined, roomID) >= 0
}

// IsDiscoverable reports whether the room is currently in the discoverable
// list.
func (c *Catalog) IsDiscoverable(roomID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return indexOf(c.discoverable, roomID) >= 0
}

// Contains reports whether the room id is known to either list.
func (c *Catalog) Contains(roomID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return indexOf(c.joined, roomID) >= 0 || indexOf(c.discoverable, roomID) >= 0
}

// Find returns the room with the given id from either list.
func (c *Catalog) Find(roomID int64) (models.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.joined, roomID); i >= 0 {
		return c.joined[i], true
	}
	if i := indexOf(c.discoverable, roomID); i >= 0 {
		return c.discoverable[i], true
	}
	return models.Room{}, false
}

func indexOf(rooms []models.Room, id int64) int {
	for i := range rooms {
		if rooms[i].ID == id {
			return i
		}
	}
	return -1
}
