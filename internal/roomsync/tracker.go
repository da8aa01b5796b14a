package roomsync

import "chatsync/client/internal/models"

// activeTracker remembers which room, if any, is open for viewing. It is the
// single source of truth for "which room's messages are acceptable": every
// buffer write is checked against it, which is how late responses for a
// superseded room selection get discarded.
//
// The tracker is plain state; the engine serializes access under its mutex
// and performs the join/leave side effects of an activation change.
type activeTracker struct {
	current *models.Room
}

func (t *activeTracker) room() *models.Room {
	return t.current
}

// id returns the active room id, with ok false when no room is active.
func (t *activeTracker) id() (int64, bool) {
	if t.current == nil {
		return 0, false
	}
	return t.current.ID, true
}

func (t *activeTracker) set(room *models.Room) {
	if room == nil {
		t.current = nil
		return
	}
	r := *room
	t.current = &r
}
