package roomsync

import "chatsync/client/internal/models"

// Origin says whether a pushed room-created event refers to the user's own
// action or someone else's.
type Origin int

const (
	OriginForeign Origin = iota
	OriginMine
)

// Classify compares the room's owner against the authenticated user. A nil
// self (not logged in, or identity lost mid-session) classifies everything
// as foreign.
func Classify(room models.Room, self *models.User) Origin {
	if self != nil && room.OwnerID == self.ID {
		return OriginMine
	}
	return OriginForeign
}
