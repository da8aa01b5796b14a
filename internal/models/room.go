package models

// Room is a chat room as reported by the server. The same struct is used on
// both sides of the membership partition: while the room is joined,
// UnreadCount carries the number of messages received for it since it was
// last active; while it is merely discoverable the counter is meaningless
// and kept at zero.
type Room struct {
	// ID is the stable, server-assigned room identifier.
	ID int64 `json:"id"`
	// Name is the display name of the room.
	Name string `json:"name"`
	// Description is an optional free-form description.
	Description string `json:"description,omitempty"`
	// Slug is a URL-friendly identifier derived from the name.
	Slug string `json:"slug,omitempty"`
	// OwnerID is the id of the user who created the room.
	OwnerID int64 `json:"ownerId"`
	// MemberCount is the number of members, when the server includes it.
	MemberCount int `json:"memberCount,omitempty"`
	// UnreadCount is maintained client-side for joined rooms.
	UnreadCount int `json:"unreadCount,omitempty"`
}
