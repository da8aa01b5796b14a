package models

import "encoding/json"

// EventType names a push-channel event as seen by the engine.
type EventType string

const (
	// EventConnected and EventDisconnected are synthesized by the channel
	// itself around the lifecycle of the underlying connection; they never
	// appear on the wire.
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"

	// Wire events pushed by the server.
	EventNewMessage  EventType = "new_message"
	EventRoomCreated EventType = "rooms:created"
	EventRoomDeleted EventType = "room_deleted"
)

// Outbound frame names understood by the server.
const (
	FrameJoinRoom    = "join_room"
	FrameLeaveRoom   = "leave_room"
	FrameRejoinRooms = "rejoin_rooms"
)

// Frame is the JSON envelope exchanged on the push channel, in both
// directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded inbound push event. Exactly one of the payload fields
// is populated, depending on Type.
type Event struct {
	Type    EventType
	Message *Message // EventNewMessage
	Room    *Room    // EventRoomCreated
	RoomID  int64    // EventRoomDeleted
}
