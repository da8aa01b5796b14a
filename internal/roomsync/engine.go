// Package roomsync keeps the client's room and message state consistent
// with the server. It folds the push-event stream into a partitioned room
// catalog, an active-room tracker and a message buffer, and exposes the
// user actions that mutate that state after server acknowledgment.
package roomsync

import (
	"context"
	"log"
	"sync"

	"chatsync/client/internal/catalog"
	"chatsync/client/internal/models"
)

// API is the request/response half of the service boundary. Satisfied by
// *api.Client; tests substitute a mock.
type API interface {
	FetchJoinedRooms(ctx context.Context) ([]models.Room, error)
	FetchDiscoverableRooms(ctx context.Context) ([]models.Room, error)
	FetchMessages(ctx context.Context, roomID int64) ([]models.Message, error)
	PostJoin(ctx context.Context, roomID int64) error
	PostLeave(ctx context.Context, roomID int64) error
	PostCreateRoom(ctx context.Context, name, description string) (*models.Room, error)
	PostDeleteRoom(ctx context.Context, roomID int64) error
	PostMessage(ctx context.Context, roomID int64, draft models.MessageDraft) (*models.Message, error)
}

// Channel is the push half of the service boundary. Satisfied by
// *ws.Channel; tests substitute a fake that records notifications.
type Channel interface {
	Events() <-chan models.Event
	JoinRoom(roomID int64) error
	LeaveRoom(roomID int64) error
	RejoinRooms(roomIDs []int64) error
}

// Identity resolves the authenticated user, for classifying room-created
// events as mine or foreign. Satisfied by *session.Session.
type Identity interface {
	CurrentUser() *models.User
}

// Engine wires the push-event stream to the catalog, tracker and buffer.
// All push-path mutations happen on the Run goroutine; user actions run on
// the caller's goroutine and share state through the same transition
// methods, guarded by the catalog's own lock and the engine mutex.
type Engine struct {
	api      API
	channel  Channel
	identity Identity

	catalog *catalog.Catalog
	subs    *subscriptionManager

	mu      sync.Mutex // guards tracker and buffer
	tracker activeTracker
	buffer  messageBuffer

	// OnChange, when set, is called after a push event has been applied.
	// The terminal client uses it to redraw. Must be set before Run.
	OnChange func(models.Event)
}

func New(api API, channel Channel, identity Identity) *Engine {
	cat := catalog.New()
	return &Engine{
		api:      api,
		channel:  channel,
		identity: identity,
		catalog:  cat,
		subs:     newSubscriptionManager(channel, cat),
	}
}

// Run consumes the push-event stream until the context is canceled or the
// channel closes. Events are applied strictly in delivery order.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.channel.Events():
			if !ok {
				return
			}
			e.dispatch(ctx, ev)
			if e.OnChange != nil {
				e.OnChange(ev)
			}
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev models.Event) {
	switch ev.Type {
	case models.EventConnected:
		e.subs.handleConnected()
	case models.EventDisconnected:
		e.subs.handleDisconnected()
	case models.EventNewMessage:
		if ev.Message != nil {
			e.handleNewMessage(*ev.Message)
		}
	case models.EventRoomCreated:
		if ev.Room != nil {
			e.handleRoomCreated(ctx, *ev.Room)
		}
	case models.EventRoomDeleted:
		e.handleRoomDeleted(ev.RoomID)
	default:
		log.Printf("roomsync: ignoring event %q", ev.Type)
	}
}

// handleNewMessage is the "is this for the room I'm looking at" branch:
// messages for the active room land in the buffer, messages for any other
// joined room bump its unread counter, messages for unknown rooms are
// dropped.
func (e *Engine) handleNewMessage(msg models.Message) {
	e.mu.Lock()
	if id, ok := e.tracker.id(); ok && id == msg.RoomID {
		e.buffer.append(msg)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if !e.catalog.Contains(msg.RoomID) {
		log.Printf("roomsync: dropping message %d for unknown room %d", msg.ID, msg.RoomID)
		return
	}
	e.catalog.IncrementUnread(msg.RoomID)
}

// handleRoomCreated admits the room on the side of the partition matching
// its origin. A room of our own also becomes the active room, exactly as if
// the user had selected it.
func (e *Engine) handleRoomCreated(ctx context.Context, room models.Room) {
	mine := Classify(room, e.identity.CurrentUser()) == OriginMine
	if !e.catalog.AdmitCreated(room, mine) {
		log.Printf("roomsync: duplicate %s for room %d dropped", models.EventRoomCreated, room.ID)
		return
	}
	if mine {
		// Activation joins and fetches over the network; run it off the
		// event loop so pushes keep flowing meanwhile.
		go func() {
			if err := e.SelectRoom(ctx, room); err != nil {
				log.Printf("roomsync: activating created room %d: %v", room.ID, err)
			}
		}()
	}
}

// handleRoomDeleted removes the room from whichever list holds it. Deleting
// the active room also clears the tracker and buffer; no leave notification
// is sent for a room that no longer exists.
func (e *Engine) handleRoomDeleted(roomID int64) {
	if !e.catalog.Remove(roomID) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.tracker.id(); ok && id == roomID {
		e.tracker.set(nil)
		e.buffer.clear()
	}
}

// JoinedRooms returns the joined list, most recently created first.
func (e *Engine) JoinedRooms() []models.Room {
	return e.catalog.Joined()
}

// DiscoverableRooms returns the rooms the user could join.
func (e *Engine) DiscoverableRooms() []models.Room {
	return e.catalog.Discoverable()
}

// FindRoom looks a room up by id in either list.
func (e *Engine) FindRoom(roomID int64) (models.Room, bool) {
	return e.catalog.Find(roomID)
}

// ActiveRoom returns a copy of the active room, or nil.
func (e *Engine) ActiveRoom() *models.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.tracker.room()
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Messages returns the buffered messages of the active room in arrival
// order.
func (e *Engine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.snapshot()
}
