// Package ws implements the push channel: a persistent websocket connection
// that delivers server events to the synchronization engine and carries the
// join/leave/rejoin notifications back. The channel reconnects on its own;
// consumers observe connection churn as synthetic connected/disconnected
// events and react to them (the engine re-runs its rejoin handshake on every
// connected event).
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/client/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// ErrClosed is returned by outbound notifications after Close.
var ErrClosed = errors.New("ws: channel closed")

// Channel owns the websocket connection lifecycle. Created with New, shut
// down with Close. Events are delivered on a buffered channel in arrival
// order; outbound frames are serialized through a send channel so callers
// never touch the connection directly.
type Channel struct {
	url    string
	token  func() string
	dialer *websocket.Dialer

	events chan models.Event
	send   chan models.Frame

	done      chan struct{}
	closeOnce sync.Once
}

// New starts the channel. token is called on every dial attempt so a
// refreshed bearer token is used after a reconnect.
func New(url string, token func() string) *Channel {
	c := &Channel{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		events: make(chan models.Event, 32),
		send:   make(chan models.Frame, 32),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Events returns the inbound event stream. The channel is closed after
// Close, once the connection has been torn down.
func (c *Channel) Events() <-chan models.Event {
	return c.events
}

// JoinRoom notifies the server that this connection wants the room's pushes.
func (c *Channel) JoinRoom(roomID int64) error {
	return c.emit(models.FrameJoinRoom, roomID)
}

// LeaveRoom withdraws the room subscription for this connection.
func (c *Channel) LeaveRoom(roomID int64) error {
	return c.emit(models.FrameLeaveRoom, roomID)
}

// RejoinRooms restores the full subscription set after a (re)connection.
func (c *Channel) RejoinRooms(roomIDs []int64) error {
	return c.emit(models.FrameRejoinRooms, roomIDs)
}

// Close stops reconnecting and tears down the current connection.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Channel) emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case c.send <- models.Frame{Event: event, Data: raw}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// run dials, serves the connection until it drops, and dials again with
// capped exponential backoff until Close.
func (c *Channel) run() {
	defer close(c.events)
	backoff := initialBackoff
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, err := c.dial()
		if err != nil {
			log.Printf("ws: dial %s: %v", c.url, err)
			select {
			case <-time.After(backoff):
			case <-c.done:
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		if !c.post(models.Event{Type: models.EventConnected}) {
			conn.Close()
			return
		}
		c.serve(conn)
		if !c.post(models.Event{Type: models.EventDisconnected}) {
			return
		}
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if tok := c.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, _, err := c.dialer.Dial(c.url, header)
	return conn, err
}

// serve runs the write pump in the background and reads until the
// connection fails or the channel is closed.
func (c *Channel) serve(conn *websocket.Conn) {
	stop := make(chan struct{})
	go c.writePump(conn, stop)
	c.readPump(conn)
	close(stop)
	conn.Close()
}

func (c *Channel) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read: %v", err)
			}
			return
		}

		ev, err := decodeFrame(raw)
		if err != nil {
			log.Printf("ws: dropping frame: %v", err)
			continue
		}
		if !c.post(ev) {
			return
		}
	}
}

func (c *Channel) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("ws: write %s: %v", frame.Event, err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		case <-stop:
			return
		}
	}
}

// post delivers an event unless the channel has been closed.
func (c *Channel) post(ev models.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func decodeFrame(raw []byte) (models.Event, error) {
	var f models.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Event{}, fmt.Errorf("decoding envelope: %w", err)
	}
	switch models.EventType(f.Event) {
	case models.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return models.Event{}, fmt.Errorf("decoding %s: %w", f.Event, err)
		}
		return models.Event{Type: models.EventNewMessage, Message: &msg}, nil
	case models.EventRoomCreated:
		var room models.Room
		if err := json.Unmarshal(f.Data, &room); err != nil {
			return models.Event{}, fmt.Errorf("decoding %s: %w", f.Event, err)
		}
		return models.Event{Type: models.EventRoomCreated, Room: &room}, nil
	case models.EventRoomDeleted:
		var payload struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return models.Event{}, fmt.Errorf("decoding %s: %w", f.Event, err)
		}
		return models.Event{Type: models.EventRoomDeleted, RoomID: payload.ID}, nil
	default:
		return models.Event{}, fmt.Errorf("unknown event %q", f.Event)
	}
}
