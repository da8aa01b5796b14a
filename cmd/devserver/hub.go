package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatsync/client/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev server: accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub tracks the live websocket connections and their per-connection room
// subscription sets.
type hub struct {
	mu    sync.Mutex
	conns map[*conn]bool
}

func newHub() *hub {
	return &hub{conns: make(map[*conn]bool)}
}

type conn struct {
	userID int64
	ws     *websocket.Conn
	send   chan models.Frame

	mu   sync.Mutex
	subs map[int64]bool
}

func (c *conn) subscribed(roomID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[roomID]
}

func (c *conn) setSubscribed(roomID int64, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.subs[roomID] = true
	} else {
		delete(c.subs, roomID)
	}
}

func (c *conn) resetSubscriptions(roomIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = make(map[int64]bool, len(roomIDs))
	for _, id := range roomIDs {
		c.subs[id] = true
	}
}

func mustFrame(event string, data any) models.Frame {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("devserver: encoding %s frame: %v", event, err)
		return models.Frame{Event: event}
	}
	return models.Frame{Event: event, Data: raw}
}

// broadcast queues the frame on every connection matching the filter (nil
// means all). Slow consumers are dropped rather than allowed to block the
// rest.
func (h *hub) broadcast(frame models.Frame, filter func(*conn) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if filter != nil && !filter(c) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			log.Printf("devserver: dropping slow connection for user %d", c.userID)
			delete(h.conns, c)
			close(c.send)
		}
	}
}

// dropSubscriptions removes a deleted room from every connection.
func (h *hub) dropSubscriptions(roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.setSubscribed(roomID, false)
	}
}

func (h *hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = true
}

func (h *hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c] {
		delete(h.conns, c)
		close(c.send)
	}
}

// serveWebSocket authenticates and upgrades the connection, then runs the
// read and write pumps until it drops.
func (s *server) serveWebSocket(c *gin.Context) {
	tok := bearerToken(c)
	if tok == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}
	userID, err := s.parseToken(tok)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	cn := &conn{
		userID: userID,
		ws:     wsConn,
		send:   make(chan models.Frame, 32),
		subs:   make(map[int64]bool),
	}
	s.hub.register(cn)
	go cn.writePump()
	go cn.readPump(s.hub)
}

func (c *conn) readPump(h *hub) {
	defer func() {
		h.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("devserver: read from user %d: %v", c.userID, err)
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("devserver: bad frame from user %d: %v", c.userID, err)
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *conn) handleFrame(frame models.Frame) {
	switch frame.Event {
	case models.FrameJoinRoom:
		var roomID int64
		if err := json.Unmarshal(frame.Data, &roomID); err == nil {
			c.setSubscribed(roomID, true)
		}
	case models.FrameLeaveRoom:
		var roomID int64
		if err := json.Unmarshal(frame.Data, &roomID); err == nil {
			c.setSubscribed(roomID, false)
		}
	case models.FrameRejoinRooms:
		var roomIDs []int64
		if err := json.Unmarshal(frame.Data, &roomIDs); err == nil {
			c.resetSubscriptions(roomIDs)
		}
	default:
		log.Printf("devserver: unknown frame %q from user %d", frame.Event, c.userID)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
