package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatsync/client/internal/models"
)

func roomIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad room id"})
		return 0, false
	}
	return id, true
}

func slugify(name string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	return slug + "-" + uuid.NewString()[:8]
}

func (s *server) handleMyRooms(c *gin.Context) {
	userID := currentUserID(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := []models.Room{}
	for _, rs := range s.rooms {
		if rs.members[userID] {
			rooms = append(rooms, s.roomViewLocked(rs))
		}
	}
	c.JSON(http.StatusOK, rooms)
}

func (s *server) handleDiscoverableRooms(c *gin.Context) {
	userID := currentUserID(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := []models.Room{}
	for _, rs := range s.rooms {
		if !rs.members[userID] {
			rooms = append(rooms, s.roomViewLocked(rs))
		}
	}
	c.JSON(http.StatusOK, rooms)
}

func (s *server) roomViewLocked(rs *roomState) models.Room {
	room := rs.room
	room.MemberCount = len(rs.members)
	return room
}

func (s *server) handleCreateRoom(c *gin.Context) {
	userID := currentUserID(c)
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.nextRoomID++
	rs := &roomState{
		room: models.Room{
			ID:          s.nextRoomID,
			Name:        req.Name,
			Description: req.Description,
			Slug:        slugify(req.Name),
			OwnerID:     userID,
		},
		members: map[int64]bool{userID: true},
	}
	s.rooms[rs.room.ID] = rs
	view := s.roomViewLocked(rs)
	s.mu.Unlock()

	// Every connected client learns about the room; the owner's client
	// reacts by activating it.
	s.hub.broadcast(mustFrame(string(models.EventRoomCreated), view), nil)
	c.JSON(http.StatusCreated, gin.H{"room": view})
}

func (s *server) handleJoinRoom(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := roomIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, found := s.rooms[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	rs.members[userID] = true
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleLeaveRoom(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := roomIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, found := s.rooms[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	delete(rs.members, userID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleDeleteRoom(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := roomIDParam(c)
	if !ok {
		return
	}

	s.mu.Lock()
	rs, found := s.rooms[id]
	if !found {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if rs.room.OwnerID != userID {
		s.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can delete a room"})
		return
	}
	delete(s.rooms, id)
	delete(s.messages, id)
	s.mu.Unlock()

	s.hub.broadcast(mustFrame(string(models.EventRoomDeleted), gin.H{"id": id}), nil)
	s.hub.dropSubscriptions(id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleMessages(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := roomIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, found := s.rooms[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if !rs.members[userID] {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}
	msgs := s.messages[id]
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *server) handlePostMessage(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := roomIDParam(c)
	if !ok {
		return
	}
	var draft models.MessageDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if draft.Content == "" && draft.FileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	s.mu.Lock()
	rs, found := s.rooms[id]
	if !found {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if !rs.members[userID] {
		s.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}
	s.nextMessageID++
	msg := models.Message{
		ID:        s.nextMessageID,
		RoomID:    id,
		UserID:    userID,
		Content:   draft.Content,
		FileURL:   draft.FileURL,
		FileType:  draft.FileType,
		CreatedAt: time.Now().UTC(),
	}
	if acc, ok := s.usersByID[userID]; ok {
		u := acc.user
		msg.User = &u
	}
	s.messages[id] = append(s.messages[id], msg)
	s.mu.Unlock()

	// Delivered to the connections subscribed to this room, i.e. those
	// that sent join_room or included it in their rejoin_rooms handshake.
	s.hub.broadcast(mustFrame(string(models.EventNewMessage), msg), func(c *conn) bool {
		return c.subscribed(id)
	})
	c.JSON(http.StatusCreated, msg)
}
