package roomsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"chatsync/client/internal/models"
)

// ErrNoActiveRoom is returned by SendMessage when no room is open.
var ErrNoActiveRoom = errors.New("roomsync: no active room")

// Bootstrap pulls the baseline snapshot of both room lists. On failure the
// catalog is left empty and unloaded; retrying is the caller's call. A
// connection established before the snapshot arrives performs its rejoin
// handshake right after the snapshot lands.
func (e *Engine) Bootstrap(ctx context.Context) error {
	var (
		wg           sync.WaitGroup
		joined       []models.Room
		discoverable []models.Room
		joinedErr    error
		discErr      error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		joined, joinedErr = e.api.FetchJoinedRooms(ctx)
	}()
	go func() {
		defer wg.Done()
		discoverable, discErr = e.api.FetchDiscoverableRooms(ctx)
	}()
	wg.Wait()

	if joinedErr != nil {
		return fmt.Errorf("fetching joined rooms: %w", joinedErr)
	}
	if discErr != nil {
		return fmt.Errorf("fetching discoverable rooms: %w", discErr)
	}

	e.catalog.LoadSnapshot(joined, discoverable)
	e.subs.snapshotLoaded()
	return nil
}

// SelectRoom makes a room the active one: server join first, then the local
// membership transition, the channel notifications and the history fetch.
// Selecting the already-active room is a no-op. A history response that
// arrives after another selection has taken over is discarded, so the
// buffer only ever holds messages of the room the tracker points at.
func (e *Engine) SelectRoom(ctx context.Context, room models.Room) error {
	e.mu.Lock()
	if id, ok := e.tracker.id(); ok && id == room.ID {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.api.PostJoin(ctx, room.ID); err != nil {
		return fmt.Errorf("joining room %d: %w", room.ID, err)
	}

	e.mu.Lock()
	if prev := e.tracker.room(); prev != nil {
		if err := e.channel.LeaveRoom(prev.ID); err != nil {
			log.Printf("roomsync: leave notification for room %d: %v", prev.ID, err)
		}
	}
	e.tracker.set(&room)
	e.buffer.clear()
	e.mu.Unlock()

	e.catalog.MarkJoined(room.ID)
	e.catalog.ClearUnread(room.ID)
	if err := e.channel.JoinRoom(room.ID); err != nil {
		log.Printf("roomsync: join notification for room %d: %v", room.ID, err)
	}

	msgs, err := e.api.FetchMessages(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("fetching messages for room %d: %w", room.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.tracker.id(); !ok || id != room.ID {
		// A later selection (or a deletion) won the race.
		return nil
	}
	e.buffer.replaceAll(msgs)
	return nil
}

// LeaveRoom gives up membership of a joined room. Leaving a room the user is
// not a member of is a no-op.
func (e *Engine) LeaveRoom(ctx context.Context, room models.Room) error {
	if !e.catalog.IsJoined(room.ID) {
		return nil
	}
	if err := e.api.PostLeave(ctx, room.ID); err != nil {
		return fmt.Errorf("leaving room %d: %w", room.ID, err)
	}

	if err := e.channel.LeaveRoom(room.ID); err != nil {
		log.Printf("roomsync: leave notification for room %d: %v", room.ID, err)
	}
	e.catalog.MarkLeft(room.ID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.tracker.id(); ok && id == room.ID {
		e.tracker.set(nil)
		e.buffer.clear()
	}
	return nil
}

// CreateRoom creates a room owned by the user and activates it. The catalog
// admission itself happens through the rooms:created push event, which
// tolerates either ordering of the response and the push.
func (e *Engine) CreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	room, err := e.api.PostCreateRoom(ctx, name, description)
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("creating room: empty response")
	}
	if err := e.SelectRoom(ctx, *room); err != nil {
		return room, err
	}
	return room, nil
}

// DeleteRoom deletes a room the user owns. Local removal happens through
// the room_deleted push event, which every member receives, including us.
func (e *Engine) DeleteRoom(ctx context.Context, roomID int64) error {
	if err := e.api.PostDeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("deleting room %d: %w", roomID, err)
	}
	if err := e.channel.LeaveRoom(roomID); err != nil {
		log.Printf("roomsync: leave notification for room %d: %v", roomID, err)
	}
	return nil
}

// SendMessage posts a message to the active room. The message itself enters
// the buffer through the new_message push echo, never locally.
func (e *Engine) SendMessage(ctx context.Context, roomID int64, draft models.MessageDraft) error {
	e.mu.Lock()
	_, active := e.tracker.id()
	e.mu.Unlock()
	if !active {
		return ErrNoActiveRoom
	}
	if _, err := e.api.PostMessage(ctx, roomID, draft); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}
