package roomsync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatsync/client/internal/models"
	"chatsync/client/internal/roomsync"
)

func TestSelectRoom_JoinsTransitionsAndFetches(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, []models.Room{room(2, "random", 3)})
	h.activate(t, room(1, "general", 1))

	history := []models.Message{message(10, 2, "old"), message(11, 2, "older")}
	h.api.On("PostJoin", mock.Anything, int64(2)).Return(nil).Once()
	h.api.On("FetchMessages", mock.Anything, int64(2)).Return(history, nil).Once()

	require.NoError(t, h.engine.SelectRoom(context.Background(), room(2, "random", 3)))

	// discoverable -> joined, synchronously with selection.
	assert.True(t, h.engine.ActiveRoom().ID == 2)
	joinedIDs := []int64{}
	for _, r := range h.engine.JoinedRooms() {
		joinedIDs = append(joinedIDs, r.ID)
	}
	assert.Equal(t, []int64{1, 2}, joinedIDs)
	assert.Empty(t, h.engine.DiscoverableRooms())

	// Leave for the previous room, join for the new one.
	assert.Equal(t, []int64{1}, h.channel.Leaves())
	assert.Equal(t, []int64{1, 2}, h.channel.Joins())

	msgs := h.engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "old", msgs[0].Content)
}

func TestSelectRoom_SameRoomIsNoOp(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, nil)
	h.activate(t, room(1, "general", 1))

	require.NoError(t, h.engine.SelectRoom(context.Background(), room(1, "general", 1)))

	h.api.AssertNumberOfCalls(t, "PostJoin", 1)
	assert.Equal(t, []int64{1}, h.channel.Joins())
}

func TestSelectRoom_ClearsUnread(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1), room(2, "random", 3)}, nil)
	h.activate(t, room(1, "general", 1))
	h.push(t, newMessage(message(100, 2, "unread")))

	h.activate(t, room(2, "random", 3))

	r, _ := h.engine.FindRoom(2)
	assert.Equal(t, 0, r.UnreadCount)
}

func TestSelectRoom_JoinFailureMutatesNothing(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, []models.Room{room(2, "random", 3)})
	h.api.On("PostJoin", mock.Anything, int64(2)).Return(assert.AnError).Once()

	err := h.engine.SelectRoom(context.Background(), room(2, "random", 3))
	require.Error(t, err)

	assert.Nil(t, h.engine.ActiveRoom())
	assert.Len(t, h.engine.DiscoverableRooms(), 1)
	assert.Empty(t, h.channel.Joins())
	assert.Empty(t, h.channel.Leaves())
}

// TestSelectRoom_StaleFetchDiscarded reproduces the superseded-selection
// race: the history response for the first room arrives after a second
// selection has taken over, and must not land in the buffer.
func TestSelectRoom_StaleFetchDiscarded(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1), room(2, "random", 3)}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	h.api.On("PostJoin", mock.Anything, mock.Anything).Return(nil)
	h.api.On("FetchMessages", mock.Anything, int64(1)).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.Message{message(10, 1, "stale")}, nil).Once()
	h.api.On("FetchMessages", mock.Anything, int64(2)).
		Return([]models.Message{message(20, 2, "fresh")}, nil).Once()

	done := make(chan error, 1)
	go func() {
		done <- h.engine.SelectRoom(context.Background(), room(1, "general", 1))
	}()
	<-started

	require.NoError(t, h.engine.SelectRoom(context.Background(), room(2, "random", 3)))
	close(release)
	require.NoError(t, <-done)

	msgs := h.engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(2), msgs[0].RoomID)
	assert.Equal(t, "fresh", msgs[0].Content)
}

func TestLeaveRoom_MovesAndClearsActivity(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, nil)
	h.activate(t, room(1, "general", 1))

	h.api.On("PostLeave", mock.Anything, int64(1)).Return(nil).Once()
	require.NoError(t, h.engine.LeaveRoom(context.Background(), room(1, "general", 1)))

	assert.Empty(t, h.engine.JoinedRooms())
	require.Len(t, h.engine.DiscoverableRooms(), 1)
	assert.Nil(t, h.engine.ActiveRoom())
	assert.Empty(t, h.engine.Messages())
	assert.Equal(t, []int64{1}, h.channel.Leaves())
}

func TestLeaveRoom_NonMemberIsNoOp(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, nil, []models.Room{room(2, "random", 3)})

	require.NoError(t, h.engine.LeaveRoom(context.Background(), room(2, "random", 3)))
	h.api.AssertNotCalled(t, "PostLeave", mock.Anything, mock.Anything)
}

func TestLeaveRoom_FailureMutatesNothing(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, nil)
	h.api.On("PostLeave", mock.Anything, int64(1)).Return(assert.AnError).Once()

	require.Error(t, h.engine.LeaveRoom(context.Background(), room(1, "general", 1)))
	assert.Len(t, h.engine.JoinedRooms(), 1)
	assert.Empty(t, h.channel.Leaves())
}

func TestCreateRoom_ActivatesReturnedRoom(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, nil, nil)

	created := room(4, "my-room", self.ID)
	h.api.On("PostCreateRoom", mock.Anything, "my-room", "topic").Return(&created, nil).Once()
	h.api.On("PostJoin", mock.Anything, int64(4)).Return(nil)
	h.api.On("FetchMessages", mock.Anything, int64(4)).Return([]models.Message{}, nil)

	got, err := h.engine.CreateRoom(context.Background(), "my-room", "topic")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ID)
	require.NotNil(t, h.engine.ActiveRoom())
	assert.Equal(t, int64(4), h.engine.ActiveRoom().ID)

	// The catalog admission arrives through the push event; the duplicate
	// activation it triggers is absorbed by the same-room no-op.
	h.push(t, roomCreated(created))
	require.Eventually(t, func() bool {
		return len(h.engine.JoinedRooms()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCreateRoom_Failure(t *testing.T) {
	h := newHarness(t, self)
	h.api.On("PostCreateRoom", mock.Anything, "my-room", "").Return(nil, assert.AnError).Once()

	_, err := h.engine.CreateRoom(context.Background(), "my-room", "")
	require.Error(t, err)
	assert.Nil(t, h.engine.ActiveRoom())
}

func TestDeleteRoom_NotifiesChannel(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", self.ID)}, nil)

	h.api.On("PostDeleteRoom", mock.Anything, int64(1)).Return(nil).Once()
	require.NoError(t, h.engine.DeleteRoom(context.Background(), 1))
	assert.Equal(t, []int64{1}, h.channel.Leaves())

	// Removal itself comes through the push event.
	assert.Len(t, h.engine.JoinedRooms(), 1)
	h.push(t, roomDeleted(1))
	assert.Empty(t, h.engine.JoinedRooms())
}

func TestDeleteRoom_FailureSendsNothing(t *testing.T) {
	h := newHarness(t, self)
	h.api.On("PostDeleteRoom", mock.Anything, int64(1)).Return(assert.AnError).Once()

	require.Error(t, h.engine.DeleteRoom(context.Background(), 1))
	assert.Empty(t, h.channel.Leaves())
}

func TestSendMessage_RequiresActiveRoom(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, nil)

	err := h.engine.SendMessage(context.Background(), 1, models.MessageDraft{Content: "hi"})
	assert.ErrorIs(t, err, roomsync.ErrNoActiveRoom)
	h.api.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessage_PostsDraft(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, nil)
	h.activate(t, room(1, "general", 1))

	draft := models.MessageDraft{Content: "hi"}
	sent := message(100, 1, "hi")
	h.api.On("PostMessage", mock.Anything, int64(1), draft).Return(&sent, nil).Once()

	require.NoError(t, h.engine.SendMessage(context.Background(), 1, draft))
	// The message reaches the buffer only via the push echo.
	assert.Empty(t, h.engine.Messages())
	h.push(t, newMessage(sent))
	assert.Len(t, h.engine.Messages(), 1)
}

func TestSendMessage_Failure(t *testing.T) {
	h := newHarness(t, self)
	h.bootstrap(t, []models.Room{room(1, "general", 1)}, nil)
	h.activate(t, room(1, "general", 1))

	h.api.On("PostMessage", mock.Anything, int64(1), mock.Anything).Return(nil, assert.AnError).Once()
	require.Error(t, h.engine.SendMessage(context.Background(), 1, models.MessageDraft{Content: "hi"}))
	assert.Empty(t, h.engine.Messages())
}
