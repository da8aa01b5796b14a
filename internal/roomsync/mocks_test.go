package roomsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatsync/client/internal/models"
	"chatsync/client/internal/roomsync"
)

// MockAPI is a testify mock of the roomsync.API boundary.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) FetchJoinedRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *MockAPI) FetchDiscoverableRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *MockAPI) FetchMessages(ctx context.Context, roomID int64) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockAPI) PostJoin(ctx context.Context, roomID int64) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *MockAPI) PostLeave(ctx context.Context, roomID int64) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *MockAPI) PostCreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockAPI) PostDeleteRoom(ctx context.Context, roomID int64) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *MockAPI) PostMessage(ctx context.Context, roomID int64, draft models.MessageDraft) (*models.Message, error) {
	args := m.Called(ctx, roomID, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// fakeChannel records outbound notifications and lets tests feed inbound
// events, so exact notification sequences can be asserted.
type fakeChannel struct {
	mu      sync.Mutex
	events  chan models.Event
	joins   []int64
	leaves  []int64
	rejoins [][]int64
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan models.Event, 32)}
}

func (c *fakeChannel) Events() <-chan models.Event { return c.events }

func (c *fakeChannel) JoinRoom(roomID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins = append(c.joins, roomID)
	return nil
}

func (c *fakeChannel) LeaveRoom(roomID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves = append(c.leaves, roomID)
	return nil
}

func (c *fakeChannel) RejoinRooms(roomIDs []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejoins = append(c.rejoins, append([]int64(nil), roomIDs...))
	return nil
}

func (c *fakeChannel) Joins() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.joins...)
}

func (c *fakeChannel) Leaves() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.leaves...)
}

func (c *fakeChannel) Rejoins() [][]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]int64, len(c.rejoins))
	copy(out, c.rejoins)
	return out
}

// fakeIdentity is a static identity provider.
type fakeIdentity struct {
	user *models.User
}

func (f fakeIdentity) CurrentUser() *models.User { return f.user }

// harness wires an engine to the fakes and runs its event loop. push blocks
// until the engine has applied the event, so tests never need sleeps for
// the non-spawning paths.
type harness struct {
	api     *MockAPI
	channel *fakeChannel
	engine  *roomsync.Engine
	applied chan models.Event
}

func newHarness(t *testing.T, self *models.User) *harness {
	t.Helper()
	h := &harness{
		api:     new(MockAPI),
		channel: newFakeChannel(),
		applied: make(chan models.Event, 32),
	}
	h.engine = roomsync.New(h.api, h.channel, fakeIdentity{self})
	h.engine.OnChange = func(ev models.Event) { h.applied <- ev }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.engine.Run(ctx)
	return h
}

func (h *harness) push(t *testing.T, ev models.Event) {
	t.Helper()
	h.channel.events <- ev
	select {
	case <-h.applied:
	case <-time.After(time.Second):
		t.Fatal("push event was not applied in time")
	}
}

// bootstrap loads a snapshot through the engine with the API mocked out.
func (h *harness) bootstrap(t *testing.T, joined, discoverable []models.Room) {
	t.Helper()
	h.api.On("FetchJoinedRooms", mock.Anything).Return(joined, nil).Once()
	h.api.On("FetchDiscoverableRooms", mock.Anything).Return(discoverable, nil).Once()
	require.NoError(t, h.engine.Bootstrap(context.Background()))
}

// activate selects a room with the membership calls mocked out.
func (h *harness) activate(t *testing.T, r models.Room) {
	t.Helper()
	h.api.On("PostJoin", mock.Anything, r.ID).Return(nil).Once()
	h.api.On("FetchMessages", mock.Anything, r.ID).Return([]models.Message{}, nil).Once()
	require.NoError(t, h.engine.SelectRoom(context.Background(), r))
}
