package roomsync

import (
	"log"
	"sync"

	"chatsync/client/internal/catalog"
)

// subscriptionManager restores the server-side room subscriptions after
// every (re)connection. The rejoin handshake fires at most once per
// connection epoch and only once the catalog has been loaded, so a
// connection that completes before the bootstrap snapshot arrives simply
// waits for it.
type subscriptionManager struct {
	mu      sync.Mutex
	channel Channel
	catalog *catalog.Catalog

	connected bool
	// handled is reset on every connection transition; once set, no further
	// bulk rejoin happens until the next epoch. An empty joined set marks
	// the epoch handled without sending anything: rooms joined later in the
	// epoch announce themselves through single join_room notifications.
	handled bool
}

func newSubscriptionManager(ch Channel, cat *catalog.Catalog) *subscriptionManager {
	return &subscriptionManager{channel: ch, catalog: cat}
}

// handleConnected opens a new connection epoch.
func (m *subscriptionManager) handleConnected() {
	m.mu.Lock()
	m.connected = true
	m.handled = false
	m.mu.Unlock()
	m.maybeRejoin()
}

// handleDisconnected closes the epoch; the next connected event starts a
// fresh one with a fresh handshake.
func (m *subscriptionManager) handleDisconnected() {
	m.mu.Lock()
	m.connected = false
	m.handled = false
	m.mu.Unlock()
}

// snapshotLoaded is called after the bootstrap snapshot lands, covering the
// race where the connection was up before the joined set was known.
func (m *subscriptionManager) snapshotLoaded() {
	m.maybeRejoin()
}

func (m *subscriptionManager) maybeRejoin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.handled || !m.catalog.Loaded() {
		return
	}
	ids := m.catalog.JoinedIDs()
	if len(ids) == 0 {
		m.handled = true
		return
	}
	if err := m.channel.RejoinRooms(ids); err != nil {
		log.Printf("roomsync: rejoin handshake: %v", err)
		return
	}
	m.handled = true
}
