package roomsync

import "chatsync/client/internal/models"

// messageBuffer holds the messages of the active room in arrival order. It
// is replaced wholesale on a room switch and appended to by live pushes; no
// re-sorting is ever performed, the transport's delivery order is trusted.
// Guarded by the engine mutex, like the tracker.
type messageBuffer struct {
	msgs []models.Message
}

func (b *messageBuffer) replaceAll(msgs []models.Message) {
	b.msgs = append([]models.Message(nil), msgs...)
}

func (b *messageBuffer) append(msg models.Message) {
	b.msgs = append(b.msgs, msg)
}

func (b *messageBuffer) clear() {
	b.msgs = nil
}

func (b *messageBuffer) snapshot() []models.Message {
	return append([]models.Message(nil), b.msgs...)
}
