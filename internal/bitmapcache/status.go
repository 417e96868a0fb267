package bitmapcache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/javi11/altview/internal/bitmap"
)

// StatusChange reports that a key entered or left the cache.
type StatusChange struct {
	Key    bitmap.Key
	Cached bool
}

// statusBroadcaster fans status changes out to subscribers. Sends never
// block: a subscriber whose buffer is full misses the change.
type statusBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan StatusChange
	buffer      int
	log         *slog.Logger
}

func newStatusBroadcaster(buffer int, log *slog.Logger) *statusBroadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &statusBroadcaster{
		subscribers: make(map[string]chan StatusChange),
		buffer:      buffer,
		log:         log,
	}
}

func (b *statusBroadcaster) subscribe() (string, <-chan StatusChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan StatusChange, b.buffer)
	b.subscribers[id] = ch

	return id, ch
}

func (b *statusBroadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[id]; exists {
		close(ch)
		delete(b.subscribers, id)
	}
}

func (b *statusBroadcaster) publish(events []StatusChange) {
	if len(events) == 0 {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				b.log.WarnContext(context.Background(), "Subscriber channel full, skipping status change",
					"subscriber_id", id,
					"key", ev.Key.String(),
					"cached", ev.Cached)
			}
		}
	}
}

func (b *statusBroadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[string]chan StatusChange)
}
