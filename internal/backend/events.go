package backend

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/troubleshooter/internal/model"
)

// subscriberBufferSize is the channel buffer for each auth event subscriber.
const subscriberBufferSize = 16

// Broadcaster fans auth events out to subscribers.
// Publish never blocks: a subscriber with a full buffer misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]chan model.AuthEvent
	closed bool
	logger *zap.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for a no-op one.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[string]chan model.AuthEvent),
		logger: logger.With(zap.String("component", "auth-events")),
	}
}

// Subscribe registers a subscriber. The returned func unsubscribes and may be called any number of times.
func (b *Broadcaster) Subscribe() (<-chan model.AuthEvent, func()) {
	id := uuid.Must(uuid.NewV4()).String()
	ch := make(chan model.AuthEvent, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", zap.String("sub_id", id))

	var once sync.Once
	return ch, func() { once.Do(func() { b.unsubscribe(id) }) }
}

// Publish delivers ev to every subscriber that has room for it.
func (b *Broadcaster) Publish(ev model.AuthEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropped auth event for slow subscriber",
				zap.String("sub_id", id), zap.String("event", string(ev.Type)))
		}
	}
}

func (b *Broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	b.logger.Debug("subscriber removed", zap.String("sub_id", id))
}

// Close closes all subscriber channels; later subscriptions receive a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
