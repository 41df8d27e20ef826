// Package notify multicasts local cache change events to subscribers.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Broadcaster fans change events out to every subscriber. Sends never block
// the publisher: a subscriber whose buffer is full misses the event and is
// expected to re-query on the next one it receives.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]chan types.ChangeEvent
	buffer int
	closed bool
	logger *zap.Logger
}

// New creates a Broadcaster. A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[string]chan types.ChangeEvent),
		buffer: DefaultBuffer,
		logger: logger,
	}
}

// Subscribe returns a channel of change events and a cancel func that
// unsubscribes and closes the channel. Cancel is idempotent. Subscribing to
// a closed Broadcaster returns an already closed channel.
func (b *Broadcaster) Subscribe() (<-chan types.ChangeEvent, func()) {
	ch := make(chan types.ChangeEvent, b.buffer)
	id := uuid.NewString()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber.
func (b *Broadcaster) Publish(ev types.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		select {
		case sub <- ev:
		default:
			b.logger.Debug("dropping change event for slow subscriber",
				zap.String("subscriber", id),
				zap.String("key", ev.Key),
				zap.String("kind", string(ev.Kind)))
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later Publish calls are no-ops and
// later Subscribe calls get a closed channel. Close is idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}
