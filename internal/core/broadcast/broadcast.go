// Package broadcast fans stock-change events out to any number of concurrent
// subscribers. Each subscriber owns a bounded buffer with a drop-oldest
// policy, so a slow consumer loses its oldest events instead of blocking the
// publisher or growing memory without bound.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

const DefaultBufferSize = 16

type subscriber struct {
	ch     chan domain.StockUpdateEvent
	filter map[string]struct{} // empty means all products
}

func (s *subscriber) wants(productID string) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[productID]
	return ok
}

// Broadcaster distributes events to independent filtered subscribers.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]*subscriber
	nextID  uint64
	bufSize int
	closed  bool
	logger  zerolog.Logger
}

func New(bufSize int, logger zerolog.Logger) *Broadcaster {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Broadcaster{
		subs:    make(map[uint64]*subscriber),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Subscribe returns a live stream of events whose product id is in productIDs
// (all products when empty) and a cancel function. Cancelling closes the
// stream without disturbing other subscribers or the publisher.
func (b *Broadcaster) Subscribe(productIDs ...string) (<-chan domain.StockUpdateEvent, func()) {
	s := &subscriber{
		ch:     make(chan domain.StockUpdateEvent, b.bufSize),
		filter: make(map[string]struct{}, len(productIDs)),
	}
	for _, id := range productIDs {
		s.filter[id] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
	return s.ch, cancel
}

// Publish delivers an event to every matching subscriber. It never blocks;
// when a subscriber's buffer is full its oldest event is dropped.
func (b *Broadcaster) Publish(evt domain.StockUpdateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if !s.wants(evt.ProductID) {
			continue
		}
		for {
			select {
			case s.ch <- evt:
			default:
				select {
				case dropped := <-s.ch:
					b.logger.Debug().
						Str("product_id", dropped.ProductID).
						Msg("dropped oldest event for slow subscriber")
				default:
				}
				continue
			}
			break
		}
	}
}

// Close terminates all subscriber streams. Publish and Subscribe become
// no-ops afterwards.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
}
