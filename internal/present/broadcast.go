package present

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many messages a slow subscriber may fall behind before messages
// are dropped for it.
const subscriberBuffer = 4

// Broadcaster fans encoded Messages out to subscribers such as websocket clients. Render
// never blocks: a subscriber whose queue is full misses the message.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewBroadcaster creates a Broadcaster without subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a new subscriber. The channel is closed when cancel is called or the
// broadcaster closes.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Clients returns the number of subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber lagged.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Sent returns how many deliveries succeeded.
func (b *Broadcaster) Sent() uint64 {
	return b.sent.Load()
}

// Render implements Renderer. Scenes without a landmark frame are skipped.
func (b *Broadcaster) Render(ctx context.Context, scene Scene) error {
	if scene.Frame.Empty() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || len(b.subs) == 0 {
		return nil
	}

	data, err := json.Marshal(Encode(scene.Frame, scene.Pose))
	if err != nil {
		return err
	}
	for ch := range b.subs {
		select {
		case ch <- data:
			b.sent.Add(1)
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
	return nil
}
