package alerts

import "sync"

// Listener receives notifications. Listeners run synchronously on the
// publisher's goroutine and must not block indefinitely.
type Listener func(Notification)

// Broadcaster is a synchronous, unbuffered fan-out point. Publish calls
// every registered listener in subscription order before returning.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []*Subscription
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	b  *Broadcaster
	fn Listener
}

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers fn for every future notification. There is no replay.
func (b *Broadcaster) Subscribe(fn Listener) *Subscription {
	sub := &Subscription{b: b, fn: fn}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, sub)
	return sub
}

// Cancel removes the subscription. Cancelling twice is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.b == nil {
		return
	}
	b := s.b
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l == s {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			break
		}
	}
	s.b = nil
}

// Publish delivers n to a snapshot of the current listeners. The listener
// list is copied under the lock so listeners may subscribe or cancel while
// being called.
func (b *Broadcaster) Publish(n Notification) {
	b.mu.RLock()
	listeners := make([]*Subscription, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		if l.fn != nil {
			l.fn(n)
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
