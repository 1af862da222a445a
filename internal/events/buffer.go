package events

import (
	"sync"

	"github.com/nixlim/growwatch/internal/alerts"
)

// RingBuffer is a fixed-capacity, thread-safe ring buffer of Entries.
// When the buffer is full, the oldest entry is evicted to make room.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Entry
	cap   int
	head  int // index of the oldest element
	count int
}

// NewRingBuffer creates a RingBuffer. Capacity below 1 is raised to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Entry, capacity),
		cap:   capacity,
	}
}

// Add inserts an entry, overwriting the oldest one when full.
func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.cap
		return
	}
	rb.items[(rb.head+rb.count)%rb.cap] = e
	rb.count++
}

// Listen is an engine listener that formats and stores every notification.
func (rb *RingBuffer) Listen(n alerts.Notification) {
	rb.Add(FormatNotification(n))
}

// ListAll returns all entries oldest first.
func (rb *RingBuffer) ListAll() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.listLocked()
}

// Recent returns at most limit entries, newest last. A limit of zero or
// less returns everything.
func (rb *RingBuffer) Recent(limit int) []Entry {
	all := rb.ListAll()
	if limit > 0 && len(all) > limit {
		return all[len(all)-limit:]
	}
	return all
}

// ListByRule returns the entries for the named rule, oldest first.
func (rb *RingBuffer) ListByRule(rule string) []Entry {
	return rb.filter(func(e Entry) bool { return e.Rule == rule })
}

// ListByKind returns the entries of the given kind, oldest first.
func (rb *RingBuffer) ListByKind(kind alerts.Kind) []Entry {
	return rb.filter(func(e Entry) bool { return e.Kind == string(kind) })
}

func (rb *RingBuffer) filter(keep func(Entry) bool) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []Entry
	for _, e := range rb.listLocked() {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of entries currently stored.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.cap
}

// listLocked returns all entries oldest first.
// Caller must hold at least a read lock.
func (rb *RingBuffer) listLocked() []Entry {
	if rb.count == 0 {
		return nil
	}
	result := make([]Entry, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
