// ABOUTME: TTL window for suppressing redelivered chat events.
// ABOUTME: Sync protocols replay events; each one must reach the engine once.

// Package dedupe suppresses duplicate event delivery. Chat sync
// protocols redeliver events after reconnects; a Window remembers event
// ids for a bounded time and capacity so each event drives the engine
// at most once per window.
package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at   time.Time
	elem *list.Element
}

// Window is a thread-safe, TTL-bounded, capacity-bounded set of event
// ids. Insertion order is kept in a list so eviction is O(1).
type Window struct {
	mu    sync.Mutex
	ids   map[string]*entry
	order *list.List // oldest id at the front
	ttl   time.Duration
	cap   int
}

// NewWindow creates a window remembering ids for ttl, holding at most
// cap of them.
func NewWindow(ttl time.Duration, cap int) *Window {
	return &Window{
		ids:   make(map[string]*entry),
		order: list.New(),
		ttl:   ttl,
		cap:   cap,
	}
}

// Seen reports whether the id was already recorded inside the window,
// recording it if not. The check and the record are one atomic step so
// two concurrent deliveries of the same event cannot both pass.
func (w *Window) Seen(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.expire(now)

	if e, ok := w.ids[id]; ok && now.Sub(e.at) < w.ttl {
		return true
	}
	w.record(id, now)
	return false
}

// record inserts or refreshes an id. Must hold mu.
func (w *Window) record(id string, now time.Time) {
	if e, ok := w.ids[id]; ok {
		e.at = now
		w.order.MoveToBack(e.elem)
		return
	}
	if len(w.ids) >= w.cap {
		w.evictOldest()
	}
	w.ids[id] = &entry{at: now, elem: w.order.PushBack(id)}
}

// expire drops ids older than the TTL from the front of the order
// list. Must hold mu.
func (w *Window) expire(now time.Time) {
	for {
		front := w.order.Front()
		if front == nil {
			return
		}
		id := front.Value.(string)
		if now.Sub(w.ids[id].at) < w.ttl {
			return
		}
		w.order.Remove(front)
		delete(w.ids, id)
	}
}

// evictOldest removes the oldest id. Must hold mu.
func (w *Window) evictOldest() {
	front := w.order.Front()
	if front == nil {
		return
	}
	w.order.Remove(front)
	delete(w.ids, front.Value.(string))
}

// Len returns the number of remembered ids.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ids)
}
