package realtime

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"gameservices/core"
)

type subscriber struct {
	ch    chan core.Event
	types map[core.EventType]bool
}

func (s subscriber) wants(t core.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Hub fans emitted signals out to stream subscribers. Slow subscribers drop signals instead of
// blocking the engine goroutine.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped int
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe returns a channel receiving the given signal types, or every signal when none are named.
func (h *Hub) Subscribe(buffer int, types ...core.EventType) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	sub := subscriber{ch: make(chan core.Event, buffer)}
	if len(types) > 0 {
		sub.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Broadcast has the signal bus handler signature, so a Hub can be attached with SubscribeAll.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	receivers := make([]chan core.Event, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.wants(ev.Type) {
			receivers = append(receivers, sub.ch)
		}
	}
	h.mu.RUnlock()
	dropped := 0
	for _, ch := range receivers {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.mu.Lock()
		h.dropped += dropped
		h.mu.Unlock()
	}
}

// Subscribers reports the number of open streams.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts signals discarded because a subscriber's buffer was full.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// MarshalJSON encodes a signal for WebSocket clients.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
