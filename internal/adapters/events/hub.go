package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/titledesk/timeline/internal/core/domain"
)

// Hub is an in-process fan-out implementing both Publisher and Subscriber.
// It backs the SSE stream when no broker is configured and keeps the
// timeline core testable without a live transport. Semantics match the
// NATS pair: at most once, drop on full, per-topic channels.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int64]chan []byte
	nextID int64
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int64]chan []byte)}
}

func (h *Hub) Publish(_ context.Context, topic string, msg domain.LiveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal live message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("hub closed")
	}
	for _, ch := range h.subs[topic] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(topic string) (<-chan []byte, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, fmt.Errorf("hub closed")
	}

	h.nextID++
	id := h.nextID
	ch := make(chan []byte, 64)
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int64]chan []byte)
	}
	h.subs[topic][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			removed := false
			if subs, ok := h.subs[topic]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					removed = true
				}
				if len(subs) == 0 {
					delete(h.subs, topic)
				}
			}
			h.mu.Unlock()
			// Close only if Close() has not already done it.
			if removed {
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for topic, subs := range h.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.subs, topic)
	}
	return nil
}
