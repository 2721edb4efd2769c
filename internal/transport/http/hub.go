package http

import (
	"sync"

	"quiz-battle-service/internal/app"
)

// Hub implements app.Gateway: room-scoped fan-out of session events to
// every subscribed connection. Delivery is fire-and-forget; a slow
// subscriber has its stalest pending event dropped rather than blocking
// the broadcast.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[chan app.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[chan app.Event]struct{})}
}

// Subscribe registers a channel on a session room. The returned cancel
// function removes the subscription and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan app.Event, func()) {
	ch := make(chan app.Event, 16)

	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[chan app.Event]struct{})
		h.rooms[sessionID] = room
	}
	room[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if room, ok := h.rooms[sessionID]; ok {
			if _, ok := room[ch]; ok {
				delete(room, ch)
				close(ch)
			}
			if len(room) == 0 {
				delete(h.rooms, sessionID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers an event to all current members of a session room.
func (h *Hub) Broadcast(sessionID string, event app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.rooms[sessionID] {
		select {
		case ch <- event:
		default:
			// Drop the stalest pending event so the newest state wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// RoomSize reports the current member count of a session room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
