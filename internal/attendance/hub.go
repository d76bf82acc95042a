package attendance

import (
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Event types published on the hub.
const (
	EventRecognition = "recognition"
	EventEnded       = "ended"
)

// Event is a bout update delivered to observers.
type Event struct {
	Type   string `json:"type"`
	BoutID int64  `json:"bout_id"`
	Data   any    `json:"data,omitempty"`
}

// EndedData is the payload of an EventEnded event.
type EndedData struct {
	EndTime time.Time `json:"end_time"`
}

func publishEnded(h *Hub, bout *database.Bout) {
	if bout == nil || bout.EndTime == nil {
		return
	}
	h.Publish(Event{Type: EventEnded, BoutID: bout.ID, Data: EndedData{EndTime: *bout.EndTime}})
}

// Hub fans bout events out to subscribers. Slow subscribers drop events.
type Hub struct {
	mu        sync.RWMutex
	listeners map[int64][]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int64][]chan Event)}
}

// Subscribe adds a listener for one bout.
func (h *Hub) Subscribe(boutID int64) chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	h.listeners[boutID] = append(h.listeners[boutID], ch)
	return ch
}

// Unsubscribe removes and closes a listener.
func (h *Hub) Unsubscribe(boutID int64, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.listeners[boutID]
	for i, listener := range list {
		if listener == ch {
			list = append(list[:i], list[i+1:]...)
			close(ch)
			break
		}
	}
	if len(list) == 0 {
		delete(h.listeners, boutID)
	} else {
		h.listeners[boutID] = list
	}
}

// Publish sends an event to every listener of the bout.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, listener := range h.listeners[event.BoutID] {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Subscribers returns the number of listeners of a bout.
func (h *Hub) Subscribers(boutID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[boutID])
}
