package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// boutStatus is the first event of every bout event stream.
type boutStatus struct {
	boutResponse
	Live bool `json:"live"`
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// setupSSEConnection sets the event stream headers and lifts the server write
// deadline. Returns false after writing an error response when streaming is not supported.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	// Not every writer supports deadlines; the stream then ends with the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

// Events streams the recognition and end events of a bout as server-sent events.
// The stream opens with a "status" event and closes after the "ended" event.
func (h *BoutsHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	// Subscribed before the lookup so an end racing the lookup is still delivered.
	hub := h.manager.Hub()
	eventCh := hub.Subscribe(id)
	defer hub.Unsubscribe(id, eventCh)

	bout, err := h.bouts.GetBout(r.Context(), id)
	if err != nil {
		respondBoutError(w, err, "failed to get bout")
		return
	}

	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	sendSSEEvent(w, flusher, "status", boutStatus{boutResponse: toBoutResponse(*bout), Live: h.manager.Live(id)})
	if bout.Ended() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Type == attendance.EventEnded {
				return
			}
		}
	}
}
