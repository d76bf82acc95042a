package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

const (
	streamWriteWait = 10 * time.Second
	// streamPongWait is how long a client may stay silent, frames or pongs, before it is dropped.
	streamPongWait = 60 * time.Second
	// streamPingPeriod must be shorter than streamPongWait.
	streamPingPeriod = streamPongWait * 9 / 10
)

// StreamHandler serves the live attendance websocket
type StreamHandler struct {
	manager    *attendance.Manager
	upgrader   websocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(manager *attendance.Manager) *StreamHandler {
	return &StreamHandler{
		manager:    manager,
		pongWait:   streamPongWait,
		pingPeriod: streamPingPeriod,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin:     middleware.WebSocketOrigin(),
		},
	}
}

// wsSource reads binary frames from the websocket. Cancelling ctx
// interrupts a blocked read.
type wsSource struct {
	conn     *websocket.Conn
	pongWait time.Duration
}

func (s *wsSource) NextFrame(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: no message in %s", attendance.ErrDisconnected, s.pongWait)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil, attendance.ErrDisconnected
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, fmt.Errorf("%w: %v", attendance.ErrDisconnected, err)
			}
			return nil, err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		if msgType != websocket.BinaryMessage {
			// Only binary frames carry images.
			continue
		}
		return data, nil
	}
}

// wsSink writes JSON messages to the websocket. Only the Run loop writes, so no lock is needed.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) SendEvent(_ context.Context, event attendance.RecognitionEvent) error {
	return s.writeJSON(event)
}

func (s *wsSink) SendError(_ context.Context, message string) error {
	return s.writeJSON(map[string]string{"error": message})
}

func (s *wsSink) writeJSON(v any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// streamErrorMessage maps session start errors to the message sent to the client.
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, attendance.ErrBoutNotFound):
		return "Bout not found"
	case errors.Is(err, attendance.ErrSessionEnded):
		return "Bout has already ended"
	default:
		return "Failed to start attendance session"
	}
}

// Attendance upgrades the request to a websocket and feeds its frames to the
// bout's session. Each binary message is one encoded image; each processed
// frame is answered with a recognition event.
func (h *StreamHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	sink := &wsSink{conn: conn}

	boutID, err := strconv.ParseInt(chi.URLParam(r, "boutId"), 10, 64)
	if err != nil || boutID <= 0 {
		_ = sink.SendError(r.Context(), "Invalid bout ID")
		return
	}

	conn.SetReadLimit(constants.MaxFrameSize)

	// The request context is not cancelled when a hijacked client goes away;
	// the read loop notices that instead.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, release, err := h.manager.Acquire(ctx, boutID)
	if err != nil {
		if !errors.Is(err, attendance.ErrBoutNotFound) && !errors.Is(err, attendance.ErrSessionEnded) {
			log.Printf("bout %d: stream %s: failed to start session: %v", boutID, connID, err)
		}
		_ = sink.SendError(ctx, streamErrorMessage(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, streamErrorMessage(err)),
			time.Now().Add(streamWriteWait))
		return
	}
	defer release()

	log.Printf("bout %d: stream %s connected (%d known faces)", boutID, connID, ctrl.Registry().Len())

	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	go h.keepAlive(ctx, conn)

	err = ctrl.Run(ctx, &wsSource{conn: conn, pongWait: h.pongWait}, sink)
	switch {
	case errors.Is(err, attendance.ErrSessionEnded):
		log.Printf("bout %d: stream %s closed, bout ended", boutID, connID)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Bout has already ended"),
			time.Now().Add(streamWriteWait))
	case err != nil:
		log.Printf("bout %d: stream %s closed: %v", boutID, connID, err)
	default:
		log.Printf("bout %d: stream %s disconnected", boutID, connID)
	}
}

// keepAlive pings the client until ctx is done. WriteControl may run
// concurrently with the Run loop's writes.
func (h *StreamHandler) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
