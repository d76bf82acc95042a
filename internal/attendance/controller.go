package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	// ErrBoutNotFound is returned for unknown bout IDs.
	ErrBoutNotFound = errors.New("bout not found")
	// ErrSessionEnded is returned when the bout has already ended.
	ErrSessionEnded = errors.New("bout has already ended")
	// ErrDisconnected is returned by a FrameSource whose client went away.
	ErrDisconnected = errors.New("client disconnected")
)

// FrameMatcher runs recognition on one decoded frame.
type FrameMatcher interface {
	Match(ctx context.Context, frame image.Image, reg *facematch.Registry) (facematch.RecognitionResult, error)
}

// RecognitionEvent is sent to the client after every processed frame.
// FaceLocations and RecognitionStatus are index aligned.
type RecognitionEvent struct {
	Recognized        []int64          `json:"recognized"`
	TotalFaces        int              `json:"total_faces"`
	FaceLocations     []facematch.BBox `json:"face_locations"`
	RecognitionStatus []bool           `json:"recognition_status"`
	Timestamp         time.Time        `json:"timestamp"`
}

// OutcomeKind tags the result of OnFrame.
type OutcomeKind int

const (
	// OutcomeRecognized means the frame was matched; Event is set. Err holds
	// ledger failures, which do not suppress the event.
	OutcomeRecognized OutcomeKind = iota
	// OutcomeSkipped means the frame could not be decoded or matched; Err says why.
	OutcomeSkipped
	// OutcomeEnded means the session is over and the frame was ignored.
	OutcomeEnded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecognized:
		return "recognized"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeEnded:
		return "ended"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// FrameOutcome is the result of feeding one frame to a controller.
type FrameOutcome struct {
	Kind  OutcomeKind
	Event *RecognitionEvent
	Err   error
}

// State of a live session.
type State int

const (
	StateActive State = iota
	StateEnded
)

// FrameSource delivers encoded frames from a client. NextFrame returns
// io.EOF or ErrDisconnected when the client is gone.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// EventSink delivers results to a client.
type EventSink interface {
	SendEvent(ctx context.Context, event RecognitionEvent) error
	SendError(ctx context.Context, message string) error
}

// Controller processes the live frames of one bout.
// Frames are handled one at a time; End waits for the frame in flight.
type Controller struct {
	boutID  int64
	reg     *facematch.Registry
	matcher FrameMatcher
	ledger  *Ledger
	bouts   database.BoutStore
	hub     *Hub
	now     func() time.Time

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewController creates a controller for a bout. The controller starts Active
// unless the bout already has an end time.
func NewController(bout *database.Bout, reg *facematch.Registry, matcher FrameMatcher, ledger *Ledger, bouts database.BoutStore, hub *Hub) *Controller {
	c := &Controller{
		boutID:  bout.ID,
		reg:     reg,
		matcher: matcher,
		ledger:  ledger,
		bouts:   bouts,
		hub:     hub,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if bout.Ended() {
		c.markEnded()
	}
	return c
}

// markEnded must be called with mu held, or before the controller is shared.
func (c *Controller) markEnded() {
	c.state = StateEnded
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Done is closed when the session ends.
func (c *Controller) Done() <-chan struct{} { return c.done }


// BoutID returns the bout this controller serves.
func (c *Controller) BoutID() int64 { return c.boutID }

// Registry returns the known faces of the session.
func (c *Controller) Registry() *facematch.Registry { return c.reg }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnFrame decodes and matches one frame, then records presence for every
// recognized student.
func (c *Controller) OnFrame(ctx context.Context, raw []byte) FrameOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateEnded {
		return FrameOutcome{Kind: OutcomeEnded, Err: ErrSessionEnded}
	}

	frame, err := facematch.DecodeImage(raw)
	if err != nil {
		log.Printf("bout %d: skipping frame: %v", c.boutID, err)
		return FrameOutcome{Kind: OutcomeSkipped, Err: err}
	}

	res, err := c.matcher.Match(ctx, frame, c.reg)
	if err != nil {
		log.Printf("bout %d: skipping frame: %v", c.boutID, err)
		return FrameOutcome{Kind: OutcomeSkipped, Err: err}
	}

	ts := c.now()
	var errs []error
	written := make(facematch.StudentSet, len(res.RecognizedStudentIDs))
	for _, id := range res.RecognizedStudentIDs {
		if written.Has(id) {
			continue
		}
		written.Add(id)
		if _, _, err := c.ledger.UpsertPresence(ctx, id, c.boutID, ts); err != nil {
			log.Printf("warning: bout %d: %v", c.boutID, err)
			errs = append(errs, err)
		}
	}

	event := &RecognitionEvent{
		Recognized:        res.RecognizedStudentIDs,
		TotalFaces:        res.TotalFacesDetected,
		FaceLocations:     res.FaceBoxes,
		RecognitionStatus: res.PerFaceMatched,
		Timestamp:         ts,
	}
	c.hub.Publish(Event{Type: EventRecognition, BoutID: c.boutID, Data: event})

	return FrameOutcome{Kind: OutcomeRecognized, Event: event, Err: errors.Join(errs...)}
}

// End closes the session and persists the end time. Ending twice returns ErrSessionEnded.
func (c *Controller) End(ctx context.Context) (*database.Bout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateEnded {
		return nil, ErrSessionEnded
	}

	bout, err := c.bouts.EndBout(ctx, c.boutID, c.now())
	switch {
	case errors.Is(err, database.ErrBoutEnded):
		c.markEnded()
		return nil, ErrSessionEnded
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrBoutNotFound
	case err != nil:
		return nil, fmt.Errorf("end bout %d: %w", c.boutID, err)
	}

	c.markEnded()
	publishEnded(c.hub, bout)
	return bout, nil
}

// Run feeds frames from src until the client disconnects or ctx is done.
// A disconnect leaves the bout active. Ending the session cancels the
// context passed to src, so an idle client is told the bout ended and the
// loop stops with ErrSessionEnded.
func (c *Controller) Run(ctx context.Context, src FrameSource, sink EventSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		raw, err := src.NextFrame(ctx)
		if err != nil {
			if c.ended() {
				c.notifyEnded(sink)
				return ErrSessionEnded
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ErrDisconnected) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		out := c.OnFrame(ctx, raw)
		switch out.Kind {
		case OutcomeRecognized:
			if err := sink.SendEvent(ctx, *out.Event); err != nil {
				log.Printf("bout %d: send event: %v", c.boutID, err)
				return nil
			}
		case OutcomeSkipped:
			continue
		case OutcomeEnded:
			c.notifyEnded(sink)
			return ErrSessionEnded
		}
	}
}

func (c *Controller) ended() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Controller) notifyEnded(sink EventSink) {
	// ctx may already be cancelled by End.
	if err := sink.SendError(context.Background(), "Bout has already ended"); err != nil {
		log.Printf("bout %d: send error: %v", c.boutID, err)
	}
}
