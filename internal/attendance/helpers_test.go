package attendance

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/video"
)

// pngFrame encodes a blank frame; its width selects the fake match result.
func pngFrame(t *testing.T, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, 4))); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return buf.Bytes()
}

// widthMatcher returns the result registered for the frame width.
type widthMatcher struct {
	mu      sync.Mutex
	results map[int]facematch.RecognitionResult
	err     error
	calls   int
}

func (m *widthMatcher) Match(_ context.Context, frame image.Image, _ *facematch.Registry) (facematch.RecognitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return facematch.RecognitionResult{}, m.err
	}
	if res, ok := m.results[frame.Bounds().Dx()]; ok {
		return res, nil
	}
	return facematch.RecognitionResult{RecognizedStudentIDs: []int64{}, FaceBoxes: []facematch.BBox{}, PerFaceMatched: []bool{}}, nil
}

func recognized(ids ...int64) facematch.RecognitionResult {
	res := facematch.RecognitionResult{RecognizedStudentIDs: ids, TotalFacesDetected: len(ids)}
	for i := range ids {
		res.FaceBoxes = append(res.FaceBoxes, facematch.BBox{Top: 0, Right: 10 * (i + 1), Bottom: 10, Left: 10 * i})
		res.PerFaceMatched = append(res.PerFaceMatched, true)
	}
	return res
}

// countingBuilder returns a registry of the roster's student IDs.
type countingBuilder struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
	err   error
}

func (b *countingBuilder) Build(ctx context.Context, roster []facematch.RosterEntry) (*facematch.Registry, error) {
	b.mu.Lock()
	b.calls++
	block := b.block
	b.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	faces := make([]facematch.KnownFace, len(roster))
	for i, r := range roster {
		faces[i] = facematch.KnownFace{StudentID: r.StudentID, Embedding: facematch.Embedding{float32(r.StudentID)}}
	}
	return facematch.NewRegistry(faces), nil
}

func (b *countingBuilder) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// fixedSampler returns a preset student set.
type fixedSampler struct {
	ids   []int64
	err   error
	calls int
}

func (s *fixedSampler) SampleAndMatch(_ context.Context, _ string, _ int, _ *facematch.Registry) (facematch.StudentSet, video.SampleStats, error) {
	s.calls++
	if s.err != nil {
		return nil, video.SampleStats{}, s.err
	}
	set := make(facematch.StudentSet)
	set.Add(s.ids...)
	return set, video.SampleStats{FramesRead: 100, FramesSampled: 4}, nil
}

// fixture is a class with enrolled students and an active bout.
type fixture struct {
	store    *mock.MockStore
	class    *database.Class
	students []*database.Student
	bout     *database.Bout
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := mock.NewMockStore()
	class, err := store.CreateClass(ctx, "Physics")
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	f := &fixture{store: store, class: class}
	for _, n := range names {
		s, err := store.CreateStudent(ctx, n, "")
		if err != nil {
			t.Fatalf("create student: %v", err)
		}
		if _, err := store.Enroll(ctx, s.ID, class.ID); err != nil {
			t.Fatalf("enroll: %v", err)
		}
		f.students = append(f.students, s)
	}
	f.bout, err = store.CreateBout(ctx, class.ID, time.Now())
	if err != nil {
		t.Fatalf("create bout: %v", err)
	}
	return f
}

// framesSource replays frames, then reports a disconnect.
type framesSource struct {
	frames [][]byte
	before func(i int) // called before frame i is returned
	i      int
}

func (s *framesSource) NextFrame(_ context.Context) ([]byte, error) {
	if s.i >= len(s.frames) {
		return nil, ErrDisconnected
	}
	if s.before != nil {
		s.before(s.i)
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

type recordingSink struct {
	events []RecognitionEvent
	errors []string
}

func (s *recordingSink) SendEvent(_ context.Context, e RecognitionEvent) error {
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) SendError(_ context.Context, msg string) error {
	s.errors = append(s.errors, msg)
	return nil
}
