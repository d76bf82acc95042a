package video

import (
	"context"
	"image"
	"io"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// indexedFrames yields n frames whose width is index+1.
type indexedFrames struct {
	n        int
	next     int
	failAt   int // returns failErr instead of frame failAt, -1 disables
	failErr  error
	skipped  int
	closed   bool
	estimate int
}

func (f *indexedFrames) ReadFrame() (image.Image, error) {
	if err := f.advance(); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, f.next, 1)), nil
}

func (f *indexedFrames) SkipFrame() error {
	if err := f.advance(); err != nil {
		return err
	}
	f.skipped++
	return nil
}

func (f *indexedFrames) advance() error {
	if f.failAt >= 0 && f.next == f.failAt {
		return f.failErr
	}
	if f.next >= f.n {
		return io.EOF
	}
	f.next++
	return nil
}

func (f *indexedFrames) FrameCount() int { return f.estimate }
func (f *indexedFrames) Close() error    { f.closed = true; return nil }

func openerFor(fr FrameReader) Opener {
	return func(context.Context, string) (FrameReader, error) { return fr, nil }
}

// recordingMatcher records frame indices and recognizes students by index.
type recordingMatcher struct {
	indices []int
	byIndex map[int][]int64
	failAt  int
	err     error
}

func (m *recordingMatcher) Match(_ context.Context, frame image.Image, _ *facematch.Registry) (facematch.RecognitionResult, error) {
	idx := frame.Bounds().Dx() - 1
	if m.err != nil && idx == m.failAt {
		return facematch.RecognitionResult{}, m.err
	}
	m.indices = append(m.indices, idx)
	ids := m.byIndex[idx]
	return facematch.RecognitionResult{RecognizedStudentIDs: ids, TotalFacesDetected: len(ids)}, nil
}
