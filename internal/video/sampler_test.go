package video

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestSampleAndMatch_Cadence(t *testing.T) {
	tests := []struct {
		name     string
		frames   int
		interval int
		want     []int
	}{
		{"every 30th of 100", 100, 30, []int{0, 30, 60, 90}},
		{"default interval", 100, 0, []int{0, 30, 60, 90}},
		{"negative interval uses default", 61, -5, []int{0, 30, 60}},
		{"every frame", 3, 1, []int{0, 1, 2}},
		{"interval larger than video", 10, 50, []int{0}},
		{"empty video", 0, 30, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &indexedFrames{n: tt.frames, failAt: -1}
			m := &recordingMatcher{}
			s := NewSampler(m, openerFor(fr), 0)

			_, stats, err := s.SampleAndMatch(context.Background(), "lecture.mp4", tt.interval, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(m.indices, tt.want) {
				t.Errorf("matched frames %v, want %v", m.indices, tt.want)
			}
			if stats.FramesRead != tt.frames {
				t.Errorf("expected %d frames read, got %d", tt.frames, stats.FramesRead)
			}
			if stats.FramesSampled != len(tt.want) {
				t.Errorf("expected %d sampled, got %d", len(tt.want), stats.FramesSampled)
			}
			if fr.skipped != tt.frames-len(tt.want) {
				t.Errorf("expected %d skipped, got %d", tt.frames-len(tt.want), fr.skipped)
			}
			if !fr.closed {
				t.Error("frame reader was not closed")
			}
		})
	}
}

func TestSampleAndMatch_Union(t *testing.T) {
	fr := &indexedFrames{n: 100, failAt: -1}
	m := &recordingMatcher{byIndex: map[int][]int64{
		0:  {1, 2},
		30: {2},
		60: {3, 3},
		31: {99}, // never sampled
	}}
	s := NewSampler(m, openerFor(fr), 30)

	got, stats, err := s.SampleAndMatch(context.Background(), "lecture.mp4", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got.Sorted(), []int64{1, 2, 3}) {
		t.Errorf("expected {1,2,3}, got %v", got.Sorted())
	}
	if stats.FacesDetected != 5 {
		t.Errorf("expected 5 faces, got %d", stats.FacesDetected)
	}
}

func TestSampleAndMatch_Fatal(t *testing.T) {
	boom := errors.New("service down")

	t.Run("truncated stream", func(t *testing.T) {
		fr := &indexedFrames{n: 100, failAt: 45, failErr: ErrTruncatedFrame}
		m := &recordingMatcher{byIndex: map[int][]int64{0: {1}}}
		got, _, err := NewSampler(m, openerFor(fr), 30).SampleAndMatch(context.Background(), "x.mp4", 30, nil)
		if !errors.Is(err, ErrTruncatedFrame) {
			t.Errorf("expected ErrTruncatedFrame, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no result on failure, got %v", got)
		}
	})

	t.Run("matcher failure", func(t *testing.T) {
		fr := &indexedFrames{n: 100, failAt: -1}
		m := &recordingMatcher{byIndex: map[int][]int64{0: {1}}, failAt: 60, err: boom}
		got, _, err := NewSampler(m, openerFor(fr), 30).SampleAndMatch(context.Background(), "x.mp4", 30, nil)
		if !errors.Is(err, boom) {
			t.Errorf("expected matcher error, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no result on failure, got %v", got)
		}
	})

	t.Run("open failure", func(t *testing.T) {
		open := func(context.Context, string) (FrameReader, error) { return nil, boom }
		_, _, err := NewSampler(&recordingMatcher{}, open, 30).SampleAndMatch(context.Background(), "x.mp4", 30, nil)
		if !errors.Is(err, boom) {
			t.Errorf("expected open error, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fr := &indexedFrames{n: 10, failAt: -1}
		_, _, err := NewSampler(&recordingMatcher{}, openerFor(fr), 30).SampleAndMatch(ctx, "x.mp4", 30, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSampleAndMatch_Progress(t *testing.T) {
	fr := &indexedFrames{n: 25, failAt: -1, estimate: 25}
	s := NewSampler(&recordingMatcher{}, openerFor(fr), 5)

	var calls [][2]int
	s.Progress = func(read, total int) { calls = append(calls, [2]int{read, total}) }

	if _, _, err := s.SampleAndMatch(context.Background(), "x.mp4", 0, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) == 0 {
		t.Fatal("expected progress callbacks")
	}
	last := calls[len(calls)-1]
	if last != [2]int{25, 25} {
		t.Errorf("expected final progress 25/25, got %v", last)
	}
}
