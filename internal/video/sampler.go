package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// FrameMatcher runs recognition on one frame.
type FrameMatcher interface {
	Match(ctx context.Context, frame image.Image, reg *facematch.Registry) (facematch.RecognitionResult, error)
}

// SampleStats summarizes one sampling run.
type SampleStats struct {
	FramesRead    int
	FramesSampled int
	FacesDetected int
}

// Sampler matches every Nth frame of a video file against a registry.
type Sampler struct {
	matcher         FrameMatcher
	open            Opener
	defaultInterval int

	// Progress, if set, is called with the number of frames read so far and
	// the estimated total (0 when unknown).
	Progress func(read, total int)
}

// NewSampler creates a sampler. A defaultInterval <= 0 uses constants.DefaultSampleInterval.
func NewSampler(matcher FrameMatcher, open Opener, defaultInterval int) *Sampler {
	if defaultInterval <= 0 {
		defaultInterval = constants.DefaultSampleInterval
	}
	return &Sampler{matcher: matcher, open: open, defaultInterval: defaultInterval}
}

// SampleAndMatch reads the whole video and matches frame i iff i % interval == 0,
// starting with frame 0. It returns the union of recognized students.
//
// Any decoder or recognition failure aborts the run; no partial set is returned.
// An interval <= 0 uses the sampler default.
func (s *Sampler) SampleAndMatch(ctx context.Context, path string, interval int, reg *facematch.Registry) (facematch.StudentSet, SampleStats, error) {
	if interval <= 0 {
		interval = s.defaultInterval
	}

	fr, err := s.open(ctx, path)
	if err != nil {
		return nil, SampleStats{}, fmt.Errorf("open video: %w", err)
	}
	defer fr.Close()

	total := fr.FrameCount()
	seen := make(facematch.StudentSet)
	var stats SampleStats

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		if i%interval != 0 {
			err := fr.SkipFrame()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, stats, fmt.Errorf("frame %d: %w", i, err)
			}
			stats.FramesRead++
			s.report(stats.FramesRead, total)
			continue
		}

		frame, err := fr.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("frame %d: %w", i, err)
		}
		stats.FramesRead++

		res, err := s.matcher.Match(ctx, frame, reg)
		if err != nil {
			return nil, stats, fmt.Errorf("match frame %d: %w", i, err)
		}
		stats.FramesSampled++
		stats.FacesDetected += res.TotalFacesDetected
		seen.Add(res.RecognizedStudentIDs...)
		s.report(stats.FramesRead, total)
	}

	if s.Progress != nil {
		s.Progress(stats.FramesRead, total)
	}
	return seen, stats, nil
}

func (s *Sampler) report(read, total int) {
	if s.Progress != nil && read%constants.ProgressReportInterval == 0 {
		s.Progress(read, total)
	}
}
