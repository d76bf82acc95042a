package facematch

import (
	"context"
	"fmt"
	"image"
)

// Matcher detects faces in a frame and matches each one against a registry.
// It holds no per-frame state and is safe for concurrent use.
type Matcher struct {
	detector   Detector
	embedder   Embedder
	comparator Comparator
	frameScale float64
}

// NewMatcher creates a matcher. Frames are downscaled by frameScale before detection;
// values outside (0, 1) disable downscaling. Reported boxes are always in the
// coordinates of the frame passed to Match.
func NewMatcher(detector Detector, embedder Embedder, comparator Comparator, frameScale float64) *Matcher {
	if frameScale <= 0 || frameScale > 1 {
		frameScale = 1
	}
	return &Matcher{
		detector:   detector,
		embedder:   embedder,
		comparator: comparator,
		frameScale: frameScale,
	}
}

// Match runs detection and matching on one frame.
//
// For every detected face the known face with the smallest distance is selected
// (the first one wins ties) and the face counts as recognized only if the
// comparator flagged that nearest face as a match. A farther known face that is
// within threshold does not rescue an unmatched nearest one.
func (m *Matcher) Match(ctx context.Context, frame image.Image, reg *Registry) (RecognitionResult, error) {
	work, restore := frame, 1.0
	if m.frameScale < 1 {
		work = Downscale(frame, m.frameScale)
		restore = float64(frame.Bounds().Dx()) / float64(work.Bounds().Dx())
	}

	boxes, err := m.detector.DetectFaces(ctx, work)
	if err != nil {
		return RecognitionResult{}, fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		return emptyResult(), nil
	}

	embeddings := make([]Embedding, len(boxes))
	for i, box := range boxes {
		emb, err := m.embedder.EmbedFace(ctx, work, box)
		if err != nil {
			return RecognitionResult{}, fmt.Errorf("embed face %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	var known []KnownFace
	if reg != nil {
		known = reg.faces
	}

	result := RecognitionResult{
		RecognizedStudentIDs: make([]int64, 0, len(boxes)),
		TotalFacesDetected:   len(boxes),
		FaceBoxes:            make([]BBox, len(boxes)),
		PerFaceMatched:       make([]bool, len(boxes)),
	}
	for i, emb := range embeddings {
		result.FaceBoxes[i] = boxes[i].Scale(restore).Clamp(frame.Bounds())

		if len(known) == 0 {
			continue
		}
		comparisons := m.comparator.Compare(known, emb)
		if len(comparisons) != len(known) {
			return RecognitionResult{}, fmt.Errorf("comparator returned %d results for %d known faces", len(comparisons), len(known))
		}
		best := nearest(comparisons)
		if comparisons[best].Matched {
			result.PerFaceMatched[i] = true
			result.RecognizedStudentIDs = append(result.RecognizedStudentIDs, known[best].StudentID)
		}
	}

	return result, nil
}

// nearest returns the index of the smallest distance; the first index wins ties.
// comparisons must not be empty.
func nearest(comparisons []Comparison) int {
	best := 0
	for i := 1; i < len(comparisons); i++ {
		if comparisons[i].Distance < comparisons[best].Distance {
			best = i
		}
	}
	return best
}
