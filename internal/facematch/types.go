package facematch

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Embedding is a fixed-length face descriptor produced by the face service.
type Embedding []float32

// BBox is a face bounding box in pixel coordinates of the frame it was found in.
// It serializes as [top, right, bottom, left], the order clients draw overlays with.
type BBox struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// MarshalJSON encodes the box as a four element array.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.Top, b.Right, b.Bottom, b.Left})
}

// UnmarshalJSON decodes a [top, right, bottom, left] array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("decode bbox: expected 4 values, got %d", len(v))
	}
	b.Top, b.Right, b.Bottom, b.Left = v[0], v[1], v[2], v[3]
	return nil
}

// KnownFace pairs a student with the embedding of their reference image.
type KnownFace struct {
	StudentID int64
	Embedding Embedding
}

// RecognitionResult describes one processed frame.
// FaceBoxes[i] and PerFaceMatched[i] refer to the same detected face.
// RecognizedStudentIDs has one entry per matched face, in detection order.
type RecognitionResult struct {
	RecognizedStudentIDs []int64
	TotalFacesDetected   int
	FaceBoxes            []BBox
	PerFaceMatched       []bool
}

// emptyResult returns a result with non-nil empty sequences so it encodes as [] rather than null.
func emptyResult() RecognitionResult {
	return RecognitionResult{
		RecognizedStudentIDs: []int64{},
		FaceBoxes:            []BBox{},
		PerFaceMatched:       []bool{},
	}
}

// StudentSet is a set of student IDs.
type StudentSet map[int64]struct{}

// Add inserts every id into the set.
func (s StudentSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports whether id is in the set.
func (s StudentSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s StudentSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
