package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Comparison is the outcome of comparing a probe embedding against one known face.
type Comparison struct {
	Matched  bool
	Distance float64
}

// Comparator compares a probe against every known face.
// The returned slice is indexed exactly like known.
type Comparator interface {
	Compare(known []KnownFace, probe Embedding) []Comparison
}

// Metric names accepted by NewComparator.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// NewComparator returns the comparator for the named metric.
// A threshold <= 0 selects the metric's default.
func NewComparator(metric string, threshold float64) (Comparator, error) {
	switch metric {
	case "", MetricEuclidean:
		if threshold <= 0 {
			threshold = constants.DefaultEuclideanTolerance
		}
		return EuclideanComparator{Tolerance: threshold}, nil
	case MetricCosine:
		if threshold <= 0 {
			threshold = constants.DefaultCosineThreshold
		}
		return CosineComparator{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", metric)
	}
}

// EuclideanComparator matches faces whose L2 distance is within Tolerance.
// 0.6 is the usual tolerance for 128-dim dlib descriptors.
type EuclideanComparator struct {
	Tolerance float64
}

// Compare implements Comparator.
func (c EuclideanComparator) Compare(known []KnownFace, probe Embedding) []Comparison {
	out := make([]Comparison, len(known))
	for i, k := range known {
		d := EuclideanDistance(k.Embedding, probe)
		out[i] = Comparison{Matched: d <= c.Tolerance, Distance: d}
	}
	return out
}

// CosineComparator matches faces whose cosine distance is within Threshold.
type CosineComparator struct {
	Threshold float64
}

// Compare implements Comparator.
func (c CosineComparator) Compare(known []KnownFace, probe Embedding) []Comparison {
	out := make([]Comparison, len(known))
	for i, k := range known {
		d := CosineDistance(k.Embedding, probe)
		out[i] = Comparison{Matched: d <= c.Threshold, Distance: d}
	}
	return out
}

// EuclideanDistance computes the L2 distance between two vectors.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}
