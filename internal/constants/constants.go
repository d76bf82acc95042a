// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultEuclideanTolerance is the maximum L2 distance for a face match.
	// Lower values = stricter matching
	DefaultEuclideanTolerance = 0.6

	// DefaultCosineThreshold is the maximum cosine distance for a face match
	DefaultCosineThreshold = 0.5

	// DefaultFrameScale is the factor live frames are downscaled by before detection
	DefaultFrameScale = 0.25
)

// Video sampling constants
const (
	// DefaultSampleInterval runs face matching on every Nth video frame
	DefaultSampleInterval = 30

	// ProgressReportInterval is how many frames pass between progress callbacks
	ProgressReportInterval = 10
)

// Face service constants
const (
	// DefaultFaceServiceURL is used when FACE_SERVICE_URL is not set
	DefaultFaceServiceURL = "http://localhost:8000"

	// DefaultFaceServiceTimeout bounds a single detection or embedding request
	DefaultFaceServiceTimeout = 30 * time.Second
)

// Storage constants
const (
	// DefaultStudentImageDir is where uploaded reference images are stored
	DefaultStudentImageDir = "students"

	// StudentImageJPEGQuality is the JPEG quality used when storing reference images
	StudentImageJPEGQuality = 85
)
