// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Upload constants
const (
	// MaxUploadSize is the maximum reference image upload size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MaxVideoUploadSize is the maximum video upload size in bytes (2GB)
	MaxVideoUploadSize = 2 << 30

	// MaxFrameSize is the largest accepted live frame message in bytes (16MB)
	MaxFrameSize = 16 << 20
)
