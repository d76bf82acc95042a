package database

import (
	"time"
)

// Student is a person who can be enrolled in classes and recognized on camera.
type Student struct {
	ID        int64
	Name      string
	ImagePath string // reference image on disk, empty if none was uploaded
	CreatedAt time.Time
}

// Class groups students that attend the same bouts.
type Class struct {
	ID          int64
	Description string
	CreatedAt   time.Time
}

// Enrollment links a student to a class.
type Enrollment struct {
	ID        int64
	StudentID int64
	ClassID   int64
}

// Bout is one attendance-taking occasion of a class.
type Bout struct {
	ID        int64
	ClassID   int64
	StartTime time.Time
	EndTime   *time.Time // nil while the bout is active
}

// Ended reports whether the bout has been closed.
func (b *Bout) Ended() bool {
	return b.EndTime != nil
}

// AttendanceRecord marks a student present in a bout.
// At most one record exists per (StudentID, BoutID).
type AttendanceRecord struct {
	ID           int64
	StudentID    int64
	BoutID       int64
	Presence     bool
	RegisterTime time.Time // time of first recognition, never overwritten
}

// AttendanceWithName is an attendance record joined with the student's name.
type AttendanceWithName struct {
	AttendanceRecord
	StudentName string
}

// StoredReferenceEmbedding is a cached embedding of a student reference image.
type StoredReferenceEmbedding struct {
	ImageSHA256 string
	Model       string
	Embedding   []float32
	Dim         int
	CreatedAt   time.Time
}
