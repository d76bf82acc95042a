package database

import (
	"context"
	"time"
)

// StudentStore provides access to students
type StudentStore interface {
	// CreateStudent inserts a student and returns it with its ID assigned
	CreateStudent(ctx context.Context, name, imagePath string) (*Student, error)
	// GetStudent returns ErrNotFound if the student does not exist
	GetStudent(ctx context.Context, id int64) (*Student, error)
	// ListStudents returns all students ordered by ID
	ListStudents(ctx context.Context) ([]Student, error)
	// DeleteStudent removes the student with its enrollments and attendance.
	// Returns ErrNotFound if the student does not exist.
	DeleteStudent(ctx context.Context, id int64) error
}

// ClassStore provides access to classes and enrollments
type ClassStore interface {
	CreateClass(ctx context.Context, description string) (*Class, error)
	// GetClass returns ErrNotFound if the class does not exist
	GetClass(ctx context.Context, id int64) (*Class, error)
	ListClasses(ctx context.Context) ([]Class, error)
	// Enroll returns ErrNotFound if either side is missing and ErrAlreadyEnrolled on duplicates
	Enroll(ctx context.Context, studentID, classID int64) (*Enrollment, error)
}

// RosterReader lists the students enrolled in a class
type RosterReader interface {
	// GetEnrolledStudents returns the enrolled students ordered by student ID
	GetEnrolledStudents(ctx context.Context, classID int64) ([]Student, error)
}

// BoutStore provides access to bouts
type BoutStore interface {
	// CreateBout returns ErrNotFound if the class does not exist
	CreateBout(ctx context.Context, classID int64, start time.Time) (*Bout, error)
	// GetBout returns ErrNotFound if the bout does not exist
	GetBout(ctx context.Context, id int64) (*Bout, error)
	// EndBout sets the end time once. Returns ErrNotFound or ErrBoutEnded.
	EndBout(ctx context.Context, id int64, end time.Time) (*Bout, error)
	// ListBoutsByClass returns the bouts of a class ordered by start time
	ListBoutsByClass(ctx context.Context, classID int64) ([]Bout, error)
}

// AttendanceStore persists attendance records
type AttendanceStore interface {
	// InsertPresence creates the record for (studentID, boutID) if absent.
	// The returned bool reports whether a new row was written. An existing
	// record keeps its original register time.
	InsertPresence(ctx context.Context, studentID, boutID int64, ts time.Time) (*AttendanceRecord, bool, error)
	// InsertPresenceBatch does the same for many students in one transaction.
	// Returns the records in the order of studentIDs and the number of new rows.
	InsertPresenceBatch(ctx context.Context, studentIDs []int64, boutID int64, ts time.Time) ([]AttendanceRecord, int, error)
	// ListByBout returns the bout's records with student names, ordered by register time
	ListByBout(ctx context.Context, boutID int64) ([]AttendanceWithName, error)
}

// ReferenceEmbeddingStore caches reference image embeddings keyed by image hash and model
type ReferenceEmbeddingStore interface {
	// GetReferenceEmbedding returns nil if not cached
	GetReferenceEmbedding(ctx context.Context, imageSHA256, model string) (*StoredReferenceEmbedding, error)
	SaveReferenceEmbedding(ctx context.Context, emb StoredReferenceEmbedding) error
}

// Store bundles every storage interface the application needs
type Store interface {
	StudentStore
	ClassStore
	RosterReader
	BoutStore
	AttendanceStore
	ReferenceEmbeddingStore
}
