package database

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBoutEnded is returned when ending or writing to a bout that already has an end time.
	ErrBoutEnded = errors.New("bout has already ended")
	// ErrAlreadyEnrolled is returned when the student is already in the class.
	ErrAlreadyEnrolled = errors.New("student already enrolled")
)
