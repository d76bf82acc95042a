package postgres

import "github.com/kozaktomas/face-attendance/internal/database"

// Store combines every PostgreSQL repository into a database.Store.
type Store struct {
	*StudentRepository
	*ClassRepository
	*BoutRepository
	*AttendanceRepository
	*ReferenceEmbeddingRepository
}

// NewStore creates all repositories over one pool
func NewStore(pool *Pool) *Store {
	return &Store{
		StudentRepository:            NewStudentRepository(pool),
		ClassRepository:              NewClassRepository(pool),
		BoutRepository:               NewBoutRepository(pool),
		AttendanceRepository:         NewAttendanceRepository(pool),
		ReferenceEmbeddingRepository: NewReferenceEmbeddingRepository(pool),
	}
}

var _ database.Store = (*Store)(nil)
