// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type attendanceKey struct {
	studentID int64
	boutID    int64
}

type refKey struct {
	sha   string
	model string
}

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu          sync.RWMutex
	nextID      int64
	students    map[int64]*database.Student
	classes     map[int64]*database.Class
	enrollments []database.Enrollment
	bouts       map[int64]*database.Bout
	attendance  map[attendanceKey]*database.AttendanceRecord
	references  map[refKey]database.StoredReferenceEmbedding

	// Error injection
	InsertPresenceError error
	BatchError          error
	GetBoutError        error
	RosterError         error

	// Call counters
	InsertPresenceCalls int
	BatchCalls          int
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		students:   make(map[int64]*database.Student),
		classes:    make(map[int64]*database.Class),
		bouts:      make(map[int64]*database.Bout),
		attendance: make(map[attendanceKey]*database.AttendanceRecord),
		references: make(map[refKey]database.StoredReferenceEmbedding),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateStudent stores a new student
func (m *MockStore) CreateStudent(ctx context.Context, name, imagePath string) (*database.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &database.Student{ID: m.id(), Name: name, ImagePath: imagePath, CreatedAt: time.Now()}
	m.students[s.ID] = s
	cp := *s
	return &cp, nil
}

// GetStudent retrieves a student by ID
func (m *MockStore) GetStudent(ctx context.Context, id int64) (*database.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListStudents returns all students ordered by ID
func (m *MockStore) ListStudents(ctx context.Context) ([]database.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b database.Student) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// DeleteStudent removes a student with its enrollments and attendance
func (m *MockStore) DeleteStudent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.students, id)
	m.enrollments = slices.DeleteFunc(m.enrollments, func(e database.Enrollment) bool { return e.StudentID == id })
	for k := range m.attendance {
		if k.studentID == id {
			delete(m.attendance, k)
		}
	}
	return nil
}

// CreateClass stores a new class
func (m *MockStore) CreateClass(ctx context.Context, description string) (*database.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &database.Class{ID: m.id(), Description: description, CreatedAt: time.Now()}
	m.classes[c.ID] = c
	cp := *c
	return &cp, nil
}

// GetClass retrieves a class by ID
func (m *MockStore) GetClass(ctx context.Context, id int64) (*database.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListClasses returns all classes ordered by ID
func (m *MockStore) ListClasses(ctx context.Context) ([]database.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b database.Class) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Enroll links a student to a class
func (m *MockStore) Enroll(ctx context.Context, studentID, classID int64) (*database.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return nil, database.ErrNotFound
	}
	if _, ok := m.classes[classID]; !ok {
		return nil, database.ErrNotFound
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.ClassID == classID {
			return nil, database.ErrAlreadyEnrolled
		}
	}
	e := database.Enrollment{ID: m.id(), StudentID: studentID, ClassID: classID}
	m.enrollments = append(m.enrollments, e)
	return &e, nil
}

// GetEnrolledStudents returns the students of a class ordered by ID
func (m *MockStore) GetEnrolledStudents(ctx context.Context, classID int64) ([]database.Student, error) {
	if m.RosterError != nil {
		return nil, m.RosterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Student
	for _, e := range m.enrollments {
		if e.ClassID != classID {
			continue
		}
		if s, ok := m.students[e.StudentID]; ok {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b database.Student) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateBout starts a new bout for a class
func (m *MockStore) CreateBout(ctx context.Context, classID int64, start time.Time) (*database.Bout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[classID]; !ok {
		return nil, database.ErrNotFound
	}
	b := &database.Bout{ID: m.id(), ClassID: classID, StartTime: start}
	m.bouts[b.ID] = b
	cp := *b
	return &cp, nil
}

// AddBout inserts a bout directly, bypassing the class check
func (m *MockStore) AddBout(b database.Bout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bouts[b.ID] = &b
	if b.ID > m.nextID {
		m.nextID = b.ID
	}
}

// GetBout retrieves a bout by ID
func (m *MockStore) GetBout(ctx context.Context, id int64) (*database.Bout, error) {
	if m.GetBoutError != nil {
		return nil, m.GetBoutError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bouts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// EndBout sets the bout end time once
func (m *MockStore) EndBout(ctx context.Context, id int64, end time.Time) (*database.Bout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bouts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if b.EndTime != nil {
		return nil, database.ErrBoutEnded
	}
	b.EndTime = &end
	cp := *b
	return &cp, nil
}

// ListBoutsByClass returns the bouts of a class ordered by start time
func (m *MockStore) ListBoutsByClass(ctx context.Context, classID int64) ([]database.Bout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Bout
	for _, b := range m.bouts {
		if b.ClassID == classID {
			out = append(out, *b)
		}
	}
	slices.SortFunc(out, func(a, b database.Bout) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// insertLocked writes a record if absent. Caller holds m.mu.
func (m *MockStore) insertLocked(studentID, boutID int64, ts time.Time) (database.AttendanceRecord, bool) {
	k := attendanceKey{studentID, boutID}
	if r, ok := m.attendance[k]; ok {
		return *r, false
	}
	r := &database.AttendanceRecord{ID: m.id(), StudentID: studentID, BoutID: boutID, Presence: true, RegisterTime: ts}
	m.attendance[k] = r
	return *r, true
}

// InsertPresence creates the attendance record if absent
func (m *MockStore) InsertPresence(ctx context.Context, studentID, boutID int64, ts time.Time) (*database.AttendanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertPresenceCalls++
	if m.InsertPresenceError != nil {
		return nil, false, m.InsertPresenceError
	}
	r, created := m.insertLocked(studentID, boutID, ts)
	return &r, created, nil
}

// InsertPresenceBatch creates all records atomically
func (m *MockStore) InsertPresenceBatch(ctx context.Context, studentIDs []int64, boutID int64, ts time.Time) ([]database.AttendanceRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchCalls++
	if m.BatchError != nil {
		return nil, 0, m.BatchError
	}
	out := make([]database.AttendanceRecord, 0, len(studentIDs))
	created := 0
	for _, id := range studentIDs {
		r, isNew := m.insertLocked(id, boutID, ts)
		if isNew {
			created++
		}
		out = append(out, r)
	}
	return out, created, nil
}

// ListByBout returns the bout's records with student names
func (m *MockStore) ListByBout(ctx context.Context, boutID int64) ([]database.AttendanceWithName, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.AttendanceWithName
	for k, r := range m.attendance {
		if k.boutID != boutID {
			continue
		}
		row := database.AttendanceWithName{AttendanceRecord: *r}
		if s, ok := m.students[k.studentID]; ok {
			row.StudentName = s.Name
		}
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b database.AttendanceWithName) int {
		return cmp.Or(a.RegisterTime.Compare(b.RegisterTime), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// AttendanceCount returns the number of stored attendance records
func (m *MockStore) AttendanceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.attendance)
}

// GetReferenceEmbedding returns the cached embedding or nil
func (m *MockStore) GetReferenceEmbedding(ctx context.Context, imageSHA256, model string) (*database.StoredReferenceEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.references[refKey{imageSHA256, model}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// SaveReferenceEmbedding caches an embedding
func (m *MockStore) SaveReferenceEmbedding(ctx context.Context, emb database.StoredReferenceEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	emb.CreatedAt = time.Now()
	m.references[refKey{emb.ImageSHA256, emb.Model}] = emb
	return nil
}

var _ database.Store = (*MockStore)(nil)
