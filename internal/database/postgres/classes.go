package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ClassRepository provides PostgreSQL-backed class, enrollment and roster storage
type ClassRepository struct {
	pool *Pool
}

// NewClassRepository creates a new PostgreSQL class repository
func NewClassRepository(pool *Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

// CreateClass inserts a class
func (r *ClassRepository) CreateClass(ctx context.Context, description string) (*database.Class, error) {
	c := database.Class{Description: description}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO classes (description) VALUES ($1) RETURNING id, created_at
	`, description).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert class: %w", err)
	}
	return &c, nil
}

// GetClass retrieves a class by ID
func (r *ClassRepository) GetClass(ctx context.Context, id int64) (*database.Class, error) {
	var c database.Class
	err := r.pool.QueryRow(ctx, `
		SELECT id, description, created_at FROM classes WHERE id = $1
	`, id).Scan(&c.ID, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query class: %w", err)
	}
	return &c, nil
}

// ListClasses returns all classes ordered by ID
func (r *ClassRepository) ListClasses(ctx context.Context) ([]database.Class, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, description, created_at FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var out []database.Class
	for rows.Next() {
		var c database.Class
		if err := rows.Scan(&c.ID, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return out, nil
}

// Enroll links a student to a class
func (r *ClassRepository) Enroll(ctx context.Context, studentID, classID int64) (*database.Enrollment, error) {
	e := database.Enrollment{StudentID: studentID, ClassID: classID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO enrollments (student_id, class_id) VALUES ($1, $2) RETURNING id
	`, studentID, classID).Scan(&e.ID)
	switch {
	case hasCode(err, codeUniqueViolation):
		return nil, database.ErrAlreadyEnrolled
	case hasCode(err, codeForeignKeyViolation):
		return nil, database.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	return &e, nil
}

// GetEnrolledStudents returns the students enrolled in a class ordered by ID
func (r *ClassRepository) GetEnrolledStudents(ctx context.Context, classID int64) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.name, s.image_path, s.created_at
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.class_id = $1
		ORDER BY s.id
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}
