package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentRepository provides PostgreSQL-backed student storage
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// CreateStudent inserts a student
func (r *StudentRepository) CreateStudent(ctx context.Context, name, imagePath string) (*database.Student, error) {
	s := database.Student{Name: name, ImagePath: imagePath}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO students (name, image_path)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, name, imagePath).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	return &s, nil
}

// GetStudent retrieves a student by ID
func (r *StudentRepository) GetStudent(ctx context.Context, id int64) (*database.Student, error) {
	var s database.Student
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, image_path, created_at FROM students WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.ImagePath, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &s, nil
}

// ListStudents returns all students ordered by ID
func (r *StudentRepository) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, image_path, created_at FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

// DeleteStudent removes a student; enrollments and attendance cascade
func (r *StudentRepository) DeleteStudent(ctx context.Context, id int64) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanStudents(rows *sql.Rows) ([]database.Student, error) {
	var out []database.Student
	for rows.Next() {
		var s database.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.ImagePath, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}
