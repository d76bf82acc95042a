package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// BoutRepository provides PostgreSQL-backed bout storage
type BoutRepository struct {
	pool *Pool
}

// NewBoutRepository creates a new PostgreSQL bout repository
func NewBoutRepository(pool *Pool) *BoutRepository {
	return &BoutRepository{pool: pool}
}

// CreateBout starts a bout for a class
func (r *BoutRepository) CreateBout(ctx context.Context, classID int64, start time.Time) (*database.Bout, error) {
	b := database.Bout{ClassID: classID, StartTime: start}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bouts (class_id, start_time) VALUES ($1, $2) RETURNING id
	`, classID, start).Scan(&b.ID)
	if hasCode(err, codeForeignKeyViolation) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert bout: %w", err)
	}
	return &b, nil
}

// GetBout retrieves a bout by ID
func (r *BoutRepository) GetBout(ctx context.Context, id int64) (*database.Bout, error) {
	b, err := scanBout(r.pool.QueryRow(ctx, `
		SELECT id, class_id, start_time, end_time FROM bouts WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query bout: %w", err)
	}
	return b, nil
}

// EndBout sets the end time of an active bout
func (r *BoutRepository) EndBout(ctx context.Context, id int64, end time.Time) (*database.Bout, error) {
	b, err := scanBout(r.pool.QueryRow(ctx, `
		UPDATE bouts SET end_time = $2
		WHERE id = $1 AND end_time IS NULL
		RETURNING id, class_id, start_time, end_time
	`, id, end))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("end bout: %w", err)
	}

	// Nothing updated: either missing or already ended.
	if _, err := r.GetBout(ctx, id); err != nil {
		return nil, err
	}
	return nil, database.ErrBoutEnded
}

// ListBoutsByClass returns the bouts of a class ordered by start time
func (r *BoutRepository) ListBoutsByClass(ctx context.Context, classID int64) ([]database.Bout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, class_id, start_time, end_time FROM bouts
		WHERE class_id = $1
		ORDER BY start_time, id
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("query bouts: %w", err)
	}
	defer rows.Close()

	var out []database.Bout
	for rows.Next() {
		b, err := scanBout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bout: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bouts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBout(row rowScanner) (*database.Bout, error) {
	var b database.Bout
	var end sql.NullTime
	if err := row.Scan(&b.ID, &b.ClassID, &b.StartTime, &end); err != nil {
		return nil, err
	}
	if end.Valid {
		t := end.Time
		b.EndTime = &t
	}
	return &b, nil
}
