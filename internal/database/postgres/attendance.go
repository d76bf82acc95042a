package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
// UNIQUE(student_id, bout_id) guarantees a single record per pair.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// InsertPresence inserts the record if absent and returns the stored one
func (r *AttendanceRepository) InsertPresence(ctx context.Context, studentID, boutID int64, ts time.Time) (*database.AttendanceRecord, bool, error) {
	rec := database.AttendanceRecord{StudentID: studentID, BoutID: boutID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance (student_id, bout_id, presence, register_time)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (student_id, bout_id) DO NOTHING
		RETURNING id, presence, register_time
	`, studentID, boutID, ts).Scan(&rec.ID, &rec.Presence, &rec.RegisterTime)
	if err == nil {
		return &rec, true, nil
	}
	if hasCode(err, codeForeignKeyViolation) {
		return nil, false, database.ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}

	// Conflict: the first write already exists.
	err = r.pool.QueryRow(ctx, `
		SELECT id, presence, register_time FROM attendance
		WHERE student_id = $1 AND bout_id = $2
	`, studentID, boutID).Scan(&rec.ID, &rec.Presence, &rec.RegisterTime)
	if err != nil {
		return nil, false, fmt.Errorf("query existing attendance: %w", err)
	}
	return &rec, false, nil
}

// InsertPresenceBatch inserts all missing records in one transaction
func (r *AttendanceRepository) InsertPresenceBatch(ctx context.Context, studentIDs []int64, boutID int64, ts time.Time) ([]database.AttendanceRecord, int, error) {
	if len(studentIDs) == 0 {
		return []database.AttendanceRecord{}, 0, nil
	}

	ids := slices.Clone(studentIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	byStudent := make(map[int64]database.AttendanceRecord, len(ids))
	var created int64
	err := r.pool.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (student_id, bout_id, presence, register_time)
			SELECT sid, $2::bigint, TRUE, $3::timestamptz FROM unnest($1::bigint[]) AS sid ORDER BY sid
			ON CONFLICT (student_id, bout_id) DO NOTHING
		`, pq.Array(ids), boutID, ts)
		if hasCode(err, codeForeignKeyViolation) {
			return database.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("insert attendance batch: %w", err)
		}
		if created, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("insert attendance batch: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, student_id, bout_id, presence, register_time FROM attendance
			WHERE bout_id = $1 AND student_id = ANY($2)
		`, boutID, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("query attendance batch: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var rec database.AttendanceRecord
			if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.BoutID, &rec.Presence, &rec.RegisterTime); err != nil {
				return fmt.Errorf("scan attendance: %w", err)
			}
			byStudent[rec.StudentID] = rec
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]database.AttendanceRecord, 0, len(studentIDs))
	for _, id := range studentIDs {
		if rec, ok := byStudent[id]; ok {
			out = append(out, rec)
		}
	}
	return out, int(created), nil
}

// ListByBout returns the bout's attendance with student names
func (r *AttendanceRepository) ListByBout(ctx context.Context, boutID int64) ([]database.AttendanceWithName, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.student_id, a.bout_id, a.presence, a.register_time, s.name
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE a.bout_id = $1
		ORDER BY a.register_time, a.id
	`, boutID)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceWithName
	for rows.Next() {
		var a database.AttendanceWithName
		if err := rows.Scan(&a.ID, &a.StudentID, &a.BoutID, &a.Presence, &a.RegisterTime, &a.StudentName); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return out, nil
}
