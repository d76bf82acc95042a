package attendance

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type ledgerKey struct {
	studentID int64
	boutID    int64
}

func compareKeys(a, b ledgerKey) int {
	return cmp.Or(cmp.Compare(a.boutID, b.boutID), cmp.Compare(a.studentID, b.studentID))
}

// Ledger records presence. At most one record exists per (student, bout) and
// the register time of the first write is kept forever.
type Ledger struct {
	store database.AttendanceStore
	locks keyedMutex[ledgerKey]
}

// NewLedger creates a ledger over an attendance store.
func NewLedger(store database.AttendanceStore) *Ledger {
	return &Ledger{store: store}
}

// UpsertPresence marks the student present in the bout. The returned bool
// reports whether a new record was created. Calls for the same key are
// serialized; calls for different keys run concurrently.
func (l *Ledger) UpsertPresence(ctx context.Context, studentID, boutID int64, ts time.Time) (database.AttendanceRecord, bool, error) {
	unlock := l.locks.Lock(ledgerKey{studentID, boutID})
	defer unlock()

	rec, created, err := l.store.InsertPresence(ctx, studentID, boutID, ts)
	if err != nil {
		return database.AttendanceRecord{}, false, fmt.Errorf("upsert presence student=%d bout=%d: %w", studentID, boutID, err)
	}
	return *rec, created, nil
}

// UpsertPresenceBatch marks every student present in one storage transaction.
// Either all records are written or none are. Returns the number of new records.
func (l *Ledger) UpsertPresenceBatch(ctx context.Context, studentIDs []int64, boutID int64, ts time.Time) ([]database.AttendanceRecord, int, error) {
	keys := make([]ledgerKey, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, ledgerKey{id, boutID})
	}
	slices.SortFunc(keys, compareKeys)
	keys = slices.Compact(keys)

	// Sorted acquisition keeps concurrent batches from deadlocking.
	for _, k := range keys {
		unlock := l.locks.Lock(k)
		defer unlock()
	}

	ids := make([]int64, len(keys))
	for i, k := range keys {
		ids[i] = k.studentID
	}
	recs, created, err := l.store.InsertPresenceBatch(ctx, ids, boutID, ts)
	if err != nil {
		return nil, 0, fmt.Errorf("upsert presence batch bout=%d: %w", boutID, err)
	}
	return recs, created, nil
}

// ListByBout returns the bout's attendance with student names.
func (l *Ledger) ListByBout(ctx context.Context, boutID int64) ([]database.AttendanceWithName, error) {
	list, err := l.store.ListByBout(ctx, boutID)
	if err != nil {
		return nil, fmt.Errorf("list attendance bout=%d: %w", boutID, err)
	}
	return list, nil
}
