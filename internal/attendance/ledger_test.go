package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func TestLedger_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	ledger := NewLedger(store)

	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rec, created, err := ledger.UpsertPresence(ctx, 1, 10, first)
	if err != nil || !created {
		t.Fatalf("expected new record, got created=%v err=%v", created, err)
	}

	again, created, err := ledger.UpsertPresence(ctx, 1, 10, first.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected existing record")
	}
	if !again.RegisterTime.Equal(first) || again.ID != rec.ID {
		t.Errorf("register time overwritten: %+v", again)
	}
	if !again.Presence {
		t.Error("expected presence true")
	}
	if store.AttendanceCount() != 1 {
		t.Errorf("expected 1 record, got %d", store.AttendanceCount())
	}
}

func TestLedger_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	ledger := NewLedger(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := ledger.UpsertPresence(ctx, 7, 3, time.Now())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if isNew {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("expected exactly one creation, got %d", created)
	}
	if store.AttendanceCount() != 1 {
		t.Errorf("expected 1 record, got %d", store.AttendanceCount())
	}
	if ledger.locks.size() != 0 {
		t.Errorf("expected lock table to drain, got %d", ledger.locks.size())
	}
}

func TestLedger_Batch(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	ledger := NewLedger(store)

	if _, _, err := ledger.UpsertPresence(ctx, 2, 5, time.Now()); err != nil {
		t.Fatal(err)
	}

	recs, created, err := ledger.UpsertPresenceBatch(ctx, []int64{3, 2, 1, 3}, 5, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 2 {
		t.Errorf("expected 2 new records, got %d", created)
	}
	if len(recs) != 3 {
		t.Errorf("expected 3 records after dedup, got %d", len(recs))
	}
	if store.AttendanceCount() != 3 {
		t.Errorf("expected 3 stored records, got %d", store.AttendanceCount())
	}
}

func TestLedger_BatchFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()
	store.BatchError = errors.New("tx aborted")
	ledger := NewLedger(store)

	if _, _, err := ledger.UpsertPresenceBatch(ctx, []int64{1, 2}, 5, time.Now()); err == nil {
		t.Fatal("expected error")
	}
	if store.AttendanceCount() != 0 {
		t.Errorf("expected no records, got %d", store.AttendanceCount())
	}
}
