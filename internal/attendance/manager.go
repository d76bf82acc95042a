package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/video"
)

// RegistryBuilder turns a roster snapshot into known faces.
type RegistryBuilder interface {
	Build(ctx context.Context, roster []facematch.RosterEntry) (*facematch.Registry, error)
}

// VideoSampler recognizes students in a recorded video.
type VideoSampler interface {
	SampleAndMatch(ctx context.Context, path string, interval int, reg *facematch.Registry) (facematch.StudentSet, video.SampleStats, error)
}

// BatchResult is the outcome of processing one video for a bout.
type BatchResult struct {
	RecognizedStudents []int64
	TotalRecognized    int
	// ProcessedAt is when the attendance records were written.
	ProcessedAt time.Time
	Duration    time.Duration
	NewRecords  int
	Stats       video.SampleStats
}

// ManagerDeps are the collaborators of a Manager.
type ManagerDeps struct {
	Bouts   database.BoutStore
	Roster  database.RosterReader
	Builder RegistryBuilder
	Matcher FrameMatcher
	Sampler VideoSampler
	Ledger  *Ledger
	Hub     *Hub
}

// Manager owns the live controllers. A controller exists while at least one
// lease on its bout is held; all connections to the same bout share it.
type Manager struct {
	deps ManagerDeps
	now  func() time.Time

	mu   sync.Mutex
	live map[int64]*liveEntry
}

type liveEntry struct {
	ready chan struct{}
	ctrl  *Controller
	err   error
	refs  int
}

// NewManager creates a manager.
func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		deps: deps,
		now:  time.Now,
		live: make(map[int64]*liveEntry),
	}
}

// Hub returns the event hub controllers publish to.
func (m *Manager) Hub() *Hub { return m.deps.Hub }

// Ledger returns the attendance ledger.
func (m *Manager) Ledger() *Ledger { return m.deps.Ledger }

// Acquire returns the live controller of a bout, creating it on first use.
// The returned func releases the lease and must be called exactly once.
// Unknown bouts yield ErrBoutNotFound and ended bouts ErrSessionEnded.
func (m *Manager) Acquire(ctx context.Context, boutID int64) (*Controller, func(), error) {
	m.mu.Lock()
	e, ok := m.live[boutID]
	if ok {
		e.refs++
		m.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			m.release(boutID, e)
			return nil, nil, ctx.Err()
		}
		if e.err != nil {
			m.release(boutID, e)
			return nil, nil, e.err
		}
		if e.ctrl.State() == StateEnded {
			m.release(boutID, e)
			return nil, nil, ErrSessionEnded
		}
		return e.ctrl, m.releaser(boutID, e), nil
	}

	e = &liveEntry{ready: make(chan struct{}), refs: 1}
	m.live[boutID] = e
	m.mu.Unlock()

	// Built outside the lock so other bouts are not blocked on the face service.
	e.ctrl, e.err = m.newController(ctx, boutID)
	if e.err != nil {
		m.mu.Lock()
		if m.live[boutID] == e {
			delete(m.live, boutID)
		}
		m.mu.Unlock()
	}
	close(e.ready)

	if e.err != nil {
		m.release(boutID, e)
		return nil, nil, e.err
	}
	return e.ctrl, m.releaser(boutID, e), nil
}

func (m *Manager) releaser(boutID int64, e *liveEntry) func() {
	var once sync.Once
	return func() { once.Do(func() { m.release(boutID, e) }) }
}

func (m *Manager) release(boutID int64, e *liveEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs <= 0 && m.live[boutID] == e {
		delete(m.live, boutID)
	}
}

// Live reports whether a controller for the bout is held.
func (m *Manager) Live(boutID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[boutID]
	return ok
}

// activeBout loads a bout and rejects missing or ended ones.
func (m *Manager) activeBout(ctx context.Context, boutID int64) (*database.Bout, error) {
	bout, err := m.deps.Bouts.GetBout(ctx, boutID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrBoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bout %d: %w", boutID, err)
	}
	if bout.Ended() {
		return nil, ErrSessionEnded
	}
	return bout, nil
}

// buildRegistry snapshots the class roster and computes its known faces.
func (m *Manager) buildRegistry(ctx context.Context, bout *database.Bout) (*facematch.Registry, error) {
	students, err := m.deps.Roster.GetEnrolledStudents(ctx, bout.ClassID)
	if err != nil {
		return nil, fmt.Errorf("get roster for class %d: %w", bout.ClassID, err)
	}
	roster := make([]facematch.RosterEntry, len(students))
	for i, s := range students {
		roster[i] = facematch.RosterEntry{StudentID: s.ID, Name: s.Name, ImagePath: s.ImagePath}
	}

	reg, err := m.deps.Builder.Build(ctx, roster)
	if err != nil {
		return nil, err
	}
	log.Printf("bout %d: registry ready with %d of %d students", bout.ID, reg.Len(), len(roster))
	return reg, nil
}

func (m *Manager) newController(ctx context.Context, boutID int64) (*Controller, error) {
	bout, err := m.activeBout(ctx, boutID)
	if err != nil {
		return nil, err
	}
	reg, err := m.buildRegistry(ctx, bout)
	if err != nil {
		return nil, err
	}
	return NewController(bout, reg, m.deps.Matcher, m.deps.Ledger, m.deps.Bouts, m.deps.Hub), nil
}

// End ends a bout. A live controller is ended through its own lock so the
// frame in flight completes first; otherwise the store is updated directly.
func (m *Manager) End(ctx context.Context, boutID int64) (*database.Bout, error) {
	m.mu.Lock()
	e, ok := m.live[boutID]
	m.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err == nil {
			return e.ctrl.End(ctx)
		}
	}

	bout, err := m.deps.Bouts.EndBout(ctx, boutID, m.now())
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrBoutNotFound
	case errors.Is(err, database.ErrBoutEnded):
		return nil, ErrSessionEnded
	case err != nil:
		return nil, fmt.Errorf("end bout %d: %w", boutID, err)
	}
	publishEnded(m.deps.Hub, bout)
	return bout, nil
}

// ProcessVideo recognizes students in a recorded video and records them as
// present. Sampling completes before anything is written, and the writes
// happen in one transaction, so a failed run leaves no records behind.
func (m *Manager) ProcessVideo(ctx context.Context, boutID int64, path string, interval int) (BatchResult, error) {
	start := m.now()

	bout, err := m.activeBout(ctx, boutID)
	if err != nil {
		return BatchResult{}, err
	}
	reg, err := m.buildRegistry(ctx, bout)
	if err != nil {
		return BatchResult{}, err
	}

	seen, stats, err := m.deps.Sampler.SampleAndMatch(ctx, path, interval, reg)
	if err != nil {
		return BatchResult{}, fmt.Errorf("process video for bout %d: %w", boutID, err)
	}

	ids := seen.Sorted()
	ts := m.now()
	_, created, err := m.deps.Ledger.UpsertPresenceBatch(ctx, ids, boutID, ts)
	if err != nil {
		return BatchResult{}, err
	}

	log.Printf("bout %d: video processed, %d students recognized (%d new) in %d sampled frames",
		boutID, len(ids), created, stats.FramesSampled)

	return BatchResult{
		RecognizedStudents: ids,
		TotalRecognized:    len(ids),
		ProcessedAt:        ts,
		Duration:           ts.Sub(start),
		NewRecords:         created,
		Stats:              stats,
	}, nil
}
