// Package progress owns the shared batch state. The coordinator goroutine
// is the only writer; HTTP handlers read through copied snapshots.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/studysmart/lesson-engine/internal/domain"
)

// Tracker is a mutex-guarded container for the live BatchProgress.
type Tracker struct {
	mu  sync.Mutex
	cur domain.BatchProgress
	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		cur: domain.BatchProgress{Status: domain.StatusIdle},
		now: time.Now,
	}
}

// Begin arms the tracker for a new run. It enforces the status machine:
// a run may only start from idle or a terminal state, never while another
// run is processing.
func (t *Tracker) Begin(runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.Status == domain.StatusProcessing {
		return fmt.Errorf("%w: run %s still in progress", domain.ErrBatchRunning, t.cur.RunID)
	}

	t.cur = domain.BatchProgress{
		RunID:     runID,
		Status:    domain.StatusProcessing,
		StartedAt: t.now(),
	}
	return nil
}

func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.LessonsGenerated++
}

func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.LessonsFailed++
}

func (t *Tracker) AddResult(result domain.MappingResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Results = append(t.cur.Results, result)
}

// Complete freezes the run in the completed state and records the final
// runtime. A deadline-stopped run still completes with partial results.
func (t *Tracker) Complete() {
	t.finish(domain.StatusCompleted)
}

// Fail freezes the run in the error state.
func (t *Tracker) Fail() {
	t.finish(domain.StatusError)
}

func (t *Tracker) finish(status domain.BatchStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.Status != domain.StatusProcessing {
		return
	}
	t.cur.Status = status
	t.cur.RuntimeSeconds = t.now().Sub(t.cur.StartedAt).Seconds()
}

// StartedAt returns the start timestamp of the current run.
func (t *Tracker) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur.StartedAt
}

// Snapshot returns a copy of the current progress. While a run is
// processing, the runtime is computed from the start timestamp; once the
// run reaches a terminal state the recorded runtime is frozen.
func (t *Tracker) Snapshot() domain.BatchProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.cur
	snap.Results = make([]domain.MappingResult, len(t.cur.Results))
	copy(snap.Results, t.cur.Results)

	if snap.Status == domain.StatusProcessing {
		snap.RuntimeSeconds = t.now().Sub(snap.StartedAt).Seconds()
	}
	return snap
}
