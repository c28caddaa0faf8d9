package analysis

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/roundsiq/internal/application"
	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

type entry struct {
	mu  sync.Mutex
	job domain.Job
	// done is set once job is terminal; readable without mu.
	done atomic.Bool
}

func (e *entry) finish(now time.Time) {
	e.job.FinishedAt = &now
	e.done.Store(true)
}

// Tracker maps job handles to their current lifecycle state.
// The map has its own lock and every entry is serialised by a lock of its own,
// so a slow commit on one job never blocks lookups of another.
type Tracker struct {
	mu      sync.RWMutex
	entries map[domain.JobHandle]*entry
	clock   application.Clock
	log     *slog.Logger
}

func NewTracker(clock application.Clock, log *slog.Logger) *Tracker {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		entries: make(map[domain.JobHandle]*entry),
		clock:   clock,
		log:     log,
	}
}

// Register creates a queued entry for handle. A live job with the same
// handle is a conflict; a finished one is replaced.
func (t *Tracker) Register(handle domain.JobHandle, caseID int64, clinicianID string) (domain.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[handle]; ok {
		if !old.done.Load() {
			return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrDuplicateJob, handle)
		}
		t.log.Info("handle reused, replacing finished job", "handle", handle, "case_id", caseID)
	}
	e := &entry{job: domain.Job{
		Handle:      handle,
		CaseID:      caseID,
		ClinicianID: clinicianID,
		Status:      domain.StatusQueued,
		SubmittedAt: t.clock.Now(),
	}}
	t.entries[handle] = e
	return e.job, nil
}

func (t *Tracker) lookup(handle domain.JobHandle) (*entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[handle]
	return e, ok
}

// Get returns a snapshot of the job; ok is false for unknown handles.
func (t *Tracker) Get(handle domain.JobHandle) (domain.Job, bool) {
	e, ok := t.lookup(handle)
	if !ok {
		return domain.Job{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, true
}

// Update advances the job to status. A terminal job is never changed and a
// non-terminal job never moves backwards; applied reports whether the update
// took effect.
func (t *Tracker) Update(handle domain.JobHandle, status domain.Status, payload *domain.Payload, detail string) (job domain.Job, applied bool, err error) {
	e, ok := t.lookup(handle)
	if !ok {
		return domain.Job{}, false, fmt.Errorf("%w: %s", domain.ErrJobNotFound, handle)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := t.clock.Now()
	if e.job.Status.Terminal() {
		t.log.Debug("ignoring update of finished job",
			"handle", handle, "status", e.job.Status, "update", status)
		return e.job, false, nil
	}
	if status != domain.StatusCancelled {
		e.job.LastPolledAt = &now
		e.job.Polls++
	}
	if !e.job.Status.CanAdvanceTo(status) {
		return e.job, false, nil
	}
	e.job.Status = status
	if payload != nil {
		p := *payload
		e.job.Payload = &p
	}
	if detail != "" {
		e.job.Error = detail
	}
	if status.Terminal() {
		e.finish(now)
	}
	return e.job, true, nil
}

// Settle delivers a completed payload exactly once. Under the entry lock it
// runs commit and marks the job completed, or failed when commit returns an
// error. If the job is already terminal commit is not called.
func (t *Tracker) Settle(handle domain.JobHandle, payload domain.Payload, commit func(domain.Job) (domain.ResultID, error)) (job domain.Job, applied bool, err error) {
	e, ok := t.lookup(handle)
	if !ok {
		return domain.Job{}, false, fmt.Errorf("%w: %s", domain.ErrJobNotFound, handle)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status.Terminal() {
		t.log.Debug("dropping payload for finished job", "handle", handle, "status", e.job.Status)
		return e.job, false, nil
	}

	now := t.clock.Now()
	e.job.LastPolledAt = &now
	e.job.Polls++
	p := payload
	e.job.Payload = &p

	id, cerr := commit(e.job)
	e.finish(t.clock.Now())
	if cerr != nil {
		e.job.Status = domain.StatusFailed
		e.job.Error = cerr.Error()
		return e.job, true, cerr
	}
	e.job.Status = domain.StatusCompleted
	e.job.ResultID = id
	return e.job, true, nil
}

// Evict drops the entry for handle. Later lookups report not found.
func (t *Tracker) Evict(handle domain.JobHandle) {
	t.mu.Lock()
	delete(t.entries, handle)
	t.mu.Unlock()
}

// Prune evicts terminal jobs that finished before cutoff and returns how many went.
// Entry locks are taken without holding the map lock, so a job busy in
// Settle delays only this sweep.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.RLock()
	snapshot := make(map[domain.JobHandle]*entry, len(t.entries))
	for h, e := range t.entries {
		snapshot[h] = e
	}
	t.mu.RUnlock()

	var stale []domain.JobHandle
	for h, e := range snapshot {
		if !e.done.Load() {
			continue
		}
		e.mu.Lock()
		old := e.job.FinishedAt != nil && e.job.FinishedAt.Before(cutoff)
		e.mu.Unlock()
		if old {
			stale = append(stale, h)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, h := range stale {
		// a reused handle may have been registered again meanwhile
		if t.entries[h] == snapshot[h] {
			delete(t.entries, h)
			n++
		}
	}
	return n
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
