package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
)

// ErrShutdown is returned by Submit once the orchestrator has been shut down.
var ErrShutdown = errors.New("analysis orchestrator is shut down")

// PollPolicy controls the polling loop of a queued job.
type PollPolicy struct {
	Interval time.Duration
	// MaxPolls caps the number of status checks per job; 0 means unbounded.
	MaxPolls int
	// MaxConsecutiveErrors caps back-to-back failed polls; 0 means unbounded.
	MaxConsecutiveErrors int
	// MaxBackoff caps the wait after failed polls.
	MaxBackoff time.Duration
}

// DefaultPollPolicy polls every 3 seconds for up to 20 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:             3 * time.Second,
		MaxPolls:             400,
		MaxConsecutiveErrors: 20,
		MaxBackoff:           30 * time.Second,
	}
}

// Delay returns the wait before the next poll after errs consecutive failures.
func (p PollPolicy) Delay(errs int) time.Duration {
	d := p.Interval
	if d <= 0 {
		d = DefaultPollPolicy().Interval
	}
	ceiling := p.MaxBackoff
	if ceiling < d {
		ceiling = d
	}
	for i := 0; i < errs && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}

// Dependencies wires the orchestrator to its collaborators.
type Dependencies struct {
	Client      domain.Client
	Cases       cases.Repository
	Attachments *AttachmentLoader
	Tracker     *Tracker
	Persister   *Persister
	ErrorLog    *ErrorLog
	Observer    Observer
	Logger      *slog.Logger
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator submits queued analyses and drives each one to a terminal
// state on its own goroutine.
type Orchestrator struct {
	client      domain.Client
	cases       cases.Repository
	attachments *AttachmentLoader
	tracker     *Tracker
	persister   *Persister
	errlog      *ErrorLog
	observer    Observer
	policy      PollPolicy
	log         *slog.Logger

	base context.Context
	stop context.CancelFunc

	mu   sync.Mutex
	runs map[domain.JobHandle]*run
	wg   sync.WaitGroup
}

func NewOrchestrator(deps Dependencies, policy PollPolicy) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = NewTracker(nil, log)
	}
	var observer Observer = nopObserver{}
	if deps.Observer != nil {
		observer = deps.Observer
	}
	if policy.Interval <= 0 {
		policy.Interval = DefaultPollPolicy().Interval
	}

	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		client:      deps.Client,
		cases:       deps.Cases,
		attachments: deps.Attachments,
		tracker:     tracker,
		persister:   deps.Persister,
		errlog:      deps.ErrorLog,
		observer:    observer,
		policy:      policy,
		log:         log.With("component", "orchestrator"),
		base:        base,
		stop:        stop,
		runs:        make(map[domain.JobHandle]*run),
	}
}

// Tracker exposes the job registry.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// Accepting reports whether Submit still takes new jobs.
func (o *Orchestrator) Accepting() bool { return o.base.Err() == nil }

// Submit queues an analysis of the case and starts polling it in the
// background. It returns as soon as the service has issued a job handle.
func (o *Orchestrator) Submit(ctx context.Context, clinician domain.Clinician, caseID int64) (domain.Job, error) {
	if o.base.Err() != nil {
		return domain.Job{}, ErrShutdown
	}

	c, err := o.cases.Get(ctx, caseID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("load case %d: %w", caseID, err)
	}
	if !c.HasContent() {
		return domain.Job{}, fmt.Errorf("%w: case %d has no clinical note", domain.ErrInvalidRequest, caseID)
	}

	sub, err := buildSubmission(ctx, c, clinician, o.attachments)
	if err != nil {
		return domain.Job{}, err
	}

	handle, err := o.client.SubmitQueued(ctx, sub)
	if err != nil {
		o.errlog.Record("", caseID, joberrors.PhaseSubmit, err.Error())
		return domain.Job{}, fmt.Errorf("queue analysis for case %d: %w", caseID, err)
	}

	job, err := o.tracker.Register(handle, caseID, clinician.ID)
	if err != nil {
		return domain.Job{}, err
	}
	o.log.Info("analysis queued", "handle", handle, "case_id", caseID, "clinician", clinician.ID)
	o.notify(job)

	o.start(handle, PersistRequest{Clinician: clinician, CaseID: caseID, Handle: handle})
	return job, nil
}

func (o *Orchestrator) start(handle domain.JobHandle, req PersistRequest) {
	ctx, cancel := context.WithCancel(o.base)
	r := &run{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.runs[handle] = r
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			cancel()
			o.mu.Lock()
			if o.runs[handle] == r {
				delete(o.runs, handle)
			}
			o.mu.Unlock()
			close(r.done)
		}()
		o.poll(ctx, req)
	}()
}

// poll is the per-job loop. Polls are strictly sequential; errors while
// polling never change the job state unless a cap is reached.
func (o *Orchestrator) poll(ctx context.Context, req PersistRequest) {
	handle := req.Handle
	log := o.log.With("handle", handle, "case_id", req.CaseID)
	last := domain.StatusQueued
	errs := 0

	for polls := 0; ; {
		timer := time.NewTimer(o.policy.Delay(errs))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if o.policy.MaxPolls > 0 && polls >= o.policy.MaxPolls {
			o.fail(handle, fmt.Sprintf("no result after %d status checks", polls))
			return
		}
		polls++

		resp, err := o.client.PollStatus(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errs++
			log.Warn("poll failed, retrying", "attempt", polls, "consecutive_errors", errs, "error", err)
			if job, ok := o.tracker.Get(handle); ok {
				o.observer.PollFailed(job, err)
				o.errlog.PollFailed(job, err)
			}
			if o.policy.MaxConsecutiveErrors > 0 && errs >= o.policy.MaxConsecutiveErrors {
				o.fail(handle, fmt.Sprintf("gave up after %d consecutive poll errors: %v", errs, err))
				return
			}
			continue
		}
		errs = 0

		switch resp.Status {
		case domain.StatusQueued, domain.StatusProcessing:
			job, _, err := o.tracker.Update(handle, resp.Status, nil, "")
			if err != nil {
				log.Warn("job no longer tracked, stopping", "error", err)
				return
			}
			if job.Status.Terminal() {
				return
			}
			if job.Status != last {
				last = job.Status
				o.notify(job)
			}

		case domain.StatusCompleted:
			o.complete(ctx, req, resp.Payload)
			return

		case domain.StatusFailed:
			detail := resp.Error
			if detail == "" {
				detail = "analysis service reported the job as failed"
			}
			o.fail(handle, detail)
			return
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context, req PersistRequest, payload *domain.Payload) {
	if payload != nil {
		req.Payload = *payload
	}
	// A commit in progress must not be torn down by shutdown.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	job, applied, err := o.tracker.Settle(req.Handle, req.Payload, func(domain.Job) (domain.ResultID, error) {
		r, err := o.persister.Persist(pctx, req)
		if err != nil {
			return "", err
		}
		return r.ID, nil
	})
	if !applied {
		o.log.Info("late result dropped", "handle", req.Handle, "status", job.Status)
		return
	}
	if err != nil {
		o.log.Error("analysis result not saved", "handle", req.Handle, "case_id", req.CaseID, "error", err)
		// recorded once, as a persist error
		o.errlog.Record(req.Handle, req.CaseID, joberrors.PhasePersist, err.Error())
		o.observer.JobChanged(job)
		return
	}
	o.log.Info("analysis completed", "handle", req.Handle, "case_id", req.CaseID, "result_id", job.ResultID)
	o.notify(job)
}

func (o *Orchestrator) fail(handle domain.JobHandle, reason string) {
	job, applied, err := o.tracker.Update(handle, domain.StatusFailed, nil, reason)
	if err != nil || !applied {
		return
	}
	o.log.Warn("analysis failed", "handle", handle, "reason", reason)
	o.notify(job)
}

// notify tells the observer and the error log about a state change.
func (o *Orchestrator) notify(job domain.Job) {
	o.observer.JobChanged(job)
	o.errlog.JobChanged(job)
}

// Job returns the current state of a tracked job.
func (o *Orchestrator) Job(handle domain.JobHandle) (domain.Job, error) {
	job, ok := o.tracker.Get(handle)
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, handle)
	}
	return job, nil
}

// Cancel stops polling the job locally. The service is not contacted, so it
// may still finish the work; that late result is dropped.
func (o *Orchestrator) Cancel(handle domain.JobHandle) (domain.Job, error) {
	job, applied, err := o.tracker.Update(handle, domain.StatusCancelled, nil, "cancelled by client")
	if err != nil {
		return domain.Job{}, err
	}

	o.mu.Lock()
	r := o.runs[handle]
	o.mu.Unlock()
	if r != nil {
		r.cancel()
	}

	if applied {
		o.log.Info("analysis cancelled", "handle", handle)
		o.notify(job)
	}
	return job, nil
}

// Wait blocks until the job's polling loop has exited or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, handle domain.JobHandle) (domain.Job, error) {
	o.mu.Lock()
	r := o.runs[handle]
	o.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		}
	}
	return o.Job(handle)
}

// Shutdown stops every polling loop and waits for them to exit.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
