package analysis

import (
	"context"
	"log/slog"
	"time"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
)

// Observer is told about job state changes and absorbed poll errors.
type Observer interface {
	JobChanged(job domain.Job)
	PollFailed(job domain.Job, err error)
}

type nopObserver struct{}

func (nopObserver) JobChanged(domain.Job)        {}
func (nopObserver) PollFailed(domain.Job, error) {}

// ErrorLog records poll errors and terminal failures in the job error store
// so the reason outlives the tracker entry.
type ErrorLog struct {
	Repo    joberrors.Repository
	Log     *slog.Logger
	Timeout time.Duration
}

func NewErrorLog(repo joberrors.Repository, log *slog.Logger) *ErrorLog {
	if log == nil {
		log = slog.Default()
	}
	return &ErrorLog{Repo: repo, Log: log, Timeout: 5 * time.Second}
}

func (l *ErrorLog) JobChanged(job domain.Job) {
	if job.Status != domain.StatusFailed {
		return
	}
	l.Record(job.Handle, job.CaseID, joberrors.PhaseTerminal, job.Error)
}

func (l *ErrorLog) PollFailed(job domain.Job, err error) {
	l.Record(job.Handle, job.CaseID, joberrors.PhasePoll, err.Error())
}

// Record stores a single entry; storage failures are only logged.
func (l *ErrorLog) Record(handle domain.JobHandle, caseID int64, phase joberrors.Phase, msg string) {
	if l == nil || l.Repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()
	e := &joberrors.JobError{
		JobHandle: string(handle),
		CaseID:    caseID,
		Phase:     phase,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.Repo.Save(ctx, e); err != nil {
		l.Log.Error("failed to record job error", "handle", handle, "phase", phase, "error", err)
	}
}
