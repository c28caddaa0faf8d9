package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type pollStep struct {
	resp domain.PollResponse
	err  error
}

func processing() pollStep { return pollStep{resp: domain.PollResponse{Status: domain.StatusProcessing}} }

func completed(full string) pollStep {
	return pollStep{resp: domain.PollResponse{
		Status:  domain.StatusCompleted,
		Payload: &domain.Payload{FullResponse: full},
	}}
}

// fakeClient replays steps in order and repeats the last one.
type fakeClient struct {
	mu        sync.Mutex
	handle    domain.JobHandle
	submitErr error
	steps     []pollStep
	polls     int
	submitted []domain.Submission

	// when gate is set every poll announces itself on started and blocks on gate
	gate    chan struct{}
	started chan struct{}

	blockingPayload domain.Payload
	blockingErr     error
	blockingTimeout time.Duration
}

func (f *fakeClient) SubmitQueued(_ context.Context, sub domain.Submission) (domain.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sub)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.handle, nil
}

func (f *fakeClient) PollStatus(_ context.Context, _ domain.JobHandle) (domain.PollResponse, error) {
	f.mu.Lock()
	i := f.polls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.polls++
	step := f.steps[i]
	f.mu.Unlock()

	if f.gate != nil {
		f.started <- struct{}{}
		<-f.gate
	}
	return step.resp, step.err
}

func (f *fakeClient) SubmitBlocking(_ context.Context, sub domain.Submission, timeout time.Duration) (domain.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sub)
	f.blockingTimeout = timeout
	return f.blockingPayload, f.blockingErr
}

func (f *fakeClient) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeClient) submissions() []domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Submission(nil), f.submitted...)
}

type memCases struct {
	byID map[int64]*cases.Case
}

func newMemCases(cs ...*cases.Case) *memCases {
	m := &memCases{byID: map[int64]*cases.Case{}}
	for _, c := range cs {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memCases) Save(_ context.Context, c *cases.Case) error {
	c.ID = int64(len(m.byID) + 1)
	m.byID[c.ID] = c
	return nil
}

func (m *memCases) Get(_ context.Context, id int64) (*cases.Case, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("case %d: %w", id, cases.ErrNotFound)
	}
	return c, nil
}

type memResults struct {
	mu      sync.Mutex
	saved   []*domain.Result
	saveErr error
}

func (m *memResults) Save(_ context.Context, r *domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memResults) LatestByCase(_ context.Context, caseID int64) (*domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].CaseID == caseID {
			return m.saved[i], nil
		}
	}
	return nil, domain.ErrNoResult
}

func (m *memResults) ListByCase(_ context.Context, caseID int64, page, pageSize int) (domain.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Result
	for _, r := range m.saved {
		if r.CaseID == caseID {
			out = append(out, r)
		}
	}
	return domain.Page{Data: out, Page: page, PageSize: pageSize, Total: int64(len(out)), TotalPages: 1}, nil
}

func (m *memResults) all() []*domain.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Result(nil), m.saved...)
}

type memJobErrors struct {
	mu      sync.Mutex
	entries []*joberrors.JobError
}

func (m *memJobErrors) Save(_ context.Context, e *joberrors.JobError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJobErrors) ListByJob(_ context.Context, handle string, _ int) ([]*joberrors.JobError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*joberrors.JobError
	for _, e := range m.entries {
		if e.JobHandle == handle {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memJobErrors) ListByCase(_ context.Context, caseID int64, _ int) ([]*joberrors.JobError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*joberrors.JobError
	for _, e := range m.entries {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memJobErrors) phases() []joberrors.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]joberrors.Phase, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Phase)
	}
	return out
}

type memStore map[string][]byte

func (m memStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	data, ok := m[handle]
	if !ok {
		return nil, fmt.Errorf("%s: %w", handle, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
