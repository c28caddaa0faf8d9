package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bryanwahyu/roundsiq/internal/application"
	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

// PersistRequest carries a finished payload to the result store.
type PersistRequest struct {
	Clinician domain.Clinician
	CaseID    int64
	Handle    domain.JobHandle
	Payload   domain.Payload
}

// Persister writes completed analyses as append-only results.
type Persister struct {
	Repo  domain.Repository
	Clock application.Clock
}

func NewPersister(repo domain.Repository, clock application.Clock) *Persister {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Persister{Repo: repo, Clock: clock}
}

// Persist inserts one result for req. Each call is an independent insert
// under a fresh id; deduplication per job is the tracker's job.
func (p *Persister) Persist(ctx context.Context, req PersistRequest) (*domain.Result, error) {
	payload, err := req.Payload.Normalize()
	if err != nil {
		return nil, err
	}

	r := &domain.Result{
		ID:           domain.ResultID(uuid.New().String()),
		CaseID:       req.CaseID,
		JobHandle:    req.Handle,
		ClinicianID:  req.Clinician.ID,
		Summary:      payload.Summary,
		FullResponse: payload.FullResponse,
		Findings:     payload.Findings,
		CreatedAt:    p.Clock.Now().UTC(),
	}
	if err := p.Repo.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("%w: case %d: %v", domain.ErrStorage, req.CaseID, err)
	}
	return r, nil
}
