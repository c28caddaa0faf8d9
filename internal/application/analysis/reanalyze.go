package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
)

// DefaultReanalysisTimeout bounds a single blocking analysis.
const DefaultReanalysisTimeout = 300 * time.Second

// Reanalyzer re-examines an existing case with one blocking request. It never
// registers a job or polls.
type Reanalyzer struct {
	Analyzer    domain.Analyzer
	Cases       cases.Repository
	Attachments *AttachmentLoader
	Persister   *Persister
	ErrorLog    *ErrorLog
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Reanalyze loads the case, waits for the analysis and stores the result.
// On any failure no result is written.
func (s *Reanalyzer) Reanalyze(ctx context.Context, clinician domain.Clinician, caseID int64) (*domain.Result, error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultReanalysisTimeout
	}

	r, err := s.reanalyze(ctx, clinician, caseID, timeout)
	if err != nil {
		log.Warn("reanalysis failed", "case_id", caseID, "clinician", clinician.ID, "error", err)
		s.ErrorLog.Record("", caseID, joberrors.PhaseReanalyze, err.Error())
		return nil, err
	}
	log.Info("reanalysis completed", "case_id", caseID, "result_id", r.ID)
	return r, nil
}

func (s *Reanalyzer) reanalyze(ctx context.Context, clinician domain.Clinician, caseID int64, timeout time.Duration) (*domain.Result, error) {
	c, err := s.Cases.Get(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case %d: %w", caseID, err)
	}
	if !c.HasContent() {
		return nil, fmt.Errorf("%w: case %d has no clinical note", domain.ErrInvalidRequest, caseID)
	}

	sub, err := buildSubmission(ctx, c, clinician, s.Attachments)
	if err != nil {
		return nil, err
	}

	payload, err := s.Analyzer.SubmitBlocking(ctx, sub, timeout)
	if err != nil {
		return nil, fmt.Errorf("analyze case %d: %w", caseID, err)
	}

	return s.Persister.Persist(ctx, PersistRequest{
		Clinician: clinician,
		CaseID:    caseID,
		Payload:   payload,
	})
}

func buildSubmission(ctx context.Context, c *cases.Case, clinician domain.Clinician, loader *AttachmentLoader) (domain.Submission, error) {
	atts, err := loader.Load(ctx, c.Attachments)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{
		Note:        c.AnalysisNote(),
		Specialty:   c.ResolveSpecialty(clinician.Specialty),
		ClinicianID: clinician.ID,
		Attachments: atts,
	}, nil
}
