package joberrors

import "time"

// Phase names where in the analysis lifecycle an error happened.
type Phase string

const (
	PhaseSubmit    Phase = "submit"
	PhasePoll      Phase = "poll"
	PhasePersist   Phase = "persist"
	PhaseReanalyze Phase = "reanalyze"
	PhaseTerminal  Phase = "terminal"
)

// JobError represents a persisted analysis error entry
type JobError struct {
	ID        int64     `json:"id"`
	JobHandle string    `json:"job_handle"`
	CaseID    int64     `json:"case_id"`
	Phase     Phase     `json:"phase"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
