package analysis

import "time"

// JobHandle is the opaque identifier the analysis service issues for a queued job.
type JobHandle string

// Status enum
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// rank orders the non-terminal states so updates never move a job backwards.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

// CanAdvanceTo reports whether a job in state s may move to next.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Payload is the analysis content produced by the service.
type Payload struct {
	Summary      string   `json:"summary,omitempty"`
	FullResponse string   `json:"full_response"`
	Findings     []string `json:"findings,omitempty"`
}

// Empty reports whether the payload carries no usable text.
func (p Payload) Empty() bool {
	return trimmed(p.Summary) == "" && trimmed(p.FullResponse) == ""
}

// PollResponse is one answer of the service's status endpoint.
type PollResponse struct {
	Status  Status
	Payload *Payload
	Error   string
}

// Job tracks one queued analysis from submission to a terminal state.
type Job struct {
	Handle       JobHandle  `json:"handle"`
	CaseID       int64      `json:"case_id"`
	ClinicianID  string     `json:"clinician_id"`
	Status       Status     `json:"status"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	Polls        int        `json:"polls"`
	Payload      *Payload   `json:"payload,omitempty"`
	Error        string     `json:"error,omitempty"`
	ResultID     ResultID   `json:"result_id,omitempty"`
	// FinishedAt is nil until the job is terminal.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
