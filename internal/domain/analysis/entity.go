package analysis

import "time"

// ResultID identifier type
type ResultID string

// Result is one persisted analysis of a case. Results are append-only history;
// the most recent one is the case's current summary.
type Result struct {
	ID           ResultID  `json:"id"`
	CaseID       int64     `json:"case_id"`
	JobHandle    JobHandle `json:"job_handle,omitempty"`
	ClinicianID  string    `json:"clinician_id,omitempty"`
	Summary      string    `json:"summary"`
	FullResponse string    `json:"full_response"`
	Findings     []string  `json:"findings,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Page represents a paginated list of results with metadata
type Page struct {
	Data       []*Result `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

// Clinician is the acting identity a core operation is performed for.
type Clinician struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// Attachment is one image sent alongside a note.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Submission is what the analysis service is asked to analyse.
type Submission struct {
	Note        string
	Specialty   string
	ClinicianID string
	Attachments []Attachment
}

// HasAttachments reports whether the submission must be sent as multipart.
func (s Submission) HasAttachments() bool { return len(s.Attachments) > 0 }
