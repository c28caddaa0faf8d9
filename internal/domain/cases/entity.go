package cases

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a case does not exist in the store.
var ErrNotFound = errors.New("case not found")

// DefaultSpecialty is used when neither the case nor the clinician names one.
const DefaultSpecialty = "general"

// Case is a clinical submission: intake fields, note and attachment handles.
// It is written once at intake and only read afterwards.
type Case struct {
	ID          int64     `json:"id"`
	ClinicianID string    `json:"clinician_id,omitempty"`
	Specialty   string    `json:"specialty,omitempty"`
	Symptoms    string    `json:"symptoms,omitempty"`
	History     string    `json:"history,omitempty"`
	LabResults  string    `json:"lab_results,omitempty"`
	Note        string    `json:"note"`
	Attachments []string  `json:"attachments,omitempty"` // file paths or minio:// references
	CreatedAt   time.Time `json:"created_at"`
}

// AnalysisNote composes the labelled text sent for analysis. Field order is
// fixed: symptoms, history, lab results, note.
func (c *Case) AnalysisNote() string {
	var b strings.Builder
	b.WriteString("Symptoms: " + c.Symptoms + "\n")
	b.WriteString("History: " + c.History + "\n")
	b.WriteString("Lab Results: " + c.LabResults + "\n")
	b.WriteString("Note: " + c.Note)
	return strings.TrimSpace(b.String())
}

// HasContent reports whether any intake field carries text.
func (c *Case) HasContent() bool {
	for _, s := range []string{c.Symptoms, c.History, c.LabResults, c.Note} {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// ResolveSpecialty picks the case specialty, then the fallback, then the default.
func (c *Case) ResolveSpecialty(fallback string) string {
	if s := strings.TrimSpace(c.Specialty); s != "" {
		return s
	}
	if s := strings.TrimSpace(fallback); s != "" {
		return s
	}
	return DefaultSpecialty
}
