package analysis

import (
	"strings"
	"unicode/utf8"
)

// SummaryLimit is the maximum summary length in characters.
const SummaryLimit = 600

func trimmed(s string) string { return strings.TrimSpace(s) }

// DeriveSummary returns the first limit characters of full. The cut always
// falls on a rune boundary, so the result is a valid prefix of full.
func DeriveSummary(full string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(full) <= limit {
		return full
	}
	n := 0
	for i := range full {
		if n == limit {
			return full[:i]
		}
		n++
	}
	return full
}

// Normalize trims the payload and fills in a missing summary from the full
// response. It returns ErrEmptyResult when nothing usable is left.
func (p Payload) Normalize() (Payload, error) {
	out := Payload{
		Summary:      trimmed(p.Summary),
		FullResponse: trimmed(p.FullResponse),
		Findings:     p.Findings,
	}
	if out.Summary == "" && out.FullResponse == "" {
		return Payload{}, ErrEmptyResult
	}
	if out.Summary == "" {
		out.Summary = out.FullResponse
	}
	out.Summary = DeriveSummary(out.Summary, SummaryLimit)
	return out, nil
}
