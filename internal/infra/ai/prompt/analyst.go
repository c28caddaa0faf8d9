package prompt

import (
	"fmt"
	"strings"
)

// SystemPrompt keeps the model to formatted diagnostic analysis.
func SystemPrompt() string {
	return "You are a medical expert that returns only formatted diagnostic analysis."
}

// Sections are the fixed headings every analysis must cover, in order.
var Sections = []string{
	"Differential Diagnosis",
	"Pathophysiology Integration",
	"Diagnostic Workup",
	"Treatment and Medications",
	"Risk Stratification & Clinical Judgment",
	"Management of Chronic Conditions",
	"Infection Consideration & Antibiotics",
	"Disposition & Follow-Up",
	"Red Flags or Missed Diagnoses",
	"Clinical Guidelines Integration",
}

// Case is everything the user prompt is built from.
type Case struct {
	Note       string
	Modifier   string   // specialty specific instructions, may be empty
	ImageNames []string
	Conditions []string
}

// UserPrompt builds the clinical case message.
func UserPrompt(c Case) string {
	var b strings.Builder
	b.WriteString("You are a highly trained clinical decision support AI.\n")
	fmt.Fprintf(&b, "Analyze the clinical case below and return structured diagnostic reasoning using these %d sections:\n\n", len(Sections))
	for i, s := range Sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	if m := strings.TrimSpace(c.Modifier); m != "" {
		b.WriteString("\n" + m + "\n")
	}
	b.WriteString("\nCASE NOTE:\n" + c.Note + "\n")

	for _, cond := range c.Conditions {
		text, ok := GuidanceFor(cond)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n### SPECIAL GUIDANCE: %s\n%s\n", strings.ToUpper(cond), text)
	}

	b.WriteString("\nIMAGE METADATA:\n")
	if len(c.ImageNames) == 0 {
		b.WriteString("No images attached.\n")
	} else {
		b.WriteString(strings.Join(c.ImageNames, ", ") + "\n")
	}
	return b.String()
}
