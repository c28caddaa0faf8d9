package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectConditions(t *testing.T) {
	tests := []struct {
		note string
		want []string
	}{
		{"Patient in septic shock, lactate 4.2", []string{"sepsis"}},
		{"History of CHF, now with suspected PE", []string{"heart failure", "vte"}},
		{"Acute MI ruled out; NSTEMI protocol", []string{"ami"}},
		{"Known DKA, new stroke symptoms", []string{"stroke", "dka"}},
		// abbreviations only match as whole words
		{"patient reports pelvic pain, mild headache", nil},
		{"chief complaint: migraine, capsule endoscopy pending", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.note, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectConditions(tt.note))
		})
	}
}

func TestGuidanceFor(t *testing.T) {
	text, ok := GuidanceFor("sepsis")
	assert.True(t, ok)
	assert.Contains(t, text, "SEP-1")

	_, ok = GuidanceFor("gout")
	assert.False(t, ok)
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt(Case{
		Note:       "Symptoms: fever\nNote: suspected sepsis",
		Modifier:   "Focus on cardiac causes.",
		ImageNames: []string{"ecg.png (image)", "ct.dcm (not sent: application/dicom)"},
		Conditions: []string{"sepsis", "unknown"},
	})

	for i, s := range Sections {
		assert.Contains(t, p, s)
		if i > 0 {
			assert.Less(t, strings.Index(p, Sections[i-1]), strings.Index(p, s))
		}
	}
	assert.Contains(t, p, "Focus on cardiac causes.")
	assert.Contains(t, p, "CASE NOTE:\nSymptoms: fever\nNote: suspected sepsis\n")
	assert.Contains(t, p, "### SPECIAL GUIDANCE: SEPSIS")
	assert.NotContains(t, p, "UNKNOWN")
	assert.Contains(t, p, "IMAGE METADATA:\necg.png (image), ct.dcm (not sent: application/dicom)")

	bare := UserPrompt(Case{Note: "cough"})
	assert.Contains(t, bare, "No images attached.")
	assert.NotContains(t, bare, "SPECIAL GUIDANCE")
}
