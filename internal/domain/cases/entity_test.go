package cases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisNote(t *testing.T) {
	c := &Case{Symptoms: "fever, cough", History: "asthma", LabResults: "WBC 12", Note: "3 days"}
	assert.Equal(t, "Symptoms: fever, cough\nHistory: asthma\nLab Results: WBC 12\nNote: 3 days", c.AnalysisNote())

	only := &Case{Symptoms: "fever, cough"}
	assert.Equal(t, "Symptoms: fever, cough\nHistory: \nLab Results: \nNote:", only.AnalysisNote())
}

func TestHasContent(t *testing.T) {
	assert.False(t, (&Case{}).HasContent())
	assert.False(t, (&Case{Note: "   ", Specialty: "cardiology"}).HasContent())
	assert.True(t, (&Case{LabResults: "troponin 0.4"}).HasContent())
}

func TestResolveSpecialty(t *testing.T) {
	assert.Equal(t, "cardiology", (&Case{Specialty: " cardiology "}).ResolveSpecialty("neurology"))
	assert.Equal(t, "neurology", (&Case{}).ResolveSpecialty("neurology"))
	assert.Equal(t, DefaultSpecialty, (&Case{}).ResolveSpecialty(" "))
}
