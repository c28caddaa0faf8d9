package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
)

func newReanalyzer(client *fakeClient, results *memResults, errs *memJobErrors, cs ...*cases.Case) *Reanalyzer {
	return &Reanalyzer{
		Analyzer:    client,
		Cases:       newMemCases(cs...),
		Attachments: NewAttachmentLoader(memStore{"scans/chest.png": []byte("\x89PNG\r\n\x1a\n")}, quiet),
		Persister:   NewPersister(results, nil),
		ErrorLog:    NewErrorLog(errs, quiet),
		Timeout:     90 * time.Second,
		Logger:      quiet,
	}
}

func TestReanalyze_Success(t *testing.T) {
	client := &fakeClient{blockingPayload: domain.Payload{FullResponse: "Community acquired pneumonia", Findings: []string{"pneumonia"}}}
	results, errs := &memResults{}, &memJobErrors{}
	r := newReanalyzer(client, results, errs, &cases.Case{
		ID:          4,
		Specialty:   "pulmonology",
		Symptoms:    "productive cough",
		Attachments: []string{"scans/chest.png", "scans/gone.png"},
	})

	res, err := r.Reanalyze(context.Background(), domain.Clinician{ID: "dr-b", Specialty: "general"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "Community acquired pneumonia", res.Summary)
	assert.Equal(t, []string{"pneumonia"}, res.Findings)
	assert.Empty(t, res.JobHandle)
	assert.Equal(t, 90*time.Second, client.blockingTimeout)

	subs := client.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "pulmonology", subs[0].Specialty)
	assert.Equal(t, "dr-b", subs[0].ClinicianID)
	require.Len(t, subs[0].Attachments, 1)
	assert.Equal(t, "chest.png", subs[0].Attachments[0].Name)

	assert.Len(t, results.all(), 1)
	assert.Empty(t, errs.phases())
}

func TestReanalyze_TimeoutWritesNothing(t *testing.T) {
	client := &fakeClient{blockingErr: fmt.Errorf("analyze: %w", domain.ErrTimeout)}
	results, errs := &memResults{}, &memJobErrors{}
	r := newReanalyzer(client, results, errs, &cases.Case{ID: 1, Note: "chest pain"})

	res, err := r.Reanalyze(context.Background(), domain.Clinician{ID: "dr-a"}, 1)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Empty(t, results.all())
	assert.Equal(t, []joberrors.Phase{joberrors.PhaseReanalyze}, errs.phases())
}

func TestReanalyze_EmptyAnswer(t *testing.T) {
	client := &fakeClient{blockingPayload: domain.Payload{}}
	results, errs := &memResults{}, &memJobErrors{}
	r := newReanalyzer(client, results, errs, &cases.Case{ID: 1, Note: "chest pain"})

	_, err := r.Reanalyze(context.Background(), domain.Clinician{}, 1)
	assert.ErrorIs(t, err, domain.ErrEmptyResult)
	assert.Empty(t, results.all())
}

func TestReanalyze_RejectsBeforeCallingService(t *testing.T) {
	client := &fakeClient{}
	r := newReanalyzer(client, &memResults{}, &memJobErrors{}, &cases.Case{ID: 1})

	_, err := r.Reanalyze(context.Background(), domain.Clinician{}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = r.Reanalyze(context.Background(), domain.Clinician{}, 2)
	assert.ErrorIs(t, err, cases.ErrNotFound)
	assert.Empty(t, client.submissions())
}

func TestReanalyze_DefaultTimeout(t *testing.T) {
	client := &fakeClient{blockingPayload: domain.Payload{FullResponse: "ok"}}
	r := newReanalyzer(client, &memResults{}, &memJobErrors{}, &cases.Case{ID: 1, Note: "x"})
	r.Timeout = 0

	_, err := r.Reanalyze(context.Background(), domain.Clinician{}, 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultReanalysisTimeout, client.blockingTimeout)
}
