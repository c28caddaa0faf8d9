package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusQueued, true},
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusCompleted, true},
		{StatusQueued, StatusCancelled, true},
		{StatusProcessing, StatusQueued, false},
		{StatusProcessing, StatusProcessing, true},
		{StatusProcessing, StatusFailed, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusCancelled, StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("poll: %w", ErrTimeout)))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(ErrMalformedResponse))
	assert.False(t, IsRetryable(&ServiceError{StatusCode: 500}))
	assert.False(t, IsRetryable(errors.New("other")))
}

func TestServiceErrorMessage(t *testing.T) {
	assert.Equal(t, "analysis service responded with HTTP 502", (&ServiceError{StatusCode: 502}).Error())
	assert.Equal(t, "analysis service responded with HTTP 400: note required",
		(&ServiceError{StatusCode: 400, Message: "note required"}).Error())
}

func TestJobJSON_UnsetTimesOmitted(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(Job{Handle: "42", Status: StatusQueued, SubmittedAt: submitted})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "finished_at")
	assert.NotContains(t, string(raw), "last_polled_at")

	finished := submitted.Add(time.Minute)
	raw, err = json.Marshal(Job{Handle: "42", Status: StatusFailed, SubmittedAt: submitted, FinishedAt: &finished})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"finished_at":"2026-03-01T08:01:00Z"`)
}
