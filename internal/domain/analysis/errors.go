package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates the caller supplied an unusable request (empty note).
	ErrInvalidRequest = errors.New("invalid analysis request")
	// ErrServiceUnavailable indicates the analysis service could not be reached.
	ErrServiceUnavailable = errors.New("analysis service unavailable")
	// ErrTimeout indicates the analysis service did not answer within the allowed time.
	ErrTimeout = errors.New("analysis service timed out")
	// ErrMalformedResponse indicates the service answered with a body of unexpected shape.
	ErrMalformedResponse = errors.New("malformed analysis response")
	// ErrEmptyResult indicates the service returned neither a summary nor a full response.
	ErrEmptyResult = errors.New("analysis returned an empty result")
	// ErrStorage indicates the result could not be written.
	ErrStorage = errors.New("analysis result storage failed")

	// ErrNoResult indicates a case has never been analysed.
	ErrNoResult = errors.New("no analysis result for case")

	ErrJobNotFound  = errors.New("analysis job not found")
	ErrDuplicateJob = errors.New("analysis job already registered")
)

// ServiceError is returned when the analysis service rejected a request.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analysis service responded with HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service responded with HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the caller may reasonably retry after err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}
