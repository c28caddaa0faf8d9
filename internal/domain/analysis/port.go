package analysis

import (
	"context"
	"time"
)

// Analyzer runs a single blocking analysis.
type Analyzer interface {
	SubmitBlocking(ctx context.Context, sub Submission, timeout time.Duration) (Payload, error)
}

// Client is the full contract of the external analysis service.
type Client interface {
	Analyzer
	SubmitQueued(ctx context.Context, sub Submission) (JobHandle, error)
	PollStatus(ctx context.Context, handle JobHandle) (PollResponse, error)
}

// Repository port for persisting and querying analysis results
type Repository interface {
	Save(ctx context.Context, r *Result) error
	LatestByCase(ctx context.Context, caseID int64) (*Result, error)
	ListByCase(ctx context.Context, caseID int64, page, pageSize int) (Page, error)
}
