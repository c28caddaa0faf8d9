package joberrors

import (
	"context"
)

// Repository defines persistence for analysis job errors
type Repository interface {
	Save(ctx context.Context, e *JobError) error
	ListByJob(ctx context.Context, handle string, limit int) ([]*JobError, error)
	ListByCase(ctx context.Context, caseID int64, limit int) ([]*JobError, error)
}
