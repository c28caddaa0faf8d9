package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
)

type JobErrorRepository struct {
	db *sql.DB
	d  Dialect
}

func NewJobErrorRepository(db *sql.DB, d Dialect) *JobErrorRepository {
	return &JobErrorRepository{db: db, d: d}
}

var _ joberrors.Repository = (*JobErrorRepository)(nil)

func (r *JobErrorRepository) Save(ctx context.Context, e *joberrors.JobError) error {
	const q = `
INSERT INTO analysis_job_errors
  (job_handle, clinical_input_id, phase, message, created_at)
VALUES (?,?,?,?,?)`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	id, err := insert(ctx, r.db, r.d, q, stringOrDash(e.JobHandle), e.CaseID, stringOrDash(string(e.Phase)), msg, created)
	if err != nil {
		return err
	}
	e.ID = id
	e.CreatedAt = created
	return nil
}

func (r *JobErrorRepository) ListByJob(ctx context.Context, handle string, limit int) ([]*joberrors.JobError, error) {
	return r.list(ctx, `job_handle = ?`, handle, limit)
}

func (r *JobErrorRepository) ListByCase(ctx context.Context, caseID int64, limit int) ([]*joberrors.JobError, error) {
	return r.list(ctx, `clinical_input_id = ?`, caseID, limit)
}

func (r *JobErrorRepository) list(ctx context.Context, where string, arg any, limit int) ([]*joberrors.JobError, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
SELECT id, job_handle, clinical_input_id, phase, message, created_at
FROM analysis_job_errors
WHERE ` + where + `
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*joberrors.JobError
	for rows.Next() {
		var (
			e      joberrors.JobError
			handle string
			phase  string
		)
		if err := rows.Scan(&e.ID, &handle, &e.CaseID, &phase, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.JobHandle = dashToEmpty(handle)
		e.Phase = joberrors.Phase(phase)
		out = append(out, &e)
	}
	return out, rows.Err()
}
