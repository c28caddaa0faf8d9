package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

type ResultRepository struct {
	db *sql.DB
	d  Dialect
}

func NewResultRepository(db *sql.DB, d Dialect) *ResultRepository {
	return &ResultRepository{db: db, d: d}
}

var _ analysis.Repository = (*ResultRepository)(nil)

// Save appends a result row. Rows are never updated.
func (r *ResultRepository) Save(ctx context.Context, a *analysis.Result) error {
	const q = `
INSERT INTO ai_responses
  (id, clinical_input_id, job_handle, doctor_id, summary, full_response, detected_conditions, created_at)
VALUES (?,?,?,?,?,?,?,?)`
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.d.Rebind(q),
		string(a.ID), a.CaseID, stringOrDash(string(a.JobHandle)), stringOrDash(a.ClinicianID),
		a.Summary, a.FullResponse, encodeList(a.Findings), created)
	return err
}

const resultColumns = `id, clinical_input_id, job_handle, doctor_id, summary, full_response, detected_conditions, created_at`

// LatestByCase returns the case's current summary.
func (r *ResultRepository) LatestByCase(ctx context.Context, caseID int64) (*analysis.Result, error) {
	q := `SELECT ` + resultColumns + `
FROM ai_responses
WHERE clinical_input_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`
	res, err := scanResult(r.db.QueryRowContext(ctx, r.d.Rebind(q), caseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: case %d", analysis.ErrNoResult, caseID)
	}
	return res, err
}

// ListByCase returns a page of results, newest first.
func (r *ResultRepository) ListByCase(ctx context.Context, caseID int64, page, pageSize int) (analysis.Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int64
	if err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM ai_responses WHERE clinical_input_id = ?`), caseID).Scan(&total); err != nil {
		return analysis.Page{}, err
	}

	q := `SELECT ` + resultColumns + `
FROM ai_responses
WHERE clinical_input_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), caseID, pageSize, offset)
	if err != nil {
		return analysis.Page{}, err
	}
	defer rows.Close()

	out := make([]*analysis.Result, 0, pageSize)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return analysis.Page{}, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return analysis.Page{}, err
	}

	return analysis.Page{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*analysis.Result, error) {
	var (
		a                 analysis.Result
		id, handle, docID string
		conditions        sql.NullString
		created           time.Time
	)
	if err := s.Scan(&id, &a.CaseID, &handle, &docID, &a.Summary, &a.FullResponse, &conditions, &created); err != nil {
		return nil, err
	}
	a.ID = analysis.ResultID(id)
	a.JobHandle = analysis.JobHandle(dashToEmpty(handle))
	a.ClinicianID = dashToEmpty(docID)
	a.Findings = decodeList(conditions)
	a.CreatedAt = created
	return &a, nil
}
