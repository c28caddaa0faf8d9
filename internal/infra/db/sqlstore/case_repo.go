package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
)

type CaseRepository struct {
	db *sql.DB
	d  Dialect
}

func NewCaseRepository(db *sql.DB, d Dialect) *CaseRepository {
	return &CaseRepository{db: db, d: d}
}

var _ cases.Repository = (*CaseRepository)(nil)

// Save inserts the case and its attachment handles in one transaction and
// sets c.ID.
func (r *CaseRepository) Save(ctx context.Context, c *cases.Case) error {
	const q = `
INSERT INTO clinical_inputs
  (doctor_id, specialty, symptoms, history, lab_results, note, created_at)
VALUES (?,?,?,?,?,?,?)`
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := insert(ctx, tx, r.d, q,
		c.ClinicianID, c.Specialty, c.Symptoms, c.History, c.LabResults, c.Note, created)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	for _, p := range c.Attachments {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO clinical_images (clinical_input_id, path) VALUES (?,?)`), id, p); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = created
	return nil
}

// Get loads a case. Attachment handles come from clinical_images; rows that
// predate that table keep them in the images_json column instead.
func (r *CaseRepository) Get(ctx context.Context, id int64) (*cases.Case, error) {
	const q = `
SELECT id, doctor_id, specialty, symptoms, history, lab_results, note, images_json, created_at
FROM clinical_inputs
WHERE id = ?`
	var (
		c                               cases.Case
		doctor, specialty, symptoms     sql.NullString
		history, labs, note, imagesJSON sql.NullString
		created                         time.Time
	)
	err := r.db.QueryRowContext(ctx, r.d.Rebind(q), id).Scan(
		&c.ID, &doctor, &specialty, &symptoms, &history, &labs, &note, &imagesJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", cases.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	c.ClinicianID = doctor.String
	c.Specialty = specialty.String
	c.Symptoms = symptoms.String
	c.History = history.String
	c.LabResults = labs.String
	c.Note = note.String
	c.CreatedAt = created

	paths, err := r.images(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		paths = legacyImages(imagesJSON)
	}
	c.Attachments = paths
	return &c, nil
}

func (r *CaseRepository) images(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT path FROM clinical_images WHERE clinical_input_id = ? ORDER BY id ASC`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

// legacyImages reads images_json, which holds either plain paths or objects
// with a "path" field.
func legacyImages(raw sql.NullString) []string {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	var items []json.RawMessage
	if json.Unmarshal([]byte(raw.String), &items) != nil {
		return nil
	}
	var out []string
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Path string `json:"path"`
		}
		if json.Unmarshal(it, &obj) == nil && obj.Path != "" {
			out = append(out, obj.Path)
		}
	}
	return out
}
