package sqlstore_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
	"github.com/bryanwahyu/roundsiq/internal/infra/db/sqlite"
	"github.com/bryanwahyu/roundsiq/internal/infra/db/sqlstore"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "roundsiq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCaseRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo := sqlstore.NewCaseRepository(openDB(t), sqlstore.SQLite)

	c := &cases.Case{
		ClinicianID: "dr-a",
		Specialty:   "cardiology",
		Symptoms:    "chest pain",
		LabResults:  "troponin 0.4",
		Attachments: []string{"uploads/ecg.png", "minio://scans/ct.dcm"},
	}
	require.NoError(t, repo.Save(ctx, c))
	require.NotZero(t, c.ID)
	require.False(t, c.CreatedAt.IsZero())

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "dr-a", got.ClinicianID)
	assert.Equal(t, "cardiology", got.Specialty)
	assert.Equal(t, "chest pain", got.Symptoms)
	assert.Empty(t, got.History)
	assert.Equal(t, []string{"uploads/ecg.png", "minio://scans/ct.dcm"}, got.Attachments)

	_, err = repo.Get(ctx, c.ID+100)
	assert.ErrorIs(t, err, cases.ErrNotFound)
}

func TestCaseRepository_LegacyImagesColumn(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.ExecContext(ctx, `INSERT INTO clinical_inputs (id, note, images_json, created_at) VALUES (9, 'old case', ?, ?)`,
		`[{"path":"uploads/old.jpg"}]`, time.Now().UTC())
	require.NoError(t, err)

	got, err := sqlstore.NewCaseRepository(db, sqlstore.SQLite).Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "old case", got.Note)
	assert.Equal(t, []string{"uploads/old.jpg"}, got.Attachments)
}

func TestResultRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlstore.NewResultRepository(openDB(t), sqlstore.SQLite)

	_, err := repo.LatestByCase(ctx, 1)
	assert.ErrorIs(t, err, analysis.ErrNoResult)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	handles := []analysis.JobHandle{"42", "", ""}
	for i, id := range []analysis.ResultID{"r1", "r2", "r3"} {
		require.NoError(t, repo.Save(ctx, &analysis.Result{
			ID:           id,
			CaseID:       1,
			JobHandle:    handles[i],
			ClinicianID:  "dr-a",
			Summary:      "summary " + string(id),
			FullResponse: "full " + string(id),
			Findings:     []string{"sepsis"},
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Save(ctx, &analysis.Result{ID: "other", CaseID: 2, Summary: "s", FullResponse: "f", CreatedAt: base}))

	latest, err := repo.LatestByCase(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, analysis.ResultID("r3"), latest.ID)
	assert.Empty(t, latest.JobHandle)
	assert.Equal(t, []string{"sepsis"}, latest.Findings)

	page, err := repo.ListByCase(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, analysis.ResultID("r3"), page.Data[0].ID)
	assert.Equal(t, analysis.ResultID("r2"), page.Data[1].ID)

	page, err = repo.ListByCase(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, analysis.ResultID("r1"), page.Data[0].ID)
	assert.Equal(t, analysis.JobHandle("42"), page.Data[0].JobHandle)

	empty, err := repo.ListByCase(ctx, 77, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, 20, empty.PageSize)
	assert.Empty(t, empty.Data)
	assert.Zero(t, empty.TotalPages)
}

func TestJobErrorRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlstore.NewJobErrorRepository(openDB(t), sqlstore.SQLite)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	entries := []*joberrors.JobError{
		{JobHandle: "42", CaseID: 1, Phase: joberrors.PhasePoll, Message: "timeout", CreatedAt: base},
		{JobHandle: "42", CaseID: 1, Phase: joberrors.PhaseTerminal, Message: "gave up", CreatedAt: base.Add(time.Second)},
		{CaseID: 1, Phase: joberrors.PhaseReanalyze, Message: "", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Save(ctx, e))
		assert.NotZero(t, e.ID)
	}

	byJob, err := repo.ListByJob(ctx, "42", 0)
	require.NoError(t, err)
	require.Len(t, byJob, 2)
	assert.Equal(t, joberrors.PhaseTerminal, byJob[0].Phase)
	assert.Equal(t, "timeout", byJob[1].Message)

	byCase, err := repo.ListByCase(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, byCase, 2)
	assert.Equal(t, joberrors.PhaseReanalyze, byCase[0].Phase)
	assert.Empty(t, byCase[0].JobHandle)
	assert.Equal(t, "-", byCase[0].Message)
}
