package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jgoulah/gridflex/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAnalysis(company string, created time.Time) models.Analysis {
	return models.Analysis{
		Company:  company,
		Workbook: "/data/consumo.xlsx",
		Sheet:    "base_de_dados",
		Band: models.OutlierBand{
			K: 2, Median: 12, MAD: 1, ScaledMAD: 1 / 0.6745,
			Lower: 9.03, Upper: 14.97, AdjustedMean: 11.5, FlexibilityPct: 25, InBand: 4,
		},
		Months: []models.MonthlyAggregate{
			{Month: models.Month{Year: 2023, Month: time.December}, Consumption: 11},
			{Month: models.Month{Year: 2024, Month: time.January}, Consumption: 13},
		},
		Dropped:   1,
		CreatedAt: created,
	}
}

func TestSaveAndGetAnalysis(t *testing.T) {
	db := newTestDB(t)
	created := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	saved, err := db.SaveAnalysis(sampleAnalysis("Acme", created))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := db.GetAnalysis(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, saved.Band, got.Band)
	assert.Equal(t, saved.Months, got.Months)
	assert.Equal(t, 1, got.Dropped)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.False(t, got.Published)
}

func TestSaveAnalysisDefaults(t *testing.T) {
	db := newTestDB(t)
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	db.now = func() time.Time { return fixed }

	saved, err := db.SaveAnalysis(sampleAnalysis("Acme", time.Time{}))
	require.NoError(t, err)
	assert.Len(t, saved.ID, 36)
	assert.True(t, fixed.Equal(saved.CreatedAt))
}

func TestGetAnalysisNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetAnalysis("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.MarkPublished("missing"), ErrNotFound)
}

func TestListAnalyses(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, company := range []string{"Acme", "Beta", "Acme"} {
		_, err := db.SaveAnalysis(sampleAnalysis(company, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	acme, err := db.ListAnalyses("Acme")
	require.NoError(t, err)
	require.Len(t, acme, 2)
	assert.True(t, acme[0].CreatedAt.After(acme[1].CreatedAt), "newest first")
	assert.Empty(t, acme[0].Months)

	all, err := db.ListAnalyses("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := db.ListAnalyses("Gamma")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnpublishedAndMarkPublished(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := db.SaveAnalysis(sampleAnalysis("Acme", base))
	require.NoError(t, err)
	second, err := db.SaveAnalysis(sampleAnalysis("Beta", base.Add(time.Minute)))
	require.NoError(t, err)

	pending, err := db.ListUnpublished()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Len(t, pending[0].Months, 2)

	require.NoError(t, db.MarkPublished(first.ID))

	pending, err = db.ListUnpublished()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	got, err := db.GetAnalysis(first.ID)
	require.NoError(t, err)
	assert.True(t, got.Published)
}

func TestSaveAnalysisRejectsDuplicate(t *testing.T) {
	db := newTestDB(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.SaveAnalysis(sampleAnalysis("Acme", created))
	require.NoError(t, err)

	_, err = db.SaveAnalysis(sampleAnalysis("Acme", created))
	assert.Error(t, err)

	all, err := db.ListAnalyses("")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
