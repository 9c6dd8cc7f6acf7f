package metrics

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/pkg/config"
	"github.com/clinscout/backend/pkg/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func metricRow(siteID, area string, total int) contracts.SiteMetric {
	return contracts.SiteMetric{
		SiteID:          siteID,
		TherapeuticArea: area,
		TotalStudies:    total,
		ExperienceIndex: 0.4,
		ComputedAt:      time.Now().UTC(),
	}
}

func TestSavePrunesAreasAbsentFromBatch(t *testing.T) {
	db := testDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const siteID = "it-test-metrics-site"
	repo := NewRepository(db.Pool)
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM scoring.site_metrics WHERE site_id = $1`, siteID)
	})

	err := repo.Save(ctx, []contracts.SiteMetric{
		metricRow(siteID, "Oncology", 5),
		metricRow(siteID, "Cardiology", 3),
	})
	require.NoError(t, err)

	// A corrected run where the Cardiology participations are gone must
	// remove the stale row, not just rewrite the Oncology one.
	err = repo.Save(ctx, []contracts.SiteMetric{metricRow(siteID, "Oncology", 4)})
	require.NoError(t, err)

	rows, err := repo.ListBySite(ctx, siteID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Oncology", rows[0].TherapeuticArea)
	assert.Equal(t, 4, rows[0].TotalStudies)
}

func TestSaveLeavesOtherSitesAlone(t *testing.T) {
	db := testDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const siteA = "it-test-metrics-a"
	const siteB = "it-test-metrics-b"
	repo := NewRepository(db.Pool)
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(),
			`DELETE FROM scoring.site_metrics WHERE site_id = ANY($1)`, []string{siteA, siteB})
	})

	require.NoError(t, repo.Save(ctx, []contracts.SiteMetric{metricRow(siteB, "Neurology", 2)}))
	require.NoError(t, repo.Save(ctx, []contracts.SiteMetric{metricRow(siteA, "Oncology", 5)}))

	rows, err := repo.ListBySite(ctx, siteB)
	require.NoError(t, err)
	require.Len(t, rows, 1, "a batch without site B must not touch its rows")
}
