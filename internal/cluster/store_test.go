package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs/zerolog"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

type fakeClusterRepo struct {
	versions  map[int64][]contracts.ClusterAssignment
	centroids map[int64]map[int][]float64
	latest    int64
	saves     int
}

func newFakeClusterRepo() *fakeClusterRepo {
	return &fakeClusterRepo{
		versions:  make(map[int64][]contracts.ClusterAssignment),
		centroids: make(map[int64]map[int][]float64),
	}
}

func (f *fakeClusterRepo) SaveVersion(_ context.Context, version int64, _ time.Time, assignments []contracts.ClusterAssignment, centroids map[int][]float64) error {
	f.versions[version] = assignments
	f.centroids[version] = centroids
	if version > f.latest {
		f.latest = version
	}
	f.saves++
	return nil
}

func (f *fakeClusterRepo) LoadLatestVersion(context.Context) (int64, []contracts.ClusterAssignment, map[int][]float64, error) {
	if f.latest == 0 {
		return 0, nil, nil, nil
	}
	return f.latest, f.versions[f.latest], f.centroids[f.latest], nil
}

func sitePopulation(n int) ([]contracts.Site, []contracts.SiteMetric) {
	sites := make([]contracts.Site, 0, n)
	metrics := make([]contracts.SiteMetric, 0, n)
	for i := 0; i < n; i++ {
		lat := 30.0 + float64(i)
		lng := -70.0 - float64(i)
		id := siteID(i)
		sites = append(sites, contracts.Site{ID: id, Latitude: &lat, Longitude: &lng})
		metrics = append(metrics, contracts.SiteMetric{
			SiteID:          id,
			TherapeuticArea: taxonomy.AreaOncology,
			TotalStudies:    i + 1,
			ExperienceIndex: float64(i) / float64(n),
		})
	}
	return sites, metrics
}

func siteID(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestStoreLabelWithoutModel(t *testing.T) {
	store := NewStore(scoringconfig.Default().Cluster, newFakeClusterRepo(), zerolog.Nop())

	label, err := store.Label(context.Background(), "nowhere")

	require.NoError(t, err)
	assert.Nil(t, label)
}

func TestStoreRecomputeRejectsThinPopulation(t *testing.T) {
	cfg := scoringconfig.Default().Cluster
	sites, metrics := sitePopulation(cfg.MinSites - 1)
	store := NewStore(cfg, newFakeClusterRepo(), zerolog.Nop())

	_, err := store.Recompute(context.Background(), sites, metrics)

	assert.ErrorIs(t, err, ErrTooFewSites)
}

func TestStoreRecomputeCommitsAndServesLabels(t *testing.T) {
	cfg := scoringconfig.Default().Cluster
	repo := newFakeClusterRepo()
	sites, metrics := sitePopulation(cfg.MinSites + 5)
	store := NewStore(cfg, repo, zerolog.Nop())

	model, err := store.Recompute(context.Background(), sites, metrics)
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, 1, repo.saves)
	assert.Len(t, model.Assignments, len(sites))
	assert.LessOrEqual(t, len(model.Sizes), cfg.K)

	total := 0
	for _, summary := range model.Clusters {
		total += summary.Size
		assert.Equal(t, model.Sizes[summary.Label], summary.Size)
		assert.GreaterOrEqual(t, summary.Cohesion, 0.0)
		assert.Len(t, summary.Centroid, featureDim)
	}
	assert.Equal(t, len(sites), total)

	label, err := store.Label(context.Background(), sites[0].ID)
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.GreaterOrEqual(t, *label, 0)
	assert.Less(t, *label, cfg.K)
}

func TestStoreLazyLoadsPersistedModel(t *testing.T) {
	repo := newFakeClusterRepo()
	require.NoError(t, repo.SaveVersion(context.Background(), 42, time.Now(), []contracts.ClusterAssignment{
		{SiteID: "aa", Label: 3, Distance: 0.1},
	}, map[int][]float64{3: {0.5, 0.5, 0.5, 0.5, 0.5, 0.5}}))
	store := NewStore(scoringconfig.Default().Cluster, repo, zerolog.Nop())

	label, err := store.Label(context.Background(), "aa")
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, 3, *label)

	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(42), latest.Version)
}

func TestStoreNewVersionReplacesOld(t *testing.T) {
	cfg := scoringconfig.Default().Cluster
	repo := newFakeClusterRepo()
	sites, metrics := sitePopulation(cfg.MinSites)
	store := NewStore(cfg, repo, zerolog.Nop())

	first, err := store.Recompute(context.Background(), sites, metrics)
	require.NoError(t, err)
	second, err := store.Recompute(context.Background(), sites, metrics)
	require.NoError(t, err)

	assert.Greater(t, second.Version, first.Version)
	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.Version, latest.Version)
}
