package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

func f64(v float64) *float64 { return &v }

func coordSite(id string, lat, lng float64) contracts.Site {
	return contracts.Site{ID: id, Latitude: &lat, Longitude: &lng, Country: "US"}
}

func TestFeatureVectorDefaults(t *testing.T) {
	// No metrics and no coordinates: neutral ratios, zero volume and
	// location.
	vec := featureVector(contracts.Site{ID: "s1"}, nil)

	require.Len(t, vec, featureDim)
	assert.Equal(t, 0.0, vec[0])
	assert.Equal(t, 0.5, vec[1])
	assert.Equal(t, 0.5, vec[2])
	assert.Equal(t, 0.0, vec[3])
	assert.Equal(t, 0.0, vec[4])
	assert.Equal(t, 0.0, vec[5])
}

func TestFeatureVectorAggregatesAcrossAreas(t *testing.T) {
	site := coordSite("s1", 42.0, -71.0)
	rows := []contracts.SiteMetric{
		{SiteID: "s1", TherapeuticArea: taxonomy.AreaOncology, TotalStudies: 10, ExperienceIndex: 0.4, CompletionRatio: f64(0.8)},
		{SiteID: "s1", TherapeuticArea: taxonomy.AreaCardiology, TotalStudies: 5, ExperienceIndex: 0.7, CompletionRatio: f64(0.6)},
	}

	vec := featureVector(site, rows)

	assert.Equal(t, 0.7, vec[0], "highest area experience wins")
	assert.InDelta(t, 0.7, vec[1], 1e-9, "completion averaged over areas with data")
	assert.Equal(t, 0.5, vec[2], "no efficiency data stays neutral")
	assert.Greater(t, vec[3], 0.0)
	assert.Equal(t, 42.0, vec[4])
	assert.Equal(t, -71.0, vec[5])
}

func TestNormalizeBounds(t *testing.T) {
	vecs := []siteVec{
		{SiteID: "a", Vec: []float64{0.2, 0.5, 0.5, 1, 40, -70}},
		{SiteID: "b", Vec: []float64{0.8, 0.5, 0.5, 3, 34, -118}},
		{SiteID: "c", Vec: []float64{0.5, 0.5, 0.5, 2, 48, -100}},
	}

	normalize(vecs)

	for _, v := range vecs {
		for d, x := range v.Vec {
			assert.GreaterOrEqual(t, x, 0.0, "site %s dim %d", v.SiteID, d)
			assert.LessOrEqual(t, x, 1.0, "site %s dim %d", v.SiteID, d)
		}
	}
	// A flat dimension collapses to zero instead of NaN.
	for _, v := range vecs {
		assert.Equal(t, 0.0, v.Vec[1])
	}
}

// twoBlobs builds n sites split into two well separated groups, east
// coast high performers and west coast low performers.
func twoBlobs(n int) ([]siteVec, map[string]int) {
	vecs := make([]siteVec, 0, n)
	truth := make(map[string]int, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("site-%02d", i)
		if i%2 == 0 {
			vecs = append(vecs, siteVec{SiteID: id, Vec: []float64{0.9, 0.9, 0.8, 3.0, 42.0 + float64(i)*0.01, -71.0}})
			truth[id] = 0
		} else {
			vecs = append(vecs, siteVec{SiteID: id, Vec: []float64{0.1, 0.2, 0.2, 0.5, 34.0 + float64(i)*0.01, -118.0}})
			truth[id] = 1
		}
	}
	normalize(vecs)
	return vecs, truth
}

func TestKmeansSeparatesObviousGroups(t *testing.T) {
	cfg := scoringconfig.Default().Cluster
	cfg.K = 2
	vecs, truth := twoBlobs(20)

	assignments, centroids := kmeans(vecs, cfg)
	require.Len(t, assignments, 20)
	require.Len(t, centroids, 2)

	// All members of one true group share a label and the two groups
	// get different labels.
	labelOf := make(map[int]int)
	for _, a := range assignments {
		want := truth[a.SiteID]
		if got, seen := labelOf[want]; seen {
			assert.Equal(t, got, a.Label, "site %s split from its group", a.SiteID)
		} else {
			labelOf[want] = a.Label
		}
		assert.GreaterOrEqual(t, a.Distance, 0.0)
	}
	assert.NotEqual(t, labelOf[0], labelOf[1])
}

func TestKmeansDeterministic(t *testing.T) {
	cfg := scoringconfig.Default().Cluster
	vecsA, _ := twoBlobs(30)
	vecsB, _ := twoBlobs(30)

	first, _ := kmeans(vecsA, cfg)
	second, _ := kmeans(vecsB, cfg)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestKmeansClampsKToPopulation(t *testing.T) {
	cfg := scoringconfig.Default().Cluster
	cfg.K = 10
	vecs, _ := twoBlobs(4)

	assignments, centroids := kmeans(vecs, cfg)

	require.Len(t, assignments, 4)
	require.LessOrEqual(t, len(centroids), 4)
	for _, a := range assignments {
		assert.Less(t, a.Label, 4)
	}
}
