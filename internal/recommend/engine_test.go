package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

// --- in-memory repositories ---

type fakeSites struct{ sites []contracts.Site }

func (f *fakeSites) GetByID(_ context.Context, id string) (*contracts.Site, error) {
	for i := range f.sites {
		if f.sites[i].ID == id {
			return &f.sites[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSites) ListAll(context.Context) ([]contracts.Site, error) { return f.sites, nil }
func (f *fakeSites) CountAll(context.Context) (int, error)            { return len(f.sites), nil }

type fakeTrials struct{ trials map[string]contracts.Trial }

func (f *fakeTrials) GetByNCTID(_ context.Context, nctID string) (*contracts.Trial, error) {
	if t, ok := f.trials[nctID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeTrials) ListByNCTIDs(_ context.Context, nctIDs []string) (map[string]contracts.Trial, error) {
	out := make(map[string]contracts.Trial, len(nctIDs))
	for _, id := range nctIDs {
		if t, ok := f.trials[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

type fakeParts struct{ parts []contracts.Participation }

func (f *fakeParts) ListBySite(_ context.Context, siteID string) ([]contracts.Participation, error) {
	var out []contracts.Participation
	for _, p := range f.parts {
		if p.SiteID == siteID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParts) ListByTrial(_ context.Context, nctID string) ([]contracts.Participation, error) {
	var out []contracts.Participation
	for _, p := range f.parts {
		if p.NCTID == nctID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParts) ListAll(context.Context) ([]contracts.Participation, error) {
	return f.parts, nil
}

type fakeMetrics struct{ rows []contracts.SiteMetric }

func (f *fakeMetrics) Save(_ context.Context, metrics []contracts.SiteMetric) error {
	f.rows = append(f.rows, metrics...)
	return nil
}

func (f *fakeMetrics) ListBySite(_ context.Context, siteID string) ([]contracts.SiteMetric, error) {
	var out []contracts.SiteMetric
	for _, m := range f.rows {
		if m.SiteID == siteID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMetrics) ListByArea(_ context.Context, area string) ([]contracts.SiteMetric, error) {
	var out []contracts.SiteMetric
	for _, m := range f.rows {
		if m.TherapeuticArea == area {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMetrics) ListAll(context.Context) ([]contracts.SiteMetric, error) {
	return f.rows, nil
}

type fakeClusters struct{ labels map[string]int }

func (f *fakeClusters) Label(_ context.Context, siteID string) (*int, error) {
	if v, ok := f.labels[siteID]; ok {
		return &v, nil
	}
	return nil, nil
}

type fakeEnroll struct{ estimates map[string]contracts.EnrollmentEstimate }

func (f *fakeEnroll) Estimate(_ context.Context, siteID, _ string) (*contracts.EnrollmentEstimate, error) {
	if e, ok := f.estimates[siteID]; ok {
		return &e, nil
	}
	return nil, nil
}

// --- fixture ---

func f64(v float64) *float64 { return &v }

func testSite(id, city, state string, lat, lng float64, institution string) contracts.Site {
	return contracts.Site{
		ID:              id,
		Name:            id,
		City:            city,
		State:           state,
		Country:         "US",
		Latitude:        &lat,
		Longitude:       &lng,
		InstitutionType: institution,
	}
}

func oncologyMetric(siteID string, total int, completion, expIndex float64) contracts.SiteMetric {
	return contracts.SiteMetric{
		SiteID:          siteID,
		TherapeuticArea: taxonomy.AreaOncology,
		TotalStudies:    total,
		CompletedStudies: func() int {
			return int(completion * float64(total))
		}(),
		CompletionRatio: f64(completion),
		ExperienceIndex: expIndex,
		ComputedAt:      time.Now().UTC(),
	}
}

type fixture struct {
	sites   *fakeSites
	trials  *fakeTrials
	parts   *fakeParts
	metrics *fakeMetrics
}

// newFixture builds four sites: three with oncology track records of
// descending depth and quality, plus one with no history at all.
func newFixture() *fixture {
	f := &fixture{
		sites: &fakeSites{sites: []contracts.Site{
			testSite("site-boston", "Boston", "MA", 42.3601, -71.0589, "academic"),
			testSite("site-cambridge", "Cambridge", "MA", 42.3736, -71.1097, "academic"),
			testSite("site-la", "Los Angeles", "CA", 34.0522, -118.2437, "community"),
			testSite("site-novice", "Chicago", "IL", 41.8781, -87.6298, "community"),
		}},
		trials: &fakeTrials{trials: map[string]contracts.Trial{
			"NCT00000001": {
				NCTID:         "NCT00000001",
				Title:         "Adjuvant therapy in early breast cancer",
				Status:        "Completed",
				Phase:         "Phase 2",
				Conditions:    []string{"breast cancer"},
				Interventions: []string{"Drug"},
			},
		}},
		metrics: &fakeMetrics{rows: []contracts.SiteMetric{
			oncologyMetric("site-boston", 20, 0.90, 0.80),
			oncologyMetric("site-cambridge", 15, 0.80, 0.60),
			oncologyMetric("site-la", 10, 0.70, 0.50),
		}},
	}
	f.parts = &fakeParts{parts: []contracts.Participation{
		{SiteID: "site-boston", NCTID: "NCT00000001", RecruitmentStatus: "Completed", QualityScore: f64(0.90)},
		{SiteID: "site-cambridge", NCTID: "NCT00000001", RecruitmentStatus: "Completed", QualityScore: f64(0.80)},
		{SiteID: "site-la", NCTID: "NCT00000001", RecruitmentStatus: "Completed", QualityScore: f64(0.70)},
	}}
	return f
}

func (f *fixture) engine(cfg scoringconfig.Config) *Engine {
	return NewEngine(cfg, Deps{
		Sites:   f.sites,
		Trials:  f.trials,
		Parts:   f.parts,
		Metrics: f.metrics,
	})
}

func bostonProfile() contracts.TargetProfile {
	return contracts.TargetProfile{
		TherapeuticArea:  "oncology",
		Phase:            "Phase 2",
		InterventionType: "drug",
		Location:         &contracts.GeoPoint{Latitude: 42.3601, Longitude: -71.0589},
	}
}

// --- tests ---

func TestRecommendNoSites(t *testing.T) {
	f := newFixture()
	f.sites.sites = nil
	e := f.engine(*scoringconfig.Default())

	_, err := e.Recommend(context.Background(), contracts.RecommendationRequest{Profile: bostonProfile()})

	assert.ErrorIs(t, err, ErrNoSites)
}

func TestRecommendNoCandidatesIsDistinct(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())

	// A 50km radius around London excludes every US site.
	profile := bostonProfile()
	profile.Location = &contracts.GeoPoint{Latitude: 51.5074, Longitude: -0.1278}
	req := contracts.RecommendationRequest{Profile: profile, MaxDistanceKm: f64(50)}

	_, err := e.Recommend(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.NotErrorIs(t, err, ErrNoSites)

	// The same profile with no distance cap still yields results.
	req.MaxDistanceKm = nil
	rec, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Sites)
}

func TestRecommendOrdering(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())

	rec, err := e.Recommend(context.Background(), contracts.RecommendationRequest{Profile: bostonProfile()})
	require.NoError(t, err)
	require.Len(t, rec.Sites, 4)

	assert.Equal(t, "site-boston", rec.Sites[0].Site.ID)
	assert.Equal(t, "site-novice", rec.Sites[3].Site.ID)
	for i, rs := range rec.Sites {
		assert.Equal(t, i+1, rs.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, rec.Sites[i-1].Scores.Overall, rs.Scores.Overall)
		}
	}
	assert.NotEmpty(t, rec.RequestID)
	assert.False(t, rec.GeneratedAt.IsZero())
}

func TestRecommendDeterministicOrder(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())
	req := contracts.RecommendationRequest{Profile: bostonProfile()}

	first, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, second.Sites, len(first.Sites))
	for i := range first.Sites {
		assert.Equal(t, first.Sites[i].Site.ID, second.Sites[i].Site.ID)
		assert.Equal(t, first.Sites[i].Scores.Overall, second.Sites[i].Scores.Overall)
	}
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestRecommendTieBreaksOnSiteID(t *testing.T) {
	// Two indistinguishable sites: identical location, history and
	// quality. Only the ID can order them.
	f := newFixture()
	f.sites.sites = []contracts.Site{
		testSite("site-b", "Boston", "MA", 42.3601, -71.0589, "academic"),
		testSite("site-a", "Boston", "MA", 42.3601, -71.0589, "academic"),
	}
	f.metrics.rows = []contracts.SiteMetric{
		oncologyMetric("site-a", 10, 0.80, 0.60),
		oncologyMetric("site-b", 10, 0.80, 0.60),
	}
	f.parts.parts = []contracts.Participation{
		{SiteID: "site-a", NCTID: "NCT00000001", RecruitmentStatus: "Completed", QualityScore: f64(0.80)},
		{SiteID: "site-b", NCTID: "NCT00000001", RecruitmentStatus: "Completed", QualityScore: f64(0.80)},
	}
	e := f.engine(*scoringconfig.Default())

	rec, err := e.Recommend(context.Background(), contracts.RecommendationRequest{Profile: bostonProfile()})
	require.NoError(t, err)
	require.Len(t, rec.Sites, 2)
	assert.Equal(t, rec.Sites[0].Scores.Overall, rec.Sites[1].Scores.Overall)
	assert.Equal(t, "site-a", rec.Sites[0].Site.ID)
	assert.Equal(t, "site-b", rec.Sites[1].Site.ID)
}

func TestRecommendMinQualityFilter(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())

	req := contracts.RecommendationRequest{Profile: bostonProfile(), MinQuality: f64(0.75)}
	rec, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)

	ids := rankedIDs(rec)
	assert.ElementsMatch(t, []string{"site-boston", "site-cambridge"}, ids)
	// site-la falls below the floor; site-novice has no quality data at
	// all, which a quality floor must also exclude.
	assert.NotContains(t, ids, "site-la")
	assert.NotContains(t, ids, "site-novice")
}

func TestRecommendExcludeSites(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())

	req := contracts.RecommendationRequest{
		Profile:      bostonProfile(),
		ExcludeSites: []string{"site-boston"},
	}
	rec, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)

	assert.NotContains(t, rankedIDs(rec), "site-boston")
	assert.Len(t, rec.Sites, 3)
}

func TestRecommendDiversifyByRegion(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())

	base := contracts.RecommendationRequest{Profile: bostonProfile(), Limit: 2}
	plain, err := e.Recommend(context.Background(), base)
	require.NoError(t, err)
	require.Equal(t, []string{"site-boston", "site-cambridge"}, rankedIDs(plain))

	base.Diversify = contracts.DiversifyRegion
	diverse, err := e.Recommend(context.Background(), base)
	require.NoError(t, err)
	// Second MA site gives way to the best site of another region.
	assert.Equal(t, []string{"site-boston", "site-la"}, rankedIDs(diverse))
}

func TestRecommendLimitHandling(t *testing.T) {
	f := newFixture()
	cfg := *scoringconfig.Default()
	cfg.Recommend.MaxLimit = 3
	e := f.engine(cfg)

	tests := []struct {
		name      string
		limit     int
		wantSites int
	}{
		{"explicit limit", 2, 2},
		{"zero falls back to default", 0, 3}, // default 10, capped by 4 sites then MaxLimit
		{"above max is clamped", 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := e.Recommend(context.Background(), contracts.RecommendationRequest{
				Profile: bostonProfile(),
				Limit:   tt.limit,
			})
			require.NoError(t, err)
			assert.Len(t, rec.Sites, tt.wantSites)
		})
	}
}

func TestRecommendTierCutoffs(t *testing.T) {
	cfg := *scoringconfig.Default()
	e := newFixture().engine(cfg)

	rec, err := e.Recommend(context.Background(), contracts.RecommendationRequest{Profile: bostonProfile()})
	require.NoError(t, err)

	for _, rs := range rec.Sites {
		var want string
		switch {
		case rs.Scores.Overall >= cfg.Recommend.TierTop:
			want = "top"
		case rs.Scores.Overall >= cfg.Recommend.TierStrong:
			want = "strong"
		case rs.Scores.Overall >= cfg.Recommend.TierModerate:
			want = "moderate"
		default:
			want = "marginal"
		}
		assert.Equal(t, want, rs.Tier, "site %s overall %.3f", rs.Site.ID, rs.Scores.Overall)
	}
}

func TestRecommendAnnotators(t *testing.T) {
	f := newFixture()
	e := NewEngine(*scoringconfig.Default(), Deps{
		Sites:   f.sites,
		Trials:  f.trials,
		Parts:   f.parts,
		Metrics: f.metrics,
		Clusters: &fakeClusters{labels: map[string]int{
			"site-boston": 2,
		}},
		Enroll: &fakeEnroll{estimates: map[string]contracts.EnrollmentEstimate{
			"site-boston": {ExpectedDays: 120, SuccessLikelihood: 0.8, Confidence: 0.6, Basis: "site"},
		}},
	})

	rec, err := e.Recommend(context.Background(), contracts.RecommendationRequest{Profile: bostonProfile()})
	require.NoError(t, err)

	top := rec.Sites[0]
	require.Equal(t, "site-boston", top.Site.ID)
	require.NotNil(t, top.ClusterLabel)
	assert.Equal(t, 2, *top.ClusterLabel)
	require.NotNil(t, top.Enrollment)
	assert.Equal(t, 120.0, top.Enrollment.ExpectedDays)

	// Sites the annotators know nothing about stay unannotated.
	assert.Nil(t, rec.Sites[1].ClusterLabel)
	assert.Nil(t, rec.Sites[1].Enrollment)
}

func TestRecommendNoviceGetsLowConfidence(t *testing.T) {
	e := newFixture().engine(*scoringconfig.Default())

	rec, err := e.Recommend(context.Background(), contracts.RecommendationRequest{Profile: bostonProfile()})
	require.NoError(t, err)

	for _, rs := range rec.Sites {
		if rs.Site.ID == "site-novice" {
			assert.True(t, rs.Scores.LowConfidence)
		} else {
			assert.False(t, rs.Scores.LowConfidence, "site %s", rs.Site.ID)
		}
	}
}

func rankedIDs(rec *contracts.Recommendation) []string {
	ids := make([]string, 0, len(rec.Sites))
	for _, rs := range rec.Sites {
		ids = append(ids, rs.Site.ID)
	}
	return ids
}
