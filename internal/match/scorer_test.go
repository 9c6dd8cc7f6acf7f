package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

func floatPtr(v float64) *float64 { return &v }

func newTestScorer() *Scorer {
	return NewScorer(scoringconfig.Default().Match)
}

// oncologyHistory is a site with a solid phase 2 oncology track record.
func oncologyHistory(siteID string, total, completed int) SiteHistory {
	ratio := float64(completed) / float64(total)
	return SiteHistory{
		Site: contracts.Site{
			ID:        siteID,
			Country:   "US",
			State:     "MA",
			Latitude:  floatPtr(42.36),
			Longitude: floatPtr(-71.06),
		},
		Metrics: []contracts.SiteMetric{{
			SiteID:           siteID,
			TherapeuticArea:  taxonomy.AreaOncology,
			TotalStudies:     total,
			CompletedStudies: completed,
			CompletionRatio:  &ratio,
			ExperienceIndex:  0.6,
		}},
		PhaseCounts:       map[string]int{"phase2": total},
		InterventionTypes: []string{"drug"},
		Conditions:        []string{"Breast Cancer", "Lung Cancer"},
		AvgQuality:        floatPtr(0.9),
	}
}

func oncologyProfile() contracts.TargetProfile {
	return contracts.TargetProfile{
		TherapeuticArea:  taxonomy.AreaOncology,
		Phase:            "Phase 2",
		InterventionType: "Drug",
	}
}

func TestScoreBounds(t *testing.T) {
	s := newTestScorer()

	histories := []SiteHistory{
		oncologyHistory("site-a", 12, 10),
		{Site: contracts.Site{ID: "empty"}},
	}
	profiles := []contracts.TargetProfile{
		oncologyProfile(),
		{TherapeuticArea: "Neurology", Phase: "phase4", InterventionType: "device",
			Location: &contracts.GeoPoint{Latitude: 0, Longitude: 0}},
		{},
	}

	for _, h := range histories {
		for _, p := range profiles {
			ms := s.Score(h, p)
			for name, v := range map[string]float64{
				"therapeutic":  ms.Therapeutic,
				"phase":        ms.Phase,
				"intervention": ms.Intervention,
				"geographic":   ms.Geographic,
				"overall":      ms.Overall,
			} {
				assert.GreaterOrEqual(t, v, 0.0, "%s for site %s", name, h.Site.ID)
				assert.LessOrEqual(t, v, 1.0, "%s for site %s", name, h.Site.ID)
			}
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := newTestScorer()
	h := oncologyHistory("site-a", 12, 10)
	p := oncologyProfile()

	assert.Equal(t, s.Score(h, p), s.Score(h, p))
}

func TestExperiencedSiteOutscoresNovice(t *testing.T) {
	s := newTestScorer()

	// Strong history: 10 completed of 12. Thin history: 1 of 1, low
	// experience index.
	strong := oncologyHistory("site-a", 12, 10)
	weak := oncologyHistory("site-b", 1, 1)
	weak.Metrics[0].ExperienceIndex = 0.1
	weak.PhaseCounts = map[string]int{"phase1": 1}

	p := oncologyProfile()
	a := s.Score(strong, p)
	b := s.Score(weak, p)

	assert.Greater(t, a.Phase, b.Phase)
	assert.Greater(t, a.Overall, b.Overall)
	assert.False(t, a.LowConfidence)
	assert.True(t, b.LowConfidence, "single trial is below the confidence minimum")
}

func TestZeroHistorySite(t *testing.T) {
	s := newTestScorer()
	h := SiteHistory{Site: contracts.Site{ID: "cold"}}

	ms := s.Score(h, oncologyProfile())

	assert.True(t, ms.LowConfidence)
	assert.Equal(t, 0.0, ms.Therapeutic)
	assert.Equal(t, 0.0, ms.Phase)
	assert.Equal(t, 1.0, ms.Geographic, "no location constraint, no penalty")
	assert.Greater(t, ms.Overall, 0.0, "geography and neutral quality keep it above zero")
}

func TestTherapeuticFloorForUnrelatedHistory(t *testing.T) {
	s := newTestScorer()
	h := oncologyHistory("site-a", 12, 10)

	p := contracts.TargetProfile{TherapeuticArea: taxonomy.AreaCardiology, Phase: "phase2"}
	ms := s.Score(h, p)

	cfg := scoringconfig.Default().Match
	assert.Equal(t, cfg.HistoryFloor, ms.Therapeutic,
		"unrelated history scores the floor, not zero")
}

func TestTherapeuticAdjacentAreaCredit(t *testing.T) {
	s := newTestScorer()
	cfg := scoringconfig.Default().Match

	// All 10 trials in Endocrinology, target Cardiology, no conditions.
	// Adjacent-area share earns the related credit, not the bare floor.
	h := oncologyHistory("site-a", 10, 8)
	h.Metrics[0].TherapeuticArea = taxonomy.AreaEndocrine
	h.Conditions = nil

	p := contracts.TargetProfile{TherapeuticArea: taxonomy.AreaCardiology}
	ms := s.Score(h, p)

	assert.InDelta(t, shrinkToNeutral(cfg.RelatedCredit, 10), ms.Therapeutic, 1e-9)
	assert.Greater(t, ms.Therapeutic, cfg.HistoryFloor)
}

func TestTherapeuticRelatedConditions(t *testing.T) {
	s := newTestScorer()

	// Split history so the area share alone cannot max the score.
	h := oncologyHistory("site-a", 12, 10)
	h.Metrics = append(h.Metrics, contracts.SiteMetric{
		SiteID:          "site-a",
		TherapeuticArea: taxonomy.AreaCardiology,
		TotalStudies:    12,
		ExperienceIndex: 0.4,
	})

	exact := contracts.TargetProfile{
		TherapeuticArea: taxonomy.AreaOncology,
		Conditions:      []string{"Breast Cancer"},
	}
	related := contracts.TargetProfile{
		TherapeuticArea: taxonomy.AreaOncology,
		Conditions:      []string{"Metastatic Breast Cancer"},
	}
	unrelated := contracts.TargetProfile{
		TherapeuticArea: taxonomy.AreaOncology,
		Conditions:      []string{"Pancreatic Cancer"},
	}

	exactScore := s.Score(h, exact).Therapeutic
	relatedScore := s.Score(h, related).Therapeutic
	unrelatedScore := s.Score(h, unrelated).Therapeutic

	assert.Greater(t, exactScore, relatedScore)
	assert.Greater(t, relatedScore, unrelatedScore)
	assert.Greater(t, unrelatedScore, 0.0)
}

func TestPhaseAdjacency(t *testing.T) {
	s := newTestScorer()
	cfg := scoringconfig.Default().Match
	h := oncologyHistory("site-a", 10, 8) // all phase2

	// Raw credits are shrunk toward neutral by one pseudo-observation.
	shrunk := func(raw float64) float64 { return (10*raw + 0.5) / 11 }

	tests := []struct {
		phase string
		want  float64
	}{
		{"Phase 2", shrunk(1.0)},
		{"PHASE3", shrunk(cfg.PhaseAdjacent)},
		{"phase 1", shrunk(cfg.PhaseAdjacent)},
		{"Phase 4", shrunk(cfg.PhaseDistant)},
	}

	for _, tc := range tests {
		p := contracts.TargetProfile{TherapeuticArea: taxonomy.AreaOncology, Phase: tc.phase}
		assert.InDelta(t, tc.want, s.Score(h, p).Phase, 1e-9, "phase=%s", tc.phase)
	}
}

func TestInterventionJaccard(t *testing.T) {
	s := newTestScorer()

	h := oncologyHistory("site-a", 12, 10)
	h.InterventionTypes = []string{"drug", "biological"}

	p := oncologyProfile() // drug
	ms := s.Score(h, p)
	assert.InDelta(t, 0.5, ms.Intervention, 1e-9, "intersection 1, union 2")

	h.InterventionTypes = []string{"device"}
	ms = s.Score(h, p)
	assert.Equal(t, 0.0, ms.Intervention)

	h.InterventionTypes = []string{"drug"}
	ms = s.Score(h, p)
	assert.Equal(t, 1.0, ms.Intervention)
}

func TestGeographicDistanceDecay(t *testing.T) {
	s := newTestScorer()
	h := oncologyHistory("site-a", 12, 10) // Boston

	// Exactly at the site.
	atSite := oncologyProfile()
	atSite.Location = &contracts.GeoPoint{Latitude: 42.36, Longitude: -71.06}
	assert.InDelta(t, 1.0, s.Score(h, atSite).Geographic, 1e-6)

	// Across the continent.
	far := oncologyProfile()
	far.Location = &contracts.GeoPoint{Latitude: 34.05, Longitude: -118.24}
	farScore := s.Score(h, far).Geographic
	assert.Less(t, farScore, 0.2)
	assert.Greater(t, farScore, 0.0)

	// Site without coordinates scores neutral under a location constraint.
	noCoords := h
	noCoords.Site.Latitude = nil
	noCoords.Site.Longitude = nil
	assert.Equal(t, 0.5, s.Score(noCoords, far).Geographic)
}

func TestCompletionRatioMonotonicity(t *testing.T) {
	s := newTestScorer()
	p := oncologyProfile()

	low := oncologyHistory("site-a", 10, 4)
	high := oncologyHistory("site-a", 10, 9)

	require.Equal(t, low.Metrics[0].ExperienceIndex, high.Metrics[0].ExperienceIndex)
	assert.GreaterOrEqual(t, s.Score(high, p).Overall, s.Score(low, p).Overall,
		"raising completion ratio must not lower the overall score")
}

func TestScenarioSiteAVersusSiteB(t *testing.T) {
	s := newTestScorer()

	// Site A: 10 completed + 2 terminated phase 2 oncology trials.
	a := oncologyHistory("site-a", 12, 10)
	a.Metrics[0].TerminatedStudies = 2

	// Site B: a single completed oncology trial.
	b := oncologyHistory("site-b", 1, 1)
	b.Metrics[0].ExperienceIndex = 0.1

	p := contracts.TargetProfile{TherapeuticArea: taxonomy.AreaOncology, Phase: "Phase 2"}

	scoreA := s.Score(a, p)
	scoreB := s.Score(b, p)

	assert.GreaterOrEqual(t, scoreA.Therapeutic, scoreB.Therapeutic)
	assert.GreaterOrEqual(t, scoreA.Phase, scoreB.Phase)
	assert.Greater(t, scoreA.Overall, scoreB.Overall)
}
