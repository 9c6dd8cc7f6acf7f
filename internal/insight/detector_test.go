package insight

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

func floatPtr(v float64) *float64 { return &v }

func newTestDetector() *Detector {
	return NewDetector(scoringconfig.Default().Insight)
}

// peerGroup builds n oncology rows with evenly spread completion ratios
// from 0.05·1 up to 0.05·n.
func peerGroup(n int) []contracts.SiteMetric {
	peers := make([]contracts.SiteMetric, n)
	for i := range peers {
		peers[i] = contracts.SiteMetric{
			SiteID:          fmt.Sprintf("site-%02d", i),
			TherapeuticArea: taxonomy.AreaOncology,
			TotalStudies:    10,
			CompletionRatio: floatPtr(0.05 * float64(i+1)),
			ExperienceIndex: 0.5,
		}
	}
	return peers
}

func TestDetectStrengthAtTop(t *testing.T) {
	d := newTestDetector()
	peers := peerGroup(10)
	top := &peers[9]

	strengths, weaknesses := d.Detect(top, peers)

	require.Len(t, strengths, 1)
	assert.Equal(t, "completion_ratio", strengths[0].Dimension)
	assert.Equal(t, taxonomy.AreaOncology, strengths[0].TherapeuticArea)
	assert.Equal(t, 1.0, strengths[0].Percentile)
	assert.Equal(t, 10, strengths[0].PeerCount)
	assert.NotEmpty(t, strengths[0].Statement)
	assert.Empty(t, weaknesses)
}

func TestDetectWeaknessAtBottom(t *testing.T) {
	d := newTestDetector()
	peers := peerGroup(10)
	bottom := &peers[0]

	strengths, weaknesses := d.Detect(bottom, peers)

	assert.Empty(t, strengths)
	require.Len(t, weaknesses, 1)
	assert.Equal(t, "completion_ratio", weaknesses[0].Dimension)
	assert.Equal(t, 0.0, weaknesses[0].Percentile)
}

func TestDetectMiddleIsQuiet(t *testing.T) {
	d := newTestDetector()
	peers := peerGroup(11)
	mid := &peers[5]

	strengths, weaknesses := d.Detect(mid, peers)
	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses)
}

func TestDetectSmallPeerGroupStaysSilent(t *testing.T) {
	d := newTestDetector()
	peers := peerGroup(4) // below the default minimum of 5
	bottom := &peers[0]

	strengths, weaknesses := d.Detect(bottom, peers)
	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses, "a thin peer group must not condemn anyone")
}

func TestDetectAllTiedFlagsNothing(t *testing.T) {
	d := newTestDetector()
	peers := make([]contracts.SiteMetric, 8)
	for i := range peers {
		peers[i] = contracts.SiteMetric{
			SiteID:          fmt.Sprintf("site-%d", i),
			TherapeuticArea: taxonomy.AreaOncology,
			CompletionRatio: floatPtr(0.7),
			ExperienceIndex: 0.5,
		}
	}

	strengths, weaknesses := d.Detect(&peers[0], peers)
	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses)
}

func TestDetectLowerIsBetterDimension(t *testing.T) {
	d := newTestDetector()
	peers := make([]contracts.SiteMetric, 10)
	for i := range peers {
		peers[i] = contracts.SiteMetric{
			SiteID:            fmt.Sprintf("site-%d", i),
			TherapeuticArea:   taxonomy.AreaOncology,
			ExperienceIndex:   0.5,
			AvgEnrollmentDays: floatPtr(100 + 30*float64(i)),
		}
	}
	fastest := &peers[0]

	strengths, _ := d.Detect(fastest, peers)
	require.Len(t, strengths, 1)
	assert.Equal(t, "enrollment_speed", strengths[0].Dimension)
	assert.Equal(t, 1.0, strengths[0].Percentile, "shortest duration ranks highest")
}

func TestDetectIgnoresOtherAreas(t *testing.T) {
	d := newTestDetector()
	peers := peerGroup(10)
	for i := 5; i < 10; i++ {
		peers[i].TherapeuticArea = taxonomy.AreaCardiology
	}
	site := &peers[0]

	// Only 5 oncology rows remain: exactly at the minimum, so the bottom
	// still gets flagged.
	strengths, weaknesses := d.Detect(site, peers)
	assert.Empty(t, strengths)
	require.Len(t, weaknesses, 1)
	assert.Equal(t, 5, weaknesses[0].PeerCount)
}

func TestDetectCapsFindings(t *testing.T) {
	cfg := scoringconfig.Default().Insight
	cfg.MaxFindings = 1
	d := NewDetector(cfg)

	peers := peerGroup(10)
	for i := range peers {
		peers[i].RecruitEfficiency = floatPtr(0.1 * float64(i))
		peers[i].AvgEnrollmentDays = floatPtr(400 - 30*float64(i))
	}
	top := &peers[9]

	strengths, _ := d.Detect(top, peers)
	assert.Len(t, strengths, 1)
}

func TestDetectInvestigatorStrengths(t *testing.T) {
	d := newTestDetector()
	inv := &contracts.InvestigatorSummary{
		SiteID:        "site-a",
		Count:         8,
		AvgHIndex:     22.5,
		AvgRecentPubs: 6.0,
	}

	strengths, weaknesses := d.DetectInvestigator(inv)

	require.Len(t, strengths, 2)
	assert.Equal(t, "avg_h_index", strengths[0].Dimension)
	assert.Equal(t, "recent_publications", strengths[1].Dimension)
	assert.Equal(t, 8, strengths[0].PeerCount)
	assert.Empty(t, weaknesses)
}

func TestDetectInvestigatorWeakHIndex(t *testing.T) {
	d := newTestDetector()
	inv := &contracts.InvestigatorSummary{SiteID: "site-b", Count: 3, AvgHIndex: 2.1}

	strengths, weaknesses := d.DetectInvestigator(inv)

	assert.Empty(t, strengths)
	require.Len(t, weaknesses, 1)
	assert.Equal(t, "avg_h_index", weaknesses[0].Dimension)
}

func TestDetectInvestigatorMiddleIsQuiet(t *testing.T) {
	d := newTestDetector()
	inv := &contracts.InvestigatorSummary{SiteID: "site-c", Count: 4, AvgHIndex: 9, AvgRecentPubs: 2}

	strengths, weaknesses := d.DetectInvestigator(inv)

	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses)
}

func TestDetectInvestigatorNoRecords(t *testing.T) {
	d := newTestDetector()

	strengths, weaknesses := d.DetectInvestigator(nil)
	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses)

	strengths, weaknesses = d.DetectInvestigator(&contracts.InvestigatorSummary{SiteID: "site-d"})
	assert.Empty(t, strengths)
	assert.Empty(t, weaknesses)
}
