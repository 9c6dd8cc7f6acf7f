// Package insight derives human-interpretable strengths and weaknesses
// for a site by ranking its metrics against area peers, and turns score
// breakdowns into narrative text through an injected Narrator.
package insight

import (
	"fmt"
	"sort"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

// dimension is one comparable metric. Extract returns nil when the site
// has no value for it, which excludes the site from that comparison.
type dimension struct {
	name         string
	higherBetter bool
	extract      func(*contracts.SiteMetric) *float64
}

var dimensions = []dimension{
	{"completion_ratio", true, func(m *contracts.SiteMetric) *float64 {
		return m.CompletionRatio
	}},
	{"recruit_efficiency", true, func(m *contracts.SiteMetric) *float64 {
		return m.RecruitEfficiency
	}},
	{"experience_index", true, func(m *contracts.SiteMetric) *float64 {
		return &m.ExperienceIndex
	}},
	{"enrollment_speed", false, func(m *contracts.SiteMetric) *float64 {
		// Lower average duration is better.
		return m.AvgEnrollmentDays
	}},
}

// Detector flags metrics where a site sits in the top or bottom tail of
// its area peer group.
type Detector struct {
	cfg scoringconfig.Insight
}

// NewDetector creates a Detector from the insight config section.
func NewDetector(cfg scoringconfig.Insight) *Detector {
	return &Detector{cfg: cfg}
}

// Detect compares one site's metric row against all rows of the same
// area (peers includes the site's own row). Peer groups smaller than the
// configured minimum produce no findings at all: silence, not a verdict.
func (d *Detector) Detect(site *contracts.SiteMetric, peers []contracts.SiteMetric) (strengths, weaknesses []contracts.Finding) {
	for _, dim := range dimensions {
		value := dim.extract(site)
		if value == nil {
			continue
		}

		var values []float64
		for i := range peers {
			if peers[i].TherapeuticArea != site.TherapeuticArea {
				continue
			}
			if v := dim.extract(&peers[i]); v != nil {
				values = append(values, *v)
			}
		}
		if len(values) < d.cfg.MinPeers {
			continue
		}

		pct := percentile(*value, values, dim.higherBetter)

		switch {
		case pct >= d.cfg.StrengthPercentile:
			strengths = append(strengths, d.finding(site, dim, *value, pct, len(values)))
		case pct <= d.cfg.WeaknessPercentile:
			weaknesses = append(weaknesses, d.finding(site, dim, *value, pct, len(values)))
		}
	}

	sortFindings(strengths)
	sortFindings(weaknesses)
	strengths = capFindings(strengths, d.cfg.MaxFindings)
	weaknesses = capFindings(weaknesses, d.cfg.MaxFindings)
	return strengths, weaknesses
}

// DetectInvestigator flags investigator strength from the site's
// affiliation summary. Thresholds are absolute (h-index and recent
// publications per investigator), so no peer group is needed; a site
// with no investigator records produces no findings.
func (d *Detector) DetectInvestigator(inv *contracts.InvestigatorSummary) (strengths, weaknesses []contracts.Finding) {
	if inv == nil || inv.Count == 0 {
		return nil, nil
	}

	if d.cfg.HIndexStrength > 0 && inv.AvgHIndex >= d.cfg.HIndexStrength {
		strengths = append(strengths, contracts.Finding{
			Dimension:       "avg_h_index",
			TherapeuticArea: "Overall",
			Value:           inv.AvgHIndex,
			PeerCount:       inv.Count,
			Statement:       fmt.Sprintf("high average investigator h-index (%.1f across %d investigators)", inv.AvgHIndex, inv.Count),
		})
	} else if d.cfg.HIndexWeakness > 0 && inv.AvgHIndex < d.cfg.HIndexWeakness {
		weaknesses = append(weaknesses, contracts.Finding{
			Dimension:       "avg_h_index",
			TherapeuticArea: "Overall",
			Value:           inv.AvgHIndex,
			PeerCount:       inv.Count,
			Statement:       fmt.Sprintf("low average investigator h-index (%.1f across %d investigators)", inv.AvgHIndex, inv.Count),
		})
	}

	if d.cfg.RecentPubsStrength > 0 && inv.AvgRecentPubs >= d.cfg.RecentPubsStrength {
		strengths = append(strengths, contracts.Finding{
			Dimension:       "recent_publications",
			TherapeuticArea: "Overall",
			Value:           inv.AvgRecentPubs,
			PeerCount:       inv.Count,
			Statement:       fmt.Sprintf("high recent publication rate (%.1f per investigator)", inv.AvgRecentPubs),
		})
	}

	return strengths, weaknesses
}

func (d *Detector) finding(site *contracts.SiteMetric, dim dimension, value, pct float64, peerCount int) contracts.Finding {
	return contracts.Finding{
		Dimension:       dim.name,
		TherapeuticArea: site.TherapeuticArea,
		Value:           value,
		Percentile:      pct,
		PeerCount:       peerCount,
		Statement: fmt.Sprintf("%s at the %.0fth percentile of %d %s peers (value %.2f)",
			dim.name, 100*pct, peerCount, site.TherapeuticArea, value),
	}
}

// percentile is the midrank position of v among values, flipped for
// lower-is-better dimensions. Full ties land at 0.5 and flag nothing.
func percentile(v float64, values []float64, higherBetter bool) float64 {
	if len(values) <= 1 {
		return 0.5
	}
	below, equal := 0, 0
	for _, other := range values {
		switch {
		case other < v:
			below++
		case other == v:
			equal++
		}
	}
	// equal counts v itself.
	pct := (float64(below) + 0.5*float64(equal-1)) / float64(len(values)-1)
	if !higherBetter {
		pct = 1 - pct
	}
	return pct
}

// sortFindings orders by distance from the median, strongest evidence
// first, with the dimension name as the deterministic tie-break.
func sortFindings(f []contracts.Finding) {
	sort.Slice(f, func(i, j int) bool {
		di := absFloat(f[i].Percentile - 0.5)
		dj := absFloat(f[j].Percentile - 0.5)
		if di != dj {
			return di > dj
		}
		return f[i].Dimension < f[j].Dimension
	})
}

func capFindings(f []contracts.Finding, max int) []contracts.Finding {
	if len(f) > max {
		return f[:max]
	}
	return f
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
