// Package match computes per-site compatibility scores against a target
// trial profile along four inspectable dimensions. Scores are pure
// functions of the site's assembled history and the profile, so a cached
// score keyed by (site, profile, config) never goes stale silently.
package match

import (
	"math"
	"strings"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

// SiteHistory is the scoring view of one site: its metric rows plus the
// trial-level distributions the per-dimension scores need.
type SiteHistory struct {
	Site contracts.Site

	// Metrics holds the site's per-area rows.
	Metrics []contracts.SiteMetric

	// PhaseCounts maps normalized phase strings to trial counts.
	PhaseCounts map[string]int

	// InterventionTypes is the distinct set of historical intervention
	// types, lower-cased.
	InterventionTypes []string

	// Conditions is the distinct set of historical condition strings.
	Conditions []string

	// AvgQuality is the mean data-quality score across the site's
	// records, nil when nothing has been scored yet.
	AvgQuality *float64
}

// TotalTrials sums the site's study counts across areas. A trial spanning
// several areas counts once per area; the total is used as a relative
// denominator, not an absolute census.
func (h *SiteHistory) TotalTrials() int {
	total := 0
	for _, m := range h.Metrics {
		total += m.TotalStudies
	}
	return total
}

// areaMetric returns the site's row for one area, nil when absent.
func (h *SiteHistory) areaMetric(area string) *contracts.SiteMetric {
	for i := range h.Metrics {
		if strings.EqualFold(h.Metrics[i].TherapeuticArea, area) {
			return &h.Metrics[i]
		}
	}
	return nil
}

// Scorer computes MatchScores.
type Scorer struct {
	cfg scoringconfig.Match
}

// NewScorer creates a Scorer from the match config section.
func NewScorer(cfg scoringconfig.Match) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the four sub-scores and the weighted overall for one
// site. Every component and the overall land in [0,1]. A site with no
// relevant history gets a defined low-confidence score, never a crash
// and never an automatic zero on dimensions it has no evidence against.
func (s *Scorer) Score(hist SiteHistory, profile contracts.TargetProfile) contracts.MatchScore {
	p := profile.Normalize()

	ms := contracts.MatchScore{
		SiteID:       hist.Site.ID,
		Therapeutic:  s.therapeutic(hist, p),
		Phase:        s.phase(hist, p),
		Intervention: s.intervention(hist, p),
		Geographic:   s.geographic(hist.Site, p),
	}

	area := ResolveArea(p)
	areaRow := hist.areaMetric(area)
	if areaRow == nil || areaRow.TotalStudies < s.cfg.MinTrialsConf {
		ms.LowConfidence = true
	}

	w := s.cfg.Weights
	base := w.Therapeutic*ms.Therapeutic +
		w.Phase*ms.Phase +
		w.Intervention*ms.Intervention +
		w.Geographic*ms.Geographic +
		w.Quality*s.quality(hist)

	ms.Overall = clamp01(base * s.experienceAdjustment(areaRow))
	return ms
}

// ResolveArea maps the profile to a taxonomy area, deriving it from the
// first condition when the caller left the area blank.
func ResolveArea(p contracts.TargetProfile) string {
	if p.TherapeuticArea != "" {
		for _, known := range taxonomy.Areas() {
			if strings.EqualFold(known, p.TherapeuticArea) {
				return known
			}
		}
		return taxonomy.AreaForCondition(p.TherapeuticArea)
	}
	if len(p.Conditions) > 0 {
		return taxonomy.AreaForCondition(p.Conditions[0])
	}
	return taxonomy.AreaOther
}

// therapeutic measures how much of the site's history lives in the
// target area, with partial credit for adjacent areas and related
// conditions. Zero history is the only way to score exactly zero; any
// history keeps the floor.
func (s *Scorer) therapeutic(hist SiteHistory, p contracts.TargetProfile) float64 {
	total := hist.TotalTrials()
	if total == 0 {
		return 0
	}

	area := ResolveArea(p)
	score := 0.0
	if m := hist.areaMetric(area); m != nil {
		score = float64(m.TotalStudies) / float64(total)
	}
	for _, rel := range taxonomy.RelatedAreas(area) {
		if m := hist.areaMetric(rel); m != nil {
			score += s.cfg.RelatedCredit * float64(m.TotalStudies) / float64(total)
		}
	}

	// Specific target conditions refine the area-level share: half the
	// weight moves to condition-level similarity.
	if len(p.Conditions) > 0 && len(hist.Conditions) > 0 {
		score = 0.5*score + 0.5*s.conditionSimilarity(p.Conditions, hist.Conditions)
	}

	score = shrinkToNeutral(score, total)
	if score < s.cfg.HistoryFloor {
		score = s.cfg.HistoryFloor
	}
	return clamp01(score)
}

// shrinkToNeutral pulls a rate toward 0.5 by one pseudo-observation, so
// a perfect record over one trial ranks below a near-perfect record over
// many. n is the evidence count behind the rate.
func shrinkToNeutral(score float64, n int) float64 {
	return (float64(n)*score + 0.5) / (float64(n) + 1)
}

// conditionSimilarity gives full credit per exactly matched target
// condition and reduced credit for related (containment) matches.
func (s *Scorer) conditionSimilarity(target, site []string) float64 {
	siteSet := make(map[string]bool, len(site))
	for _, c := range site {
		siteSet[strings.ToLower(strings.TrimSpace(c))] = true
	}

	exact, related := 0, 0
	for _, tc := range target {
		if siteSet[tc] {
			exact++
			continue
		}
		for sc := range siteSet {
			if taxonomy.Related(tc, sc) {
				related++
				break
			}
		}
	}

	n := float64(len(target))
	return clamp01((float64(exact) + s.cfg.RelatedCredit*float64(related)) / n)
}

// phase credits each historical trial by its distance from the target
// phase: exact full, adjacent and distant at configured rates. No phase
// history at all scores zero.
func (s *Scorer) phase(hist SiteHistory, p contracts.TargetProfile) float64 {
	total := 0
	for _, n := range hist.PhaseCounts {
		total += n
	}
	if total == 0 || p.Phase == "" {
		if total == 0 {
			return 0
		}
		// No target phase requested: any phase history is acceptable.
		return 1
	}

	target, ok := phaseNumber(p.Phase)
	if !ok {
		return s.cfg.PhaseDistant
	}

	credit := 0.0
	for phase, n := range hist.PhaseCounts {
		credit += float64(n) * s.phaseCredit(target, phase)
	}
	return clamp01(shrinkToNeutral(credit/float64(total), total))
}

func (s *Scorer) phaseCredit(target int, phase string) float64 {
	num, ok := phaseNumber(phase)
	if !ok {
		return s.cfg.PhaseDistant
	}
	switch diff := abs(target - num); diff {
	case 0:
		return 1
	case 1:
		return s.cfg.PhaseAdjacent
	default:
		return s.cfg.PhaseDistant
	}
}

// phaseNumber extracts the numeric phase from strings like "phase2" or
// "phase1/phase2" (highest wins).
func phaseNumber(phase string) (int, bool) {
	norm := contracts.NormalizePhase(phase)
	best, found := 0, false
	for _, r := range norm {
		if r >= '1' && r <= '4' {
			n := int(r - '0')
			if n > best {
				best = n
			}
			found = true
		}
	}
	return best, found
}

// intervention is the Jaccard similarity between the site's historical
// intervention-type set and the target type.
func (s *Scorer) intervention(hist SiteHistory, p contracts.TargetProfile) float64 {
	if p.InterventionType == "" {
		return 1
	}
	if len(hist.InterventionTypes) == 0 {
		return 0
	}

	siteSet := make(map[string]bool, len(hist.InterventionTypes))
	for _, t := range hist.InterventionTypes {
		siteSet[strings.ToLower(strings.TrimSpace(t))] = true
	}

	intersect := 0
	if siteSet[p.InterventionType] {
		intersect = 1
	}
	union := len(siteSet)
	if intersect == 0 {
		union++
	}
	return clamp01(float64(intersect) / float64(union))
}

// geographic scores by inverse distance when the profile constrains
// location. No target location means no penalty for anyone; a site with
// unknown coordinates scores neutral rather than worst-case.
func (s *Scorer) geographic(site contracts.Site, p contracts.TargetProfile) float64 {
	if p.Location == nil {
		return 1
	}
	if !site.HasCoordinates() {
		return 0.5
	}
	d := haversineKm(*site.Latitude, *site.Longitude, p.Location.Latitude, p.Location.Longitude)
	return clamp01(1 / (1 + d/s.cfg.GeoScaleKm))
}

// quality feeds the site's average data-quality into the blend, neutral
// when nothing has been scored.
func (s *Scorer) quality(hist SiteHistory) float64 {
	if hist.AvgQuality == nil {
		return 0.5
	}
	return clamp01(*hist.AvgQuality)
}

// experienceAdjustment scales the overall by the site's track record in
// the target area, bounded to the configured multiplier range so past
// performance tilts but never dominates the profile fit.
func (s *Scorer) experienceAdjustment(areaRow *contracts.SiteMetric) float64 {
	if areaRow == nil {
		return s.cfg.ExperienceMin
	}
	completion := 0.5
	if areaRow.CompletionRatio != nil {
		completion = *areaRow.CompletionRatio
	}
	blend := 0.5*completion + 0.5*areaRow.ExperienceIndex
	return s.cfg.ExperienceMin + (s.cfg.ExperienceMax-s.cfg.ExperienceMin)*clamp01(blend)
}

// DistanceKm returns the great-circle distance between a site and a
// point, or false when the site has no coordinates.
func DistanceKm(site contracts.Site, p contracts.GeoPoint) (float64, bool) {
	if !site.HasCoordinates() {
		return 0, false
	}
	return haversineKm(*site.Latitude, *site.Longitude, p.Latitude, p.Longitude), true
}

// haversineKm is the great-circle distance between two WGS84 points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
