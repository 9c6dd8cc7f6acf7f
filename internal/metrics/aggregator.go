// Package metrics rolls a site's trial participation history up into
// per-therapeutic-area performance rows. Aggregation is a deterministic
// full replace: the same inputs and as-of time always produce the same
// rows, so the nightly recompute is idempotent.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/internal/taxonomy"
)

// Aggregator computes SiteMetric rows from participation records.
type Aggregator struct {
	cfg scoringconfig.Metrics
}

// NewAggregator creates an Aggregator from the metrics config section.
func NewAggregator(cfg scoringconfig.Metrics) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// AreaAggregate is one (site, area) roll-up before peer normalization.
// RawEfficiency is the unnormalized planned-vs-actual pace ratio; it
// only becomes a comparable score once Normalize sees the area's peers.
type AreaAggregate struct {
	Metric        contracts.SiteMetric
	RawEfficiency *float64
}

// Aggregate rolls up one site's participations into per-area rows,
// sorted by area for stable output. A trial contributes to every
// therapeutic area its conditions map to, once per area.
func (a *Aggregator) Aggregate(siteID string, parts []contracts.Participation, trials map[string]contracts.Trial, asOf time.Time) []AreaAggregate {
	type areaAcc struct {
		total, completed, terminated, withdrawn int
		durations                               []float64
		paceRatios                              []float64
		decayedCount                            float64
	}
	accs := make(map[string]*areaAcc)

	for _, p := range parts {
		trial, ok := trials[p.NCTID]
		if !ok {
			continue
		}

		areas := trialAreas(trial)
		duration, hasDuration := p.EnrollmentDurationDays()
		pace, hasPace := paceRatio(trial, p)
		decay := a.recencyWeight(trial, p, asOf)

		for _, area := range areas {
			acc := accs[area]
			if acc == nil {
				acc = &areaAcc{}
				accs[area] = acc
			}

			acc.total++
			switch statusClass(trial, p) {
			case contracts.StatusCompleted:
				acc.completed++
			case contracts.StatusTerminated:
				acc.terminated++
			case contracts.StatusWithdrawn:
				acc.withdrawn++
			}

			if hasDuration {
				acc.durations = append(acc.durations, duration)
			}
			if hasPace {
				acc.paceRatios = append(acc.paceRatios, pace)
			}
			acc.decayedCount += decay
		}
	}

	areas := make([]string, 0, len(accs))
	for area := range accs {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	out := make([]AreaAggregate, 0, len(areas))
	for _, area := range areas {
		acc := accs[area]

		m := contracts.SiteMetric{
			SiteID:            siteID,
			TherapeuticArea:   area,
			TotalStudies:      acc.total,
			CompletedStudies:  acc.completed,
			TerminatedStudies: acc.terminated,
			WithdrawnStudies:  acc.withdrawn,
			ComputedAt:        asOf,
		}

		if acc.total > 0 {
			ratio := float64(acc.completed) / float64(acc.total)
			m.CompletionRatio = &ratio
		}
		if len(acc.durations) > 0 {
			avg := mean(acc.durations)
			m.AvgEnrollmentDays = &avg
		}

		// Saturating experience on the decayed count: old activity
		// fades, recent trials count near full weight.
		m.ExperienceIndex = acc.decayedCount / (acc.decayedCount + a.cfg.SaturationK)

		agg := AreaAggregate{Metric: m}
		if len(acc.paceRatios) > 0 {
			raw := mean(acc.paceRatios)
			agg.RawEfficiency = &raw
		}
		out = append(out, agg)
	}

	return out
}

// Normalize converts raw pace ratios into peer-relative efficiency
// scores per area. Areas with fewer evaluable peers than the configured
// minimum keep efficiency null rather than ranking against noise.
func (a *Aggregator) Normalize(aggs []AreaAggregate) []contracts.SiteMetric {
	byArea := make(map[string][]int)
	for i, agg := range aggs {
		if agg.RawEfficiency != nil {
			area := agg.Metric.TherapeuticArea
			byArea[area] = append(byArea[area], i)
		}
	}

	out := make([]contracts.SiteMetric, len(aggs))
	for i, agg := range aggs {
		out[i] = agg.Metric
	}

	for _, idxs := range byArea {
		if len(idxs) < a.cfg.MinPeersEfficiency {
			continue
		}
		for _, i := range idxs {
			score := percentileRank(*aggs[i].RawEfficiency, idxs, aggs)
			out[i].RecruitEfficiency = &score
		}
	}

	return out
}

// percentileRank places v among the area's raw values using midranks so
// ties share a score instead of depending on input order.
func percentileRank(v float64, idxs []int, aggs []AreaAggregate) float64 {
	below, equal := 0, 0
	for _, i := range idxs {
		other := *aggs[i].RawEfficiency
		switch {
		case other < v:
			below++
		case other == v:
			equal++
		}
	}
	// equal includes v itself.
	n := len(idxs)
	if n == 1 {
		return 0.5
	}
	return (float64(below) + 0.5*float64(equal-1)) / float64(n-1)
}

// recencyWeight decays a participation's contribution by the time since
// its enrollment window closed. Open or undated windows count full.
func (a *Aggregator) recencyWeight(trial contracts.Trial, p contracts.Participation, asOf time.Time) float64 {
	var ref time.Time
	switch {
	case p.EnrollEnd != nil:
		ref = *p.EnrollEnd
	case trial.CompletionDate != nil:
		ref = *trial.CompletionDate
	default:
		return 1
	}
	ageDays := asOf.Sub(ref).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 / a.cfg.RecencyHalfLifeDay * ageDays)
}

// paceRatio compares the trial's planned window with the site's actual
// enrollment window. Ratios above 1 mean the site enrolled faster than
// the trial planned.
func paceRatio(trial contracts.Trial, p contracts.Participation) (float64, bool) {
	if trial.StartDate == nil || trial.CompletionDate == nil {
		return 0, false
	}
	planned := trial.CompletionDate.Sub(*trial.StartDate).Hours() / 24
	actual, ok := p.EnrollmentDurationDays()
	if !ok || planned <= 0 || actual <= 0 {
		return 0, false
	}
	return planned / actual, true
}

// statusClass prefers the site's own recruitment status and falls back
// to the trial's registry status when the participation has none.
func statusClass(trial contracts.Trial, p contracts.Participation) string {
	if class := p.StatusClass(); class != "" {
		return class
	}
	return contracts.StatusClassOf(trial.Status)
}

// trialAreas returns the distinct therapeutic areas of a trial's
// conditions, sorted. Condition-less trials land in Other.
func trialAreas(trial contracts.Trial) []string {
	if len(trial.Conditions) == 0 {
		return []string{taxonomy.AreaOther}
	}
	set := make(map[string]struct{})
	for _, c := range trial.Conditions {
		set[taxonomy.AreaForCondition(c)] = struct{}{}
	}
	areas := make([]string, 0, len(set))
	for area := range set {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	return areas
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
