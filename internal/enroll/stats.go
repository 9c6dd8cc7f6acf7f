// Package enroll estimates expected enrollment duration and success
// likelihood from historical completion patterns. Like clustering it is
// a batch model: statistics are recomputed on demand, committed as a
// version, and read by the recommendation engine as an annotation.
package enroll

import (
	"sort"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/taxonomy"
)

// Aggregation levels, from most to least specific.
const (
	LevelSite   = "site"
	LevelArea   = "area"
	LevelGlobal = "global"
)

// GlobalKey is the key of the single global-level row.
const GlobalKey = "ALL"

// Stats is one aggregation level's completion pattern. SampleCount is
// the number of classed participations behind the averages.
type Stats struct {
	AvgDurationDays float64 `json:"avg_duration_days"`
	SuccessRatio    float64 `json:"success_ratio"`
	SampleCount     int     `json:"sample_count"`
}

// StatRow is one persisted statistics row. Key is "siteID|area" at site
// level, the area name at area level and GlobalKey at global level.
type StatRow struct {
	Level string `json:"level"`
	Key   string `json:"key"`
	Stats
}

// SiteKey builds the site-level row key.
func SiteKey(siteID, area string) string {
	return siteID + "|" + area
}

type statsAcc struct {
	durationSum float64
	durationN   int
	successes   int
	classed     int
}

func (a *statsAcc) add(p contracts.Participation, trial contracts.Trial) {
	class := p.StatusClass()
	if class == "" {
		class = contracts.StatusClassOf(trial.Status)
	}
	switch class {
	case contracts.StatusCompleted:
		a.successes++
		a.classed++
	case contracts.StatusTerminated, contracts.StatusWithdrawn:
		a.classed++
	default:
		return
	}
	if d, ok := p.EnrollmentDurationDays(); ok {
		a.durationSum += d
		a.durationN++
	}
}

func (a *statsAcc) stats() (Stats, bool) {
	if a.classed == 0 {
		return Stats{}, false
	}
	s := Stats{
		SuccessRatio: float64(a.successes) / float64(a.classed),
		SampleCount:  a.classed,
	}
	if a.durationN > 0 {
		s.AvgDurationDays = a.durationSum / float64(a.durationN)
	}
	return s, true
}

// Compute aggregates completion patterns at the three levels from the
// full participation history. Only participations whose status resolves
// to a terminal class contribute; everything still recruiting is
// outcome-unknown and excluded.
func Compute(parts []contracts.Participation, trials map[string]contracts.Trial) []StatRow {
	site := make(map[string]*statsAcc)
	area := make(map[string]*statsAcc)
	global := &statsAcc{}

	acc := func(m map[string]*statsAcc, key string) *statsAcc {
		a, ok := m[key]
		if !ok {
			a = &statsAcc{}
			m[key] = a
		}
		return a
	}

	for _, p := range parts {
		trial, ok := trials[p.NCTID]
		if !ok {
			continue
		}
		areas := trialAreas(trial)
		for _, ar := range areas {
			acc(site, SiteKey(p.SiteID, ar)).add(p, trial)
			acc(area, ar).add(p, trial)
		}
		global.add(p, trial)
	}

	rows := make([]StatRow, 0, len(site)+len(area)+1)
	for key, a := range site {
		if s, ok := a.stats(); ok {
			rows = append(rows, StatRow{Level: LevelSite, Key: key, Stats: s})
		}
	}
	for key, a := range area {
		if s, ok := a.stats(); ok {
			rows = append(rows, StatRow{Level: LevelArea, Key: key, Stats: s})
		}
	}
	if s, ok := global.stats(); ok {
		rows = append(rows, StatRow{Level: LevelGlobal, Key: GlobalKey, Stats: s})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Level != rows[j].Level {
			return rows[i].Level < rows[j].Level
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
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
