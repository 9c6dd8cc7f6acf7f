package contracts

import (
	"fmt"
	"time"
)

// SiteMetric is one row per (site, therapeutic area): the rolled-up
// performance of a site's historical participation in that area.
// Recompute is a full replace per key, never an append.
type SiteMetric struct {
	SiteID          string `json:"site_id"`
	TherapeuticArea string `json:"therapeutic_area"`

	TotalStudies      int `json:"total_studies"`
	CompletedStudies  int `json:"completed_studies"`
	TerminatedStudies int `json:"terminated_studies"`
	WithdrawnStudies  int `json:"withdrawn_studies"`

	// Nil when the site has no usable data for the field. Nil propagates
	// downstream as "unknown" at reduced confidence, never as zero.
	AvgEnrollmentDays *float64 `json:"avg_enrollment_days,omitempty"`
	CompletionRatio   *float64 `json:"completion_ratio,omitempty"`
	RecruitEfficiency *float64 `json:"recruit_efficiency,omitempty"`

	ExperienceIndex float64   `json:"experience_index"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Validate enforces the count invariants.
func (m *SiteMetric) Validate() error {
	if m.TotalStudies < 0 || m.CompletedStudies < 0 || m.TerminatedStudies < 0 || m.WithdrawnStudies < 0 {
		return fmt.Errorf("site %s area %s: negative study count", m.SiteID, m.TherapeuticArea)
	}
	if m.CompletedStudies+m.TerminatedStudies+m.WithdrawnStudies > m.TotalStudies {
		return fmt.Errorf("site %s area %s: status counts exceed total %d", m.SiteID, m.TherapeuticArea, m.TotalStudies)
	}
	return nil
}

// QualityScore is one row per (site, trial): completeness, recency and
// consistency of the submitted record, recomputed on each ingestion cycle.
type QualityScore struct {
	SiteID string `json:"site_id"`
	NCTID  string `json:"nct_id"`

	Completeness float64 `json:"completeness"`
	Recency      float64 `json:"recency"`
	Consistency  float64 `json:"consistency"`
	Overall      float64 `json:"overall"`

	MissingFields []string `json:"missing_fields"`
	LagDays       *int     `json:"lag_days,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
}
