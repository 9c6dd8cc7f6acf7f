package contracts

import (
	"strings"
	"time"
)

// Trial represents a registered clinical study. Read-only input to scoring.
// Conditions and Interventions are sets of strings; order is not significant
// but is preserved as received for display.
type Trial struct {
	NCTID            string     `json:"nct_id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	Phase            string     `json:"phase"`
	StudyType        string     `json:"study_type"`
	Conditions       []string   `json:"conditions"`
	Interventions    []string   `json:"interventions"`
	EnrollmentCount  *int       `json:"enrollment_count,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	CompletionDate   *time.Time `json:"completion_date,omitempty"`
	LastUpdatePosted *time.Time `json:"last_update_posted,omitempty"`
	Sponsor          string     `json:"sponsor"`
}

// Recruitment status classes, lower-cased.
const (
	StatusCompleted  = "completed"
	StatusTerminated = "terminated"
	StatusWithdrawn  = "withdrawn"
	StatusRecruiting = "recruiting"
)

// Participation links one site to one trial. A site may have zero
// participations; scoring must treat that as the cold-start case.
type Participation struct {
	SiteID            string     `json:"site_id"`
	NCTID             string     `json:"nct_id"`
	Role              string     `json:"role"`
	RecruitmentStatus string     `json:"recruitment_status"`
	ActualEnrollment  *int       `json:"actual_enrollment,omitempty"`
	EnrollStart       *time.Time `json:"enroll_start,omitempty"`
	EnrollEnd         *time.Time `json:"enroll_end,omitempty"`
	QualityScore      *float64   `json:"quality_score,omitempty"`
}

// StatusClass buckets the raw recruitment status into the counters used by
// the metrics aggregator. Unknown statuses return an empty string and are
// counted only toward the total.
func (p *Participation) StatusClass() string {
	return StatusClassOf(p.RecruitmentStatus)
}

// StatusClassOf buckets any raw status string the same way.
func StatusClassOf(status string) string {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, StatusCompleted):
		return StatusCompleted
	case strings.Contains(s, StatusTerminated):
		return StatusTerminated
	case strings.Contains(s, StatusWithdrawn):
		return StatusWithdrawn
	}
	return ""
}

// EnrollmentDurationDays returns the enrollment window length in days, or
// false when either endpoint is missing or the window is inverted.
func (p *Participation) EnrollmentDurationDays() (float64, bool) {
	if p.EnrollStart == nil || p.EnrollEnd == nil {
		return 0, false
	}
	d := p.EnrollEnd.Sub(*p.EnrollStart)
	if d < 0 {
		return 0, false
	}
	return d.Hours() / 24, true
}
