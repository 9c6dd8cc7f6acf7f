// Package quality scores the reliability of each site↔trial record pair
// before that record influences matching. Scoring is pure and total:
// missing data lowers the score, it never fails the call.
package quality

import (
	"math"
	"time"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

// Scorer computes completeness, recency and consistency for one
// participation record against its trial.
type Scorer struct {
	cfg scoringconfig.Quality
}

// NewScorer creates a Scorer from the quality section of the config.
func NewScorer(cfg scoringconfig.Quality) *Scorer {
	return &Scorer{cfg: cfg}
}

// requiredField names one field the completeness check expects.
type requiredField struct {
	name    string
	present func(*contracts.Trial, *contracts.Participation) bool
}

var requiredFields = []requiredField{
	{"trial.phase", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return t.Phase != ""
	}},
	{"trial.status", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return t.Status != ""
	}},
	{"trial.conditions", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return len(t.Conditions) > 0
	}},
	{"trial.enrollment_count", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return t.EnrollmentCount != nil
	}},
	{"trial.start_date", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return t.StartDate != nil
	}},
	{"trial.completion_date", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return t.CompletionDate != nil
	}},
	{"trial.last_update_posted", func(t *contracts.Trial, _ *contracts.Participation) bool {
		return t.LastUpdatePosted != nil
	}},
	{"participation.actual_enrollment", func(_ *contracts.Trial, p *contracts.Participation) bool {
		return p.ActualEnrollment != nil
	}},
	{"participation.enroll_start", func(_ *contracts.Trial, p *contracts.Participation) bool {
		return p.EnrollStart != nil
	}},
	{"participation.enroll_end", func(_ *contracts.Trial, p *contracts.Participation) bool {
		return p.EnrollEnd != nil
	}},
}

// Score computes the quality score for one (site, trial) pair at the
// given reference time. asOf is explicit so batch runs and tests see
// identical recency.
func (s *Scorer) Score(trial *contracts.Trial, part *contracts.Participation, asOf time.Time) contracts.QualityScore {
	qs := contracts.QualityScore{
		SiteID:     part.SiteID,
		NCTID:      trial.NCTID,
		ComputedAt: asOf,
	}

	qs.Completeness, qs.MissingFields = s.completeness(trial, part)
	qs.Recency, qs.LagDays = s.recency(trial, asOf)
	qs.Consistency = s.consistency(trial, part)

	w := s.cfg.Weights
	qs.Overall = clamp01(w.Completeness*qs.Completeness +
		w.Recency*qs.Recency +
		w.Consistency*qs.Consistency)

	return qs
}

// completeness is the fraction of required fields that are present.
func (s *Scorer) completeness(trial *contracts.Trial, part *contracts.Participation) (float64, []string) {
	var missing []string
	for _, f := range requiredFields {
		if !f.present(trial, part) {
			missing = append(missing, f.name)
		}
	}
	present := len(requiredFields) - len(missing)
	return float64(present) / float64(len(requiredFields)), missing
}

// recency decays exponentially with the lag since the trial record was
// last updated. A record exactly one half-life old scores 0.5; a record
// with no update timestamp scores 0.
func (s *Scorer) recency(trial *contracts.Trial, asOf time.Time) (float64, *int) {
	if trial.LastUpdatePosted == nil {
		return 0, nil
	}
	lagDays := asOf.Sub(*trial.LastUpdatePosted).Hours() / 24
	if lagDays < 0 {
		lagDays = 0
	}
	lambda := math.Ln2 / s.cfg.RecencyHalfLifeDay
	lag := int(lagDays)
	return math.Exp(-lambda * lagDays), &lag
}

// consistency averages the cross-field checks that can be evaluated.
// Checks with a missing operand are skipped rather than penalized;
// completeness already charges for the absence.
func (s *Scorer) consistency(trial *contracts.Trial, part *contracts.Participation) float64 {
	var scores []float64

	// Site enrollment cannot plausibly exceed the trial total by much.
	if part.ActualEnrollment != nil && trial.EnrollmentCount != nil {
		scores = append(scores, s.discrepancyScore(float64(*part.ActualEnrollment), float64(*trial.EnrollmentCount)))
	}

	// Enrollment window must be ordered.
	if part.EnrollStart != nil && part.EnrollEnd != nil {
		if part.EnrollEnd.Before(*part.EnrollStart) {
			scores = append(scores, 0)
		} else {
			scores = append(scores, 1)
		}
	}

	// Trial dates must be ordered.
	if trial.StartDate != nil && trial.CompletionDate != nil {
		if trial.CompletionDate.Before(*trial.StartDate) {
			scores = append(scores, 0)
		} else {
			scores = append(scores, 1)
		}
	}

	if len(scores) == 0 {
		return 1
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// discrepancyScore turns the relative gap |a-b| / max(a,b) into a score
// that falls linearly to 0 at the configured max discrepancy.
func (s *Scorer) discrepancyScore(a, b float64) float64 {
	if a <= b {
		// A site enrolling a subset of the trial is expected, not a
		// discrepancy.
		return 1
	}
	if a == 0 && b == 0 {
		return 1
	}
	disc := math.Abs(a-b) / math.Max(a, b)
	if disc >= s.cfg.ConsistencyMaxDisc {
		return 0
	}
	return 1 - disc/s.cfg.ConsistencyMaxDisc
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
