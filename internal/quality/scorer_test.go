package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

func intPtr(v int) *int            { return &v }
func timePtr(t time.Time) *time.Time { return &t }

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func completeTrial() *contracts.Trial {
	return &contracts.Trial{
		NCTID:            "NCT00000001",
		Status:           contracts.StatusCompleted,
		Phase:            "PHASE3",
		Conditions:       []string{"Type 2 Diabetes"},
		EnrollmentCount:  intPtr(500),
		StartDate:        timePtr(asOf.AddDate(-2, 0, 0)),
		CompletionDate:   timePtr(asOf.AddDate(-1, 0, 0)),
		LastUpdatePosted: timePtr(asOf.AddDate(0, 0, -30)),
	}
}

func completeParticipation() *contracts.Participation {
	return &contracts.Participation{
		SiteID:           "site-1",
		NCTID:            "NCT00000001",
		ActualEnrollment: intPtr(40),
		EnrollStart:      timePtr(asOf.AddDate(-2, 0, 0)),
		EnrollEnd:        timePtr(asOf.AddDate(-1, -6, 0)),
	}
}

func newTestScorer() *Scorer {
	return NewScorer(scoringconfig.Default().Quality)
}

func TestScoreCompleteRecord(t *testing.T) {
	s := newTestScorer()
	qs := s.Score(completeTrial(), completeParticipation(), asOf)

	assert.Equal(t, "site-1", qs.SiteID)
	assert.Equal(t, "NCT00000001", qs.NCTID)
	assert.Equal(t, 1.0, qs.Completeness)
	assert.Empty(t, qs.MissingFields)
	assert.Equal(t, 1.0, qs.Consistency)
	assert.Greater(t, qs.Recency, 0.8, "30 days lag at 180 day half-life")
	assert.GreaterOrEqual(t, qs.Overall, 0.0)
	assert.LessOrEqual(t, qs.Overall, 1.0)
	if assert.NotNil(t, qs.LagDays) {
		assert.Equal(t, 30, *qs.LagDays)
	}
}

func TestScoreEmptyRecord(t *testing.T) {
	s := newTestScorer()
	trial := &contracts.Trial{NCTID: "NCT00000002"}
	part := &contracts.Participation{SiteID: "site-2", NCTID: "NCT00000002"}

	qs := s.Score(trial, part, asOf)

	assert.Equal(t, 0.0, qs.Completeness)
	assert.Len(t, qs.MissingFields, 10)
	assert.Equal(t, 0.0, qs.Recency)
	assert.Nil(t, qs.LagDays)
	// No evaluable cross-field checks: consistency stays neutral.
	assert.Equal(t, 1.0, qs.Consistency)
	assert.LessOrEqual(t, qs.Overall, 0.25)
}

func TestRecencyHalfLife(t *testing.T) {
	s := newTestScorer()
	trial := completeTrial()
	trial.LastUpdatePosted = timePtr(asOf.AddDate(0, 0, -180))

	qs := s.Score(trial, completeParticipation(), asOf)
	assert.InDelta(t, 0.5, qs.Recency, 1e-9)
}

func TestRecencyFutureTimestampClamped(t *testing.T) {
	s := newTestScorer()
	trial := completeTrial()
	trial.LastUpdatePosted = timePtr(asOf.AddDate(0, 0, 7))

	qs := s.Score(trial, completeParticipation(), asOf)
	assert.Equal(t, 1.0, qs.Recency)
	if assert.NotNil(t, qs.LagDays) {
		assert.Equal(t, 0, *qs.LagDays)
	}
}

func TestConsistencyPenalties(t *testing.T) {
	s := newTestScorer()

	t.Run("site enrollment exceeds trial total", func(t *testing.T) {
		trial := completeTrial()
		trial.EnrollmentCount = intPtr(100)
		part := completeParticipation()
		part.ActualEnrollment = intPtr(130)

		qs := s.Score(trial, part, asOf)
		assert.Less(t, qs.Consistency, 1.0)
	})

	t.Run("site enrollment far beyond trial total scores zero on that check", func(t *testing.T) {
		trial := completeTrial()
		trial.EnrollmentCount = intPtr(100)
		part := completeParticipation()
		part.ActualEnrollment = intPtr(1000)

		qs := s.Score(trial, part, asOf)
		// Discrepancy check 0, two date checks 1 each.
		assert.InDelta(t, 2.0/3.0, qs.Consistency, 1e-9)
	})

	t.Run("enrollment window reversed", func(t *testing.T) {
		part := completeParticipation()
		part.EnrollStart, part.EnrollEnd = part.EnrollEnd, part.EnrollStart

		qs := s.Score(completeTrial(), part, asOf)
		assert.InDelta(t, 2.0/3.0, qs.Consistency, 1e-9)
	})

	t.Run("subset enrollment is not a discrepancy", func(t *testing.T) {
		trial := completeTrial()
		trial.EnrollmentCount = intPtr(500)
		part := completeParticipation()
		part.ActualEnrollment = intPtr(5)

		qs := s.Score(trial, part, asOf)
		assert.Equal(t, 1.0, qs.Consistency)
	})
}

func TestScoreDeterministic(t *testing.T) {
	s := newTestScorer()
	a := s.Score(completeTrial(), completeParticipation(), asOf)
	b := s.Score(completeTrial(), completeParticipation(), asOf)
	assert.Equal(t, a, b)
}
