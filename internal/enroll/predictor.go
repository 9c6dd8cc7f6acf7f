package enroll

import (
	"math"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

// Predictor turns a committed statistics model into per-site estimates.
// Fallback order is site, area, global; a thin site sample is shrunk
// toward the area (or global) pattern instead of trusted outright.
type Predictor struct {
	cfg scoringconfig.Enroll
}

// NewPredictor creates a Predictor.
func NewPredictor(cfg scoringconfig.Enroll) *Predictor {
	return &Predictor{cfg: cfg}
}

// Estimate builds the annotation for one site in one area. Nil when the
// model has no statistics at any level.
func (p *Predictor) Estimate(model *Model, siteID, area string) *contracts.EnrollmentEstimate {
	if model == nil {
		return nil
	}

	prior, priorOK := model.Area[area]
	if !priorOK && model.Global != nil {
		prior, priorOK = *model.Global, true
	}

	if site, ok := model.Site[SiteKey(siteID, area)]; ok {
		est := &contracts.EnrollmentEstimate{
			ExpectedDays:      site.AvgDurationDays,
			SuccessLikelihood: site.SuccessRatio,
			Confidence:        p.confidence(site.SampleCount),
			Basis:             LevelSite,
		}
		if priorOK {
			est.ExpectedDays = p.shrink(site.AvgDurationDays, prior.AvgDurationDays, site.SampleCount)
			est.SuccessLikelihood = p.shrink(site.SuccessRatio, prior.SuccessRatio, site.SampleCount)
		}
		return est
	}

	if stats, ok := model.Area[area]; ok {
		return &contracts.EnrollmentEstimate{
			ExpectedDays:      stats.AvgDurationDays,
			SuccessLikelihood: stats.SuccessRatio,
			Confidence:        p.confidence(stats.SampleCount),
			Basis:             LevelArea,
		}
	}

	if model.Global != nil {
		return &contracts.EnrollmentEstimate{
			ExpectedDays:      model.Global.AvgDurationDays,
			SuccessLikelihood: model.Global.SuccessRatio,
			Confidence:        p.confidence(model.Global.SampleCount),
			Basis:             LevelGlobal,
		}
	}
	return nil
}

// shrink pulls a thin site sample toward the prior: weight = n/(n+K).
func (p *Predictor) shrink(sampleMean, priorMean float64, n int) float64 {
	weight := float64(n) / (float64(n) + p.cfg.ShrinkK)
	return weight*sampleMean + (1-weight)*priorMean
}

func (p *Predictor) confidence(sampleCount int) float64 {
	return math.Min(1.0, float64(sampleCount)/float64(p.cfg.ConfidenceMax))
}
