// Package jobs holds the scheduled batch passes: the nightly metrics
// and quality recompute and the clustering and enrollment model runs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/internal/metrics"
	"github.com/clinscout/backend/internal/quality"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/pkg/logger"
)

const rescoreWorkers = 8

// RescoreJob recomputes quality scores and site metrics for every site
// nightly. Sites are independent units, so aggregation fans out over a
// worker pool; efficiency normalization needs the whole population and
// runs after the fan-in.
type RescoreJob struct {
	cfg    scoringconfig.Config
	sites  contracts.SiteRepository
	parts  contracts.ParticipationRepository
	trials contracts.TrialRepository

	metricRepo  contracts.MetricRepository
	qualityRepo contracts.QualityRepository

	cache  *match.ScoreCache
	logger *logger.Logger
}

// NewRescoreJob creates the nightly rescore job. Cache may be nil when
// Redis is disabled.
func NewRescoreJob(
	cfg scoringconfig.Config,
	sites contracts.SiteRepository,
	parts contracts.ParticipationRepository,
	trials contracts.TrialRepository,
	metricRepo contracts.MetricRepository,
	qualityRepo contracts.QualityRepository,
	cache *match.ScoreCache,
	log *logger.Logger,
) *RescoreJob {
	return &RescoreJob{
		cfg:         cfg,
		sites:       sites,
		parts:       parts,
		trials:      trials,
		metricRepo:  metricRepo,
		qualityRepo: qualityRepo,
		cache:       cache,
		logger:      log,
	}
}

// Name returns the job name.
func (j *RescoreJob) Name() string {
	return "nightly_rescore"
}

// Schedule returns the cron schedule (2 AM daily).
func (j *RescoreJob) Schedule() string {
	return "0 0 2 * * *"
}

type siteResult struct {
	siteID     string
	aggregates []metrics.AreaAggregate
	scores     []contracts.QualityScore
}

// Run executes the recompute.
func (j *RescoreJob) Run(ctx context.Context) error {
	asOf := time.Now().UTC()

	sites, err := j.sites.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	if len(sites) == 0 {
		j.logger.Info("No sites to rescore, skipping")
		return nil
	}

	parts, err := j.parts.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list participations: %w", err)
	}
	partsBySite := make(map[string][]contracts.Participation)
	nctSet := make(map[string]bool)
	for _, p := range parts {
		partsBySite[p.SiteID] = append(partsBySite[p.SiteID], p)
		nctSet[p.NCTID] = true
	}
	nctIDs := make([]string, 0, len(nctSet))
	for id := range nctSet {
		nctIDs = append(nctIDs, id)
	}
	trials, err := j.trials.ListByNCTIDs(ctx, nctIDs)
	if err != nil {
		return fmt.Errorf("list trials: %w", err)
	}

	aggregator := metrics.NewAggregator(j.cfg.Metrics)
	scorer := quality.NewScorer(j.cfg.Quality)

	// Fan out per site. Each unit touches only its own slice of the
	// inputs and writes only its own result slot.
	results := make([]siteResult, len(sites))
	sem := make(chan struct{}, rescoreWorkers)
	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, siteID string) {
			defer wg.Done()
			defer func() { <-sem }()

			siteParts := partsBySite[siteID]
			res := siteResult{
				siteID:     siteID,
				aggregates: aggregator.Aggregate(siteID, siteParts, trials, asOf),
			}
			for k := range siteParts {
				trial, ok := trials[siteParts[k].NCTID]
				if !ok {
					continue
				}
				res.scores = append(res.scores, scorer.Score(&trial, &siteParts[k], asOf))
			}
			results[i] = res
		}(i, site.ID)
	}
	wg.Wait()

	// Efficiency is peer-relative, so normalization runs over the full
	// population after the fan-in.
	var allAggregates []metrics.AreaAggregate
	var allScores []contracts.QualityScore
	for _, res := range results {
		allAggregates = append(allAggregates, res.aggregates...)
		allScores = append(allScores, res.scores...)
	}
	rows := aggregator.Normalize(allAggregates)

	if err := j.metricRepo.Save(ctx, rows); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	if err := j.qualityRepo.Save(ctx, allScores); err != nil {
		return fmt.Errorf("save quality scores: %w", err)
	}

	// Recomputed sites must not serve stale match scores.
	if j.cache != nil {
		for _, site := range sites {
			if err := j.cache.InvalidateSite(ctx, site.ID); err != nil {
				j.logger.WithError(err).WithField("site", site.ID).Warn("cache invalidation failed")
			}
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"sites":          len(sites),
		"metric_rows":    len(rows),
		"quality_scores": len(allScores),
	}).Info("Nightly rescore completed")

	return nil
}
