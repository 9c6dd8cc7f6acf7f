package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinscout/backend/internal/cluster"
	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/enroll"
	"github.com/clinscout/backend/pkg/logger"
)

// ClusteringJob runs the weekly site segmentation pass.
type ClusteringJob struct {
	sites   contracts.SiteRepository
	metrics contracts.MetricRepository
	store   *cluster.Store
	logger  *logger.Logger
}

// NewClusteringJob creates the clustering batch job.
func NewClusteringJob(sites contracts.SiteRepository, metrics contracts.MetricRepository, store *cluster.Store, log *logger.Logger) *ClusteringJob {
	return &ClusteringJob{sites: sites, metrics: metrics, store: store, logger: log}
}

// Name returns the job name.
func (j *ClusteringJob) Name() string {
	return "site_clustering"
}

// Schedule returns the cron schedule (3 AM every Sunday, after the
// nightly rescore).
func (j *ClusteringJob) Schedule() string {
	return "0 0 3 * * 0"
}

// Run executes the re-clustering pass.
func (j *ClusteringJob) Run(ctx context.Context) error {
	sites, err := j.sites.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	rows, err := j.metrics.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list metrics: %w", err)
	}

	model, err := j.store.Recompute(ctx, sites, rows)
	if errors.Is(err, cluster.ErrTooFewSites) {
		j.logger.WithField("sites", len(sites)).Info("Site population too small, skipping clustering")
		return nil
	}
	if err != nil {
		return fmt.Errorf("recompute clusters: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"version":  model.Version,
		"clusters": len(model.Sizes),
	}).Info("Clustering pass completed")

	return nil
}

// EnrollmentStatsJob rebuilds the enrollment duration statistics.
type EnrollmentStatsJob struct {
	parts  contracts.ParticipationRepository
	trials contracts.TrialRepository
	store  *enroll.Store
	logger *logger.Logger
}

// NewEnrollmentStatsJob creates the enrollment statistics batch job.
func NewEnrollmentStatsJob(parts contracts.ParticipationRepository, trials contracts.TrialRepository, store *enroll.Store, log *logger.Logger) *EnrollmentStatsJob {
	return &EnrollmentStatsJob{parts: parts, trials: trials, store: store, logger: log}
}

// Name returns the job name.
func (j *EnrollmentStatsJob) Name() string {
	return "enrollment_stats"
}

// Schedule returns the cron schedule (3:30 AM every Sunday).
func (j *EnrollmentStatsJob) Schedule() string {
	return "0 30 3 * * 0"
}

// Run executes the statistics rebuild.
func (j *EnrollmentStatsJob) Run(ctx context.Context) error {
	parts, err := j.parts.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list participations: %w", err)
	}

	nctSet := make(map[string]bool)
	for _, p := range parts {
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

	model, err := j.store.Recompute(ctx, parts, trials)
	if err != nil {
		return fmt.Errorf("recompute enrollment stats: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"version":    model.Version,
		"site_rows":  len(model.Site),
		"area_rows":  len(model.Area),
		"has_global": model.Global != nil,
	}).Info("Enrollment statistics pass completed")

	return nil
}
