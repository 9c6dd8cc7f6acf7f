package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinscout/backend/internal/cluster"
	"github.com/clinscout/backend/internal/enroll"
	"github.com/clinscout/backend/internal/metrics"
	"github.com/clinscout/backend/internal/scheduler/jobs"
	"github.com/clinscout/backend/internal/sitedata"
	"github.com/clinscout/backend/pkg/config"
	"github.com/clinscout/backend/pkg/database"
	"github.com/clinscout/backend/pkg/logger"
)

// clusterCmd represents the cluster command
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Recompute the batch site models",
	Long: `Recomputes the k-means site cluster model and, optionally, the
enrollment statistics, then exits.

Both models are versioned in the database; the API serves the latest
committed version. The same passes run weekly under the api command's
scheduler.

Example:
  go run ./cmd/clinscout cluster
  go run ./cmd/clinscout cluster --enrollment-stats`,
	RunE: runCluster,
}

var (
	clusterEnrollmentStats bool
	clusterTimeout         time.Duration
)

func init() {
	rootCmd.AddCommand(clusterCmd)

	// Flags
	clusterCmd.Flags().BoolVar(&clusterEnrollmentStats, "enrollment-stats", false, "also recompute enrollment statistics")
	clusterCmd.Flags().DurationVar(&clusterTimeout, "timeout", 10*time.Minute, "batch pass timeout")
}

func runCluster(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ClinScout Batch Models ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	sc, _, err := loadScoringProfile(cfg)
	if err != nil {
		return err
	}

	siteRepo := sitedata.NewSiteRepository(db.Pool)
	partRepo := sitedata.NewParticipationRepository(db.Pool)
	trialRepo := sitedata.NewTrialRepository(db.Pool)
	metricRepo := metrics.NewRepository(db.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), clusterTimeout)
	defer cancel()

	clusterStore := cluster.NewStore(sc.Cluster, cluster.NewRepository(db.Pool), log.Zerolog())
	clusteringJob := jobs.NewClusteringJob(siteRepo, metricRepo, clusterStore, log)
	if err := clusteringJob.Run(ctx); err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}
	fmt.Println("Cluster model recomputed")

	if clusterEnrollmentStats {
		enrollStore := enroll.NewStore(sc.Enroll, enroll.NewRepository(db.Pool), log.Zerolog())
		statsJob := jobs.NewEnrollmentStatsJob(partRepo, trialRepo, enrollStore, log)
		if err := statsJob.Run(ctx); err != nil {
			return fmt.Errorf("enrollment stats failed: %w", err)
		}
		fmt.Println("Enrollment statistics recomputed")
	}

	return nil
}
