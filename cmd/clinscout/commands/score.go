package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/internal/metrics"
	"github.com/clinscout/backend/internal/quality"
	"github.com/clinscout/backend/internal/scheduler/jobs"
	"github.com/clinscout/backend/internal/sitedata"
	"github.com/clinscout/backend/pkg/config"
	"github.com/clinscout/backend/pkg/database"
	"github.com/clinscout/backend/pkg/logger"
	"github.com/clinscout/backend/pkg/redis"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute site metrics and quality scores",
	Long: `Runs the full rescore pass once and exits.

This command:
- recomputes per-area site metrics from participation history
- recomputes per-participation quality scores
- invalidates cached match scores for every rescored site

The same pass runs nightly under the api command's scheduler.

Example:
  go run ./cmd/clinscout score
  go run ./cmd/clinscout score --timeout 30m`,
	RunE: runScore,
}

var scoreTimeout time.Duration

func init() {
	rootCmd.AddCommand(scoreCmd)

	// Flags
	scoreCmd.Flags().DurationVar(&scoreTimeout, "timeout", 15*time.Minute, "rescore pass timeout")
}

func runScore(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ClinScout Rescore ===")

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

	rdb, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	sc, scHash, err := loadScoringProfile(cfg)
	if err != nil {
		return err
	}

	scoreCache := match.NewScoreCache(redis.NewCache(rdb, "clinscout"), scHash, sc.Recommend.CacheTTL())

	job := jobs.NewRescoreJob(
		*sc,
		sitedata.NewSiteRepository(db.Pool),
		sitedata.NewParticipationRepository(db.Pool),
		sitedata.NewTrialRepository(db.Pool),
		metrics.NewRepository(db.Pool),
		quality.NewRepository(db.Pool),
		scoreCache,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}

	fmt.Printf("\nRescore completed in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}
