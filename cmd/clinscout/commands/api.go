package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinscout/backend/internal/api"
	"github.com/clinscout/backend/internal/api/handlers"
	"github.com/clinscout/backend/internal/cluster"
	"github.com/clinscout/backend/internal/enroll"
	"github.com/clinscout/backend/internal/insight"
	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/internal/metrics"
	"github.com/clinscout/backend/internal/quality"
	"github.com/clinscout/backend/internal/recommend"
	"github.com/clinscout/backend/internal/scheduler"
	"github.com/clinscout/backend/internal/scheduler/jobs"
	"github.com/clinscout/backend/internal/sitedata"
	"github.com/clinscout/backend/pkg/config"
	"github.com/clinscout/backend/pkg/database"
	"github.com/clinscout/backend/pkg/logger"
	"github.com/clinscout/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server together with the background scheduler.

This command:
- serves site, metric and recommendation endpoints
- runs the nightly rescore and weekly batch model jobs

Endpoints:
  GET  /health                      - Health check
  POST /api/recommendations         - Rank sites for a target profile
  GET  /api/sites                   - List sites
  GET  /api/sites/{id}/insights     - Strengths and weaknesses
  GET  /api/clusters                - Latest cluster model
  GET  /api/enrollment/{id}         - Enrollment estimate for a site

Example:
  go run ./cmd/clinscout api
  go run ./cmd/clinscout api --port 8084 --no-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	noScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
	apiCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve without the background scheduler")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ClinScout API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Connect to Redis (no-op client when disabled)
	rdb, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	// 5. Load the scoring profile
	sc, scHash, err := loadScoringProfile(cfg)
	if err != nil {
		return err
	}
	log.WithField("config_hash", scHash).Info("Scoring profile loaded")

	// 6. Create repositories
	siteRepo := sitedata.NewSiteRepository(db.Pool)
	trialRepo := sitedata.NewTrialRepository(db.Pool)
	partRepo := sitedata.NewParticipationRepository(db.Pool)
	investigatorRepo := sitedata.NewInvestigatorRepository(db.Pool)
	metricRepo := metrics.NewRepository(db.Pool)
	qualityRepo := quality.NewRepository(db.Pool)

	// 7. Create caches and batch model stores
	scoreCache := match.NewScoreCache(redis.NewCache(rdb, "clinscout"), scHash, sc.Recommend.CacheTTL())
	clusterStore := cluster.NewStore(sc.Cluster, cluster.NewRepository(db.Pool), log.Zerolog())
	enrollStore := enroll.NewStore(sc.Enroll, enroll.NewRepository(db.Pool), log.Zerolog())

	// 8. Create the recommendation engine
	engine := recommend.NewEngine(*sc, recommend.Deps{
		Sites:    siteRepo,
		Trials:   trialRepo,
		Parts:    partRepo,
		Metrics:  metricRepo,
		Cache:    scoreCache,
		Clusters: clusterStore,
		Enroll:   enrollStore,
		Logger:   log,
	})

	// 9. Create the narrator (optional, needs an API key)
	var narrator insight.Narrator
	if n, err := insight.NewAnthropicNarrator(cfg.Anthropic); err != nil {
		log.WithError(err).Warn("Narrative generation disabled")
		narrator = insight.NoopNarrator{}
	} else {
		narrator = n
	}

	// 10. Create the scheduler
	var sched *scheduler.Scheduler
	if !noScheduler {
		sched = scheduler.New(log)
		jobList := []scheduler.Job{
			jobs.NewRescoreJob(*sc, siteRepo, partRepo, trialRepo, metricRepo, qualityRepo, scoreCache, log),
			jobs.NewClusteringJob(siteRepo, metricRepo, clusterStore, log),
			jobs.NewEnrollmentStatsJob(partRepo, trialRepo, enrollStore, log),
		}
		for _, job := range jobList {
			if err := sched.AddJob(job); err != nil {
				return fmt.Errorf("register job %s: %w", job.Name(), err)
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	// 11. Create handlers and router
	recommendHandler := handlers.NewRecommendHandler(engine, narrator, log)
	siteHandler := handlers.NewSiteHandler(siteRepo, metricRepo, qualityRepo, investigatorRepo, insight.NewDetector(sc.Insight), log)
	modelHandler := handlers.NewModelHandler(clusterStore, enrollStore, log)
	statusHandler := handlers.NewStatusHandler(db, rdb, sched, log)

	router := api.NewRouter(recommendHandler, siteHandler, modelHandler, statusHandler, log)

	// 12. Start server with graceful shutdown
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\nServer running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
