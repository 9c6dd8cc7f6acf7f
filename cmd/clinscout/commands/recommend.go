package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinscout/backend/internal/cluster"
	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/enroll"
	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/internal/metrics"
	"github.com/clinscout/backend/internal/recommend"
	"github.com/clinscout/backend/internal/sitedata"
	"github.com/clinscout/backend/pkg/config"
	"github.com/clinscout/backend/pkg/database"
	"github.com/clinscout/backend/pkg/logger"
	"github.com/clinscout/backend/pkg/redis"
)

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank sites for a target trial profile",
	Long: `Runs one recommendation from the command line and prints the ranking.

Example:
  go run ./cmd/clinscout recommend --area oncology --phase "phase 2"
  go run ./cmd/clinscout recommend --condition "breast cancer" --intervention drug --limit 5
  go run ./cmd/clinscout recommend --area cardiology --lat 42.36 --lng -71.06 --max-distance 200 --json`,
	RunE: runRecommend,
}

var (
	recArea         string
	recPhase        string
	recIntervention string
	recConditions   []string
	recLat          float64
	recLng          float64
	recLimit        int
	recDiversify    string
	recMinQuality   float64
	recMaxDistance  float64
	recJSON         bool
)

func init() {
	rootCmd.AddCommand(recommendCmd)

	// Flags
	recommendCmd.Flags().StringVar(&recArea, "area", "", "therapeutic area (e.g. oncology)")
	recommendCmd.Flags().StringVar(&recPhase, "phase", "", "trial phase (e.g. \"phase 2\")")
	recommendCmd.Flags().StringVar(&recIntervention, "intervention", "", "intervention type (e.g. drug)")
	recommendCmd.Flags().StringSliceVar(&recConditions, "condition", nil, "target condition (repeatable)")
	recommendCmd.Flags().Float64Var(&recLat, "lat", 0, "trial location latitude")
	recommendCmd.Flags().Float64Var(&recLng, "lng", 0, "trial location longitude")
	recommendCmd.Flags().IntVar(&recLimit, "limit", 0, "maximum results (0 = default)")
	recommendCmd.Flags().StringVar(&recDiversify, "diversify", "", "diversify strategy (region|institution)")
	recommendCmd.Flags().Float64Var(&recMinQuality, "min-quality", 0, "minimum average quality score")
	recommendCmd.Flags().Float64Var(&recMaxDistance, "max-distance", 0, "maximum distance in km (needs --lat/--lng)")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "print the full result as JSON")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	if recArea == "" && len(recConditions) == 0 {
		return fmt.Errorf("either --area or --condition is required")
	}

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

	engine := recommend.NewEngine(*sc, recommend.Deps{
		Sites:    sitedata.NewSiteRepository(db.Pool),
		Trials:   sitedata.NewTrialRepository(db.Pool),
		Parts:    sitedata.NewParticipationRepository(db.Pool),
		Metrics:  metrics.NewRepository(db.Pool),
		Cache:    match.NewScoreCache(redis.NewCache(rdb, "clinscout"), scHash, sc.Recommend.CacheTTL()),
		Clusters: cluster.NewStore(sc.Cluster, cluster.NewRepository(db.Pool), log.Zerolog()),
		Enroll:   enroll.NewStore(sc.Enroll, enroll.NewRepository(db.Pool), log.Zerolog()),
		Logger:   log,
	})

	req := buildRecommendRequest()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rec, err := engine.Recommend(ctx, req)
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	if recJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	printRanking(rec)
	return nil
}

func buildRecommendRequest() contracts.RecommendationRequest {
	req := contracts.RecommendationRequest{
		Profile: contracts.TargetProfile{
			TherapeuticArea:  recArea,
			Conditions:       recConditions,
			Phase:            recPhase,
			InterventionType: recIntervention,
		},
		Limit:     recLimit,
		Diversify: recDiversify,
	}
	if recLat != 0 || recLng != 0 {
		req.Profile.Location = &contracts.GeoPoint{Latitude: recLat, Longitude: recLng}
	}
	if recMinQuality > 0 {
		req.MinQuality = &recMinQuality
	}
	if recMaxDistance > 0 {
		req.MaxDistanceKm = &recMaxDistance
	}
	return req
}

func printRanking(rec *contracts.Recommendation) {
	fmt.Printf("Request %s (%d sites)\n\n", rec.RequestID, len(rec.Sites))
	fmt.Printf("%-4s %-24s %-10s %-8s %-8s %s\n", "RANK", "SITE", "TIER", "OVERALL", "QUALITY", "NOTES")

	for _, s := range rec.Sites {
		quality := "-"
		if s.QualityScore != nil {
			quality = fmt.Sprintf("%.2f", *s.QualityScore)
		}
		notes := ""
		if s.Scores.LowConfidence {
			notes = "low confidence"
		}
		if s.Enrollment != nil {
			if notes != "" {
				notes += ", "
			}
			notes += fmt.Sprintf("~%.0f days to enroll", s.Enrollment.ExpectedDays)
		}
		fmt.Printf("%-4d %-24s %-10s %-8.2f %-8s %s\n",
			s.Rank, s.Site.ID, s.Tier, s.Scores.Overall, quality, notes)
	}
}
