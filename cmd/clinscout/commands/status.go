package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinscout/backend/pkg/config"
	"github.com/clinscout/backend/pkg/database"
	"github.com/clinscout/backend/pkg/redis"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database and cache connectivity",
	Long: `Checks the configured dependencies and prints a short report.

Checked:
- PostgreSQL connection and pool stats
- Redis connection (or disabled)
- site row count

Example:
  go run ./cmd/clinscout status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ClinScout Status ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	health, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	if !health.Healthy {
		return fmt.Errorf("database unhealthy: %s", health.Error)
	}
	fmt.Printf("Database:  ok (%d/%d conns in use, %v ping)\n",
		health.Stats.AcquiredConns, health.Stats.TotalConns, health.ResponseTime.Round(time.Millisecond))

	rdb, err := redis.New(cfg)
	if err != nil {
		fmt.Printf("Redis:     unavailable (%v)\n", err)
	} else {
		defer rdb.Close()
		if rdb.Enabled() {
			fmt.Println("Redis:     ok")
		} else {
			fmt.Println("Redis:     disabled")
		}
	}

	var siteCount int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM core.sites_master").Scan(&siteCount); err != nil {
		return fmt.Errorf("count sites: %w", err)
	}
	fmt.Printf("Sites:     %d\n", siteCount)

	return nil
}
