package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clinscout",
	Short: "ClinScout - clinical trial site scoring and recommendation engine",
	Long: `ClinScout Unified CLI

Scores clinical trial sites from historical participation records and
ranks them against a sponsor's target trial profile.

Usage:
  go run ./cmd/clinscout [command]

Examples:
  go run ./cmd/clinscout api
  go run ./cmd/clinscout score
  go run ./cmd/clinscout recommend --area oncology --phase "phase 2"
  go run ./cmd/clinscout status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
