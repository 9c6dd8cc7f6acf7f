package commands

import (
	"fmt"

	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/pkg/config"
)

// loadScoringProfile loads the YAML scoring profile named by
// SCORING_CONFIG_PATH, or the built-in defaults when unset. The hash keys
// cached match scores, so a profile change invalidates the whole cache.
func loadScoringProfile(cfg *config.Config) (*scoringconfig.Config, string, error) {
	var (
		sc  *scoringconfig.Config
		err error
	)
	if cfg.ScoringConfigPath != "" {
		sc, _, err = scoringconfig.Load(cfg.ScoringConfigPath)
		if err != nil {
			return nil, "", fmt.Errorf("load scoring profile: %w", err)
		}
	} else {
		sc = scoringconfig.Default()
	}

	hash, err := scoringconfig.Hash(sc)
	if err != nil {
		return nil, "", fmt.Errorf("hash scoring profile: %w", err)
	}
	return sc, hash, nil
}
