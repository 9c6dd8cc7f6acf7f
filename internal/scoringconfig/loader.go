package scoringconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML file and returns the Config with its raw bytes.
// KnownFields(true) makes typos and stale fields fail immediately.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, data, err
	}

	return &cfg, data, nil
}

// Hash generates a SHA256 hash from the Config (canonical JSON).
// Struct marshaling keeps field order deterministic.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Meta: Meta{
			ProfileID: "default",
			Version:   "1",
		},
		Quality: Quality{
			Weights: QualityWeights{
				Completeness: 0.5,
				Recency:      0.3,
				Consistency:  0.2,
			},
			RecencyHalfLifeDay: 180,
			ConsistencyMaxDisc: 0.5,
		},
		Metrics: Metrics{
			SaturationK:        10,
			RecencyHalfLifeDay: 730,
			MinPeersEfficiency: 3,
		},
		Match: Match{
			Weights: MatchWeights{
				Therapeutic:  0.35,
				Phase:        0.20,
				Intervention: 0.20,
				Geographic:   0.15,
				Quality:      0.10,
			},
			RelatedCredit: 0.5,
			HistoryFloor:  0.05,
			PhaseAdjacent: 0.7,
			PhaseDistant:  0.4,
			GeoScaleKm:    500,
			MinTrialsConf: 3,
			ExperienceMin: 0.8,
			ExperienceMax: 1.2,
		},
		Insight: Insight{
			StrengthPercentile: 0.75,
			WeaknessPercentile: 0.25,
			MinPeers:           5,
			MaxFindings:        3,
			HIndexStrength:     15,
			HIndexWeakness:     5,
			RecentPubsStrength: 5,
		},
		Recommend: Recommend{
			DefaultLimit:    10,
			MaxLimit:        100,
			TierTop:         0.8,
			TierStrong:      0.6,
			TierModerate:    0.4,
			CacheTTLMinutes: 60,
		},
		Cluster: Cluster{
			K:             5,
			MaxIterations: 100,
			Seed:          42,
			MinSites:      25,
		},
		Enroll: Enroll{
			ShrinkK:       5,
			ConfidenceMax: 20,
		},
	}
}
