package scoringconfig

import (
	"fmt"
	"math"
)

// ValidationError reports a fatal configuration problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints. Failure aborts startup.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}

	// === Quality ===
	if math.Abs(cfg.Quality.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"quality.weights", fmt.Sprintf("must sum to 1.0, got %.4f", cfg.Quality.Weights.Sum())}
	}
	if err := validateUnitRange(cfg.Quality.Weights.Completeness, "quality.weights.completeness"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Quality.Weights.Recency, "quality.weights.recency"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Quality.Weights.Consistency, "quality.weights.consistency"); err != nil {
		return err
	}
	if cfg.Quality.RecencyHalfLifeDay <= 0 {
		return ValidationError{"quality.recency_half_life_days", "must be > 0"}
	}
	if cfg.Quality.ConsistencyMaxDisc <= 0 || cfg.Quality.ConsistencyMaxDisc > 1 {
		return ValidationError{"quality.consistency_max_discrepancy", "must be in (0, 1]"}
	}

	// === Metrics ===
	if cfg.Metrics.SaturationK <= 0 {
		return ValidationError{"metrics.saturation_k", "must be > 0"}
	}
	if cfg.Metrics.RecencyHalfLifeDay <= 0 {
		return ValidationError{"metrics.recency_half_life_days", "must be > 0"}
	}
	if cfg.Metrics.MinPeersEfficiency < 1 {
		return ValidationError{"metrics.min_peers_efficiency", "must be >= 1"}
	}

	// === Match ===
	if math.Abs(cfg.Match.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"match.weights", fmt.Sprintf("must sum to 1.0, got %.4f", cfg.Match.Weights.Sum())}
	}
	if err := validateUnitRange(cfg.Match.RelatedCredit, "match.related_credit"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Match.HistoryFloor, "match.history_floor"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Match.PhaseAdjacent, "match.phase_adjacent"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Match.PhaseDistant, "match.phase_distant"); err != nil {
		return err
	}
	if cfg.Match.PhaseDistant > cfg.Match.PhaseAdjacent {
		return ValidationError{"match", "phase_distant must be <= phase_adjacent"}
	}
	if cfg.Match.GeoScaleKm <= 0 {
		return ValidationError{"match.geo_scale_km", "must be > 0"}
	}
	if cfg.Match.MinTrialsConf < 1 {
		return ValidationError{"match.min_trials_confidence", "must be >= 1"}
	}
	if cfg.Match.ExperienceMin <= 0 || cfg.Match.ExperienceMin > 1 {
		return ValidationError{"match.experience_min_mult", "must be in (0, 1]"}
	}
	if cfg.Match.ExperienceMax < 1 {
		return ValidationError{"match.experience_max_mult", "must be >= 1"}
	}

	// === Insight ===
	if err := validateUnitRange(cfg.Insight.StrengthPercentile, "insight.strength_percentile"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Insight.WeaknessPercentile, "insight.weakness_percentile"); err != nil {
		return err
	}
	if cfg.Insight.WeaknessPercentile >= cfg.Insight.StrengthPercentile {
		return ValidationError{"insight", "weakness_percentile must be < strength_percentile"}
	}
	if cfg.Insight.MinPeers < 2 {
		return ValidationError{"insight.min_peers", "must be >= 2"}
	}
	if cfg.Insight.MaxFindings < 1 {
		return ValidationError{"insight.max_findings", "must be >= 1"}
	}
	// Zero disables the investigator thresholds.
	if cfg.Insight.HIndexStrength > 0 && cfg.Insight.HIndexWeakness >= cfg.Insight.HIndexStrength {
		return ValidationError{"insight", "h_index_weakness must be < h_index_strength"}
	}

	// === Recommend ===
	if cfg.Recommend.DefaultLimit < 1 {
		return ValidationError{"recommend.default_limit", "must be >= 1"}
	}
	if cfg.Recommend.MaxLimit < cfg.Recommend.DefaultLimit {
		return ValidationError{"recommend.max_limit", "must be >= default_limit"}
	}
	// Tier cutoffs must descend so each score falls in exactly one tier.
	if !(cfg.Recommend.TierTop > cfg.Recommend.TierStrong && cfg.Recommend.TierStrong > cfg.Recommend.TierModerate) {
		return ValidationError{"recommend", "tiers must satisfy tier_top > tier_strong > tier_moderate"}
	}
	if err := validateUnitRange(cfg.Recommend.TierTop, "recommend.tier_top"); err != nil {
		return err
	}
	if err := validateUnitRange(cfg.Recommend.TierModerate, "recommend.tier_moderate"); err != nil {
		return err
	}
	if cfg.Recommend.CacheTTLMinutes < 0 {
		return ValidationError{"recommend.cache_ttl_minutes", "must be >= 0"}
	}

	// === Cluster ===
	if cfg.Cluster.K < 2 {
		return ValidationError{"cluster.k", "must be >= 2"}
	}
	if cfg.Cluster.MaxIterations < 1 {
		return ValidationError{"cluster.max_iterations", "must be >= 1"}
	}
	if cfg.Cluster.MinSites < cfg.Cluster.K {
		return ValidationError{"cluster.min_sites", "must be >= k"}
	}

	// === Enroll ===
	if cfg.Enroll.ShrinkK <= 0 {
		return ValidationError{"enroll.shrink_k", "must be > 0"}
	}
	if cfg.Enroll.ConfidenceMax < 1 {
		return ValidationError{"enroll.confidence_max", "must be >= 1"}
	}

	return nil
}

func validateUnitRange(v float64, field string) error {
	if v < 0 || v > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
