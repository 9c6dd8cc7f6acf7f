package scoringconfig

import "time"

// Config is the full scoring and recommendation configuration.
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Quality   Quality   `yaml:"quality" json:"quality"`
	Metrics   Metrics   `yaml:"metrics" json:"metrics"`
	Match     Match     `yaml:"match" json:"match"`
	Insight   Insight   `yaml:"insight" json:"insight"`
	Recommend Recommend `yaml:"recommend" json:"recommend"`
	Cluster   Cluster   `yaml:"cluster" json:"cluster"`
	Enroll    Enroll    `yaml:"enroll" json:"enroll"`
}

// Meta identifies the config for reproducibility.
type Meta struct {
	ProfileID string `yaml:"profile_id" json:"profile_id"`
	Version   string `yaml:"version" json:"version"`
}

// Quality controls data-quality scoring per (site, trial) record pair.
type Quality struct {
	Weights            QualityWeights `yaml:"weights" json:"weights"`
	RecencyHalfLifeDay float64        `yaml:"recency_half_life_days" json:"recency_half_life_days"`
	ConsistencyMaxDisc float64        `yaml:"consistency_max_discrepancy" json:"consistency_max_discrepancy"`
}

type QualityWeights struct {
	Completeness float64 `yaml:"completeness" json:"completeness"`
	Recency      float64 `yaml:"recency" json:"recency"`
	Consistency  float64 `yaml:"consistency" json:"consistency"`
}

// Sum returns the sum of the quality dimension weights.
func (w QualityWeights) Sum() float64 {
	return w.Completeness + w.Recency + w.Consistency
}

// Metrics controls historical performance aggregation.
type Metrics struct {
	// SaturationK is the trial count at which experience reaches half of
	// its maximum (n / (n + K)).
	SaturationK        float64 `yaml:"saturation_k" json:"saturation_k"`
	RecencyHalfLifeDay float64 `yaml:"recency_half_life_days" json:"recency_half_life_days"`
	MinPeersEfficiency int     `yaml:"min_peers_efficiency" json:"min_peers_efficiency"`
}

// Match controls the per-dimension match scores and their blend.
type Match struct {
	Weights       MatchWeights `yaml:"weights" json:"weights"`
	RelatedCredit float64     `yaml:"related_credit" json:"related_credit"`
	HistoryFloor  float64     `yaml:"history_floor" json:"history_floor"`
	PhaseAdjacent float64     `yaml:"phase_adjacent" json:"phase_adjacent"`
	PhaseDistant  float64     `yaml:"phase_distant" json:"phase_distant"`
	GeoScaleKm    float64     `yaml:"geo_scale_km" json:"geo_scale_km"`
	MinTrialsConf int         `yaml:"min_trials_confidence" json:"min_trials_confidence"`
	ExperienceMin float64     `yaml:"experience_min_mult" json:"experience_min_mult"`
	ExperienceMax float64     `yaml:"experience_max_mult" json:"experience_max_mult"`
}

type MatchWeights struct {
	Therapeutic  float64 `yaml:"therapeutic" json:"therapeutic"`
	Phase        float64 `yaml:"phase" json:"phase"`
	Intervention float64 `yaml:"intervention" json:"intervention"`
	Geographic   float64 `yaml:"geographic" json:"geographic"`
	Quality      float64 `yaml:"quality" json:"quality"`
}

// Sum returns the sum of the match dimension weights.
func (w MatchWeights) Sum() float64 {
	return w.Therapeutic + w.Phase + w.Intervention + w.Geographic + w.Quality
}

// Insight controls strength/weakness detection against area peers.
// Investigator thresholds are absolute, not peer-relative: h-index and
// publication rates carry their own established scales.
type Insight struct {
	StrengthPercentile float64 `yaml:"strength_percentile" json:"strength_percentile"`
	WeaknessPercentile float64 `yaml:"weakness_percentile" json:"weakness_percentile"`
	MinPeers           int     `yaml:"min_peers" json:"min_peers"`
	MaxFindings        int     `yaml:"max_findings" json:"max_findings"`
	HIndexStrength     float64 `yaml:"h_index_strength" json:"h_index_strength"`
	HIndexWeakness     float64 `yaml:"h_index_weakness" json:"h_index_weakness"`
	RecentPubsStrength float64 `yaml:"recent_pubs_strength" json:"recent_pubs_strength"`
}

// Recommend controls filtering, ranking, tiers and diversification.
type Recommend struct {
	DefaultLimit    int     `yaml:"default_limit" json:"default_limit"`
	MaxLimit        int     `yaml:"max_limit" json:"max_limit"`
	TierTop         float64 `yaml:"tier_top" json:"tier_top"`
	TierStrong      float64 `yaml:"tier_strong" json:"tier_strong"`
	TierModerate    float64 `yaml:"tier_moderate" json:"tier_moderate"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes" json:"cache_ttl_minutes"`
}

// CacheTTL returns the score cache TTL as a duration.
func (r Recommend) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLMinutes) * time.Minute
}

// Cluster controls the site segmentation batch model.
type Cluster struct {
	K             int   `yaml:"k" json:"k"`
	MaxIterations int   `yaml:"max_iterations" json:"max_iterations"`
	Seed          int64 `yaml:"seed" json:"seed"`
	MinSites      int   `yaml:"min_sites" json:"min_sites"`
}

// Enroll controls the enrollment duration estimator.
type Enroll struct {
	// ShrinkK blends site statistics toward the area mean (n / (n + K)).
	ShrinkK       float64 `yaml:"shrink_k" json:"shrink_k"`
	ConfidenceMax int     `yaml:"confidence_max" json:"confidence_max"`
}
