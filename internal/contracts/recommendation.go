package contracts

import "time"

// Diversification modes for the portfolio pass.
const (
	DiversifyNone        = ""
	DiversifyRegion      = "region"
	DiversifyInstitution = "institution"
)

// RecommendationRequest carries the target profile plus optional hard
// constraints. Limit 0 means the configured default.
type RecommendationRequest struct {
	Profile       TargetProfile `json:"profile"`
	MinQuality    *float64      `json:"min_quality,omitempty"`
	MaxDistanceKm *float64      `json:"max_distance_km,omitempty"`
	ExcludeSites  []string      `json:"exclude_sites,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Diversify     string        `json:"diversify,omitempty"`
}

// Finding is one strength or weakness statement with its numeric evidence.
type Finding struct {
	Dimension       string  `json:"dimension"`
	TherapeuticArea string  `json:"therapeutic_area"`
	Value           float64 `json:"value"`
	Percentile      float64 `json:"percentile"`
	PeerCount       int     `json:"peer_count"`
	Statement       string  `json:"statement"`
}

// RankedSite is one entry of a recommendation result.
type RankedSite struct {
	Site            Site       `json:"site"`
	Rank            int        `json:"rank"`
	Tier            string     `json:"tier"`
	Scores          MatchScore `json:"scores"`
	QualityScore    *float64   `json:"quality_score,omitempty"`
	ExperienceIndex float64    `json:"experience_index"`
	Strengths       []Finding  `json:"strengths"`
	Weaknesses      []Finding  `json:"weaknesses"`

	// Optional annotations from the batch models; omitted when stale or
	// absent, never blocking.
	ClusterLabel *int                `json:"cluster_label,omitempty"`
	Enrollment   *EnrollmentEstimate `json:"enrollment,omitempty"`
}

// Recommendation is the ranked, explainable output for one target profile.
// It is a derived view, regenerable at any time.
type Recommendation struct {
	RequestID   string                `json:"request_id"`
	Profile     TargetProfile         `json:"profile"`
	GeneratedAt time.Time             `json:"generated_at"`
	Sites       []RankedSite          `json:"sites"`
	Request     RecommendationRequest `json:"request"`
}

// EnrollmentEstimate is the enrollment predictor's annotation. Basis names
// the statistics level the estimate fell back to (site, area, global).
type EnrollmentEstimate struct {
	ExpectedDays      float64 `json:"expected_days"`
	SuccessLikelihood float64 `json:"success_likelihood"`
	Confidence        float64 `json:"confidence"`
	Basis             string  `json:"basis"`
}

// ClusterAssignment places one site in one cluster of a model version.
type ClusterAssignment struct {
	SiteID   string  `json:"site_id"`
	Label    int     `json:"label"`
	Distance float64 `json:"distance"`
}
