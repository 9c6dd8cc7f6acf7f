package contracts

import (
	"context"
	"time"
)

// SiteRepository reads site master data. The engine never writes sites.
type SiteRepository interface {
	GetByID(ctx context.Context, id string) (*Site, error)
	ListAll(ctx context.Context) ([]Site, error)
	CountAll(ctx context.Context) (int, error)
}

// TrialRepository reads trial registry data.
type TrialRepository interface {
	GetByNCTID(ctx context.Context, nctID string) (*Trial, error)
	ListByNCTIDs(ctx context.Context, nctIDs []string) (map[string]Trial, error)
}

// ParticipationRepository reads the site-trial junction records.
type ParticipationRepository interface {
	ListBySite(ctx context.Context, siteID string) ([]Participation, error)
	ListByTrial(ctx context.Context, nctID string) ([]Participation, error)
	ListAll(ctx context.Context) ([]Participation, error)
}

// InvestigatorRepository reads investigator affiliations per site.
type InvestigatorRepository interface {
	SummarizeBySite(ctx context.Context, siteID string) (*InvestigatorSummary, error)
}

// MetricRepository persists and reads SiteMetric rows. Save is an atomic
// full replace per (site, area) key.
type MetricRepository interface {
	Save(ctx context.Context, metrics []SiteMetric) error
	ListBySite(ctx context.Context, siteID string) ([]SiteMetric, error)
	ListByArea(ctx context.Context, area string) ([]SiteMetric, error)
	ListAll(ctx context.Context) ([]SiteMetric, error)
}

// QualityRepository persists and reads QualityScore rows keyed by
// (site, trial).
type QualityRepository interface {
	Save(ctx context.Context, scores []QualityScore) error
	AverageBySite(ctx context.Context, siteID string) (*float64, error)
	ListBySite(ctx context.Context, siteID string) ([]QualityScore, error)
}

// ClusterRepository persists cluster assignments per model version.
type ClusterRepository interface {
	SaveVersion(ctx context.Context, version int64, computedAt time.Time, assignments []ClusterAssignment, centroids map[int][]float64) error
	LoadLatestVersion(ctx context.Context) (int64, []ClusterAssignment, map[int][]float64, error)
}
