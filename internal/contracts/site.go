package contracts

import "time"

// Site represents a physical institution capable of hosting clinical trials.
// Identity is immutable; descriptive attributes are refreshed on ingestion.
type Site struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	Country         string    `json:"country"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	InstitutionType string    `json:"institution_type"`
	Capacity        int       `json:"capacity"`
	Accreditation   string    `json:"accreditation"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Region returns the diversification bucket for geographic portfolio
// constraints. Falls back through state to country so sites with sparse
// location data still land in a bucket.
func (s *Site) Region() string {
	if s.State != "" {
		return s.Country + "/" + s.State
	}
	if s.Country != "" {
		return s.Country
	}
	return "unknown"
}

// HasCoordinates reports whether the site carries a usable lat/long pair.
func (s *Site) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Investigator represents a researcher affiliated with a site. Publication
// aggregates feed the strengths detector and the per-site summary view.
type Investigator struct {
	ID                 string `json:"id"`
	SiteID             string `json:"site_id"`
	Name               string `json:"name"`
	Specialization     string `json:"specialization"`
	HIndex             int    `json:"h_index"`
	TotalPublications  int    `json:"total_publications"`
	RecentPublications int    `json:"recent_publications"`
}

// InvestigatorSummary aggregates investigator strength per site.
type InvestigatorSummary struct {
	SiteID            string  `json:"site_id"`
	Count             int     `json:"count"`
	AvgHIndex         float64 `json:"avg_h_index"`
	TotalPublications int     `json:"total_publications"`
	AvgRecentPubs     float64 `json:"avg_recent_pubs"`
	TopSpecialization string  `json:"top_specialization"`
}
