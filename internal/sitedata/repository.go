// Package sitedata reads the ingested source-of-record tables: sites,
// trials, the participation junction and investigators. The scoring
// core never writes these tables; ingestion owns them.
package sitedata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinscout/backend/internal/contracts"
)

// SiteRepository reads core.sites_master.
type SiteRepository struct {
	pool *pgxpool.Pool
}

// NewSiteRepository creates a new site repository.
func NewSiteRepository(pool *pgxpool.Pool) *SiteRepository {
	return &SiteRepository{pool: pool}
}

var _ contracts.SiteRepository = (*SiteRepository)(nil)

const siteColumns = `
	site_id, name, city, state, country, latitude, longitude,
	institution_type, capacity, accreditation, updated_at
`

// GetByID returns one site, or nil when it does not exist.
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*contracts.Site, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM core.sites_master WHERE site_id = $1
	`, siteColumns), id)

	var s contracts.Site
	err := scanSite(row, &s)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query site: %w", err)
	}
	return &s, nil
}

// ListAll returns every site, ordered by ID.
func (r *SiteRepository) ListAll(ctx context.Context) ([]contracts.Site, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM core.sites_master ORDER BY site_id ASC
	`, siteColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Site, 0)
	for rows.Next() {
		var s contracts.Site
		if err := scanSite(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// CountAll returns the site population size.
func (r *SiteRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM core.sites_master`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}

func scanSite(row pgx.Row, s *contracts.Site) error {
	return row.Scan(
		&s.ID, &s.Name, &s.City, &s.State, &s.Country, &s.Latitude, &s.Longitude,
		&s.InstitutionType, &s.Capacity, &s.Accreditation, &s.UpdatedAt,
	)
}

// TrialRepository reads core.clinical_trials. Conditions and
// interventions live in JSONB columns and scan straight into slices.
type TrialRepository struct {
	pool *pgxpool.Pool
}

// NewTrialRepository creates a new trial repository.
func NewTrialRepository(pool *pgxpool.Pool) *TrialRepository {
	return &TrialRepository{pool: pool}
}

var _ contracts.TrialRepository = (*TrialRepository)(nil)

const trialColumns = `
	nct_id, title, status, phase, study_type, conditions, interventions,
	enrollment_count, start_date, completion_date, last_update_posted, sponsor
`

// GetByNCTID returns one trial, or nil when it does not exist.
func (r *TrialRepository) GetByNCTID(ctx context.Context, nctID string) (*contracts.Trial, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM core.clinical_trials WHERE nct_id = $1
	`, trialColumns), nctID)

	var t contracts.Trial
	err := scanTrial(row, &t)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trial: %w", err)
	}
	return &t, nil
}

// ListByNCTIDs returns the trials found for the given IDs, keyed by ID.
// Missing IDs are simply absent from the map.
func (r *TrialRepository) ListByNCTIDs(ctx context.Context, nctIDs []string) (map[string]contracts.Trial, error) {
	if len(nctIDs) == 0 {
		return map[string]contracts.Trial{}, nil
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM core.clinical_trials WHERE nct_id = ANY($1)
	`, trialColumns), nctIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]contracts.Trial, len(nctIDs))
	for rows.Next() {
		var t contracts.Trial
		if err := scanTrial(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out[t.NCTID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func scanTrial(row pgx.Row, t *contracts.Trial) error {
	return row.Scan(
		&t.NCTID, &t.Title, &t.Status, &t.Phase, &t.StudyType,
		&t.Conditions, &t.Interventions,
		&t.EnrollmentCount, &t.StartDate, &t.CompletionDate, &t.LastUpdatePosted, &t.Sponsor,
	)
}

// ParticipationRepository reads core.site_trial_participation.
type ParticipationRepository struct {
	pool *pgxpool.Pool
}

// NewParticipationRepository creates a new participation repository.
func NewParticipationRepository(pool *pgxpool.Pool) *ParticipationRepository {
	return &ParticipationRepository{pool: pool}
}

var _ contracts.ParticipationRepository = (*ParticipationRepository)(nil)

// ListBySite returns one site's participation records.
func (r *ParticipationRepository) ListBySite(ctx context.Context, siteID string) ([]contracts.Participation, error) {
	return r.list(ctx, `WHERE site_id = $1`, siteID)
}

// ListByTrial returns one trial's participation records across sites.
func (r *ParticipationRepository) ListByTrial(ctx context.Context, nctID string) ([]contracts.Participation, error) {
	return r.list(ctx, `WHERE nct_id = $1`, nctID)
}

// ListAll returns the full junction table. The recommendation engine
// reads it in one pass instead of querying per site.
func (r *ParticipationRepository) ListAll(ctx context.Context) ([]contracts.Participation, error) {
	return r.list(ctx, ``)
}

func (r *ParticipationRepository) list(ctx context.Context, where string, args ...any) ([]contracts.Participation, error) {
	query := fmt.Sprintf(`
		SELECT site_id, nct_id, role, recruitment_status, actual_enrollment,
		       enrollment_start_date, enrollment_end_date, quality_score
		FROM core.site_trial_participation
		%s
		ORDER BY site_id ASC, nct_id ASC
	`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Participation, 0)
	for rows.Next() {
		var p contracts.Participation
		err := rows.Scan(
			&p.SiteID, &p.NCTID, &p.Role, &p.RecruitmentStatus,
			&p.ActualEnrollment, &p.EnrollStart, &p.EnrollEnd, &p.QualityScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// InvestigatorRepository reads core.investigators.
type InvestigatorRepository struct {
	pool *pgxpool.Pool
}

// NewInvestigatorRepository creates a new investigator repository.
func NewInvestigatorRepository(pool *pgxpool.Pool) *InvestigatorRepository {
	return &InvestigatorRepository{pool: pool}
}

var _ contracts.InvestigatorRepository = (*InvestigatorRepository)(nil)

// SummarizeBySite aggregates investigator strength for one site. A site
// with no investigators returns a zero summary, not an error.
func (r *InvestigatorRepository) SummarizeBySite(ctx context.Context, siteID string) (*contracts.InvestigatorSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(h_index), 0),
		       COALESCE(SUM(total_publications), 0),
		       COALESCE(AVG(recent_publications), 0),
		       COALESCE(mode() WITHIN GROUP (ORDER BY specialization), '')
		FROM core.investigators
		WHERE affiliation_site_id = $1
	`, siteID)

	s := contracts.InvestigatorSummary{SiteID: siteID}
	err := row.Scan(&s.Count, &s.AvgHIndex, &s.TotalPublications, &s.AvgRecentPubs, &s.TopSpecialization)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize investigators: %w", err)
	}
	return &s, nil
}
