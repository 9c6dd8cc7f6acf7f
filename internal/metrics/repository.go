package metrics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinscout/backend/internal/contracts"
)

// Repository persists SiteMetric rows. Writes replace the previous row
// per (site, area) so recompute stays idempotent.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new metrics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.MetricRepository = (*Repository)(nil)

// Save replaces each batched site's rows in one transaction: rows are
// upserted per (site, area), and the site's rows in areas absent from
// the batch are deleted so corrected history cannot leave stale metrics
// behind. Sites not in the batch are untouched. Rows failing the count
// invariants are rejected before anything is written.
func (r *Repository) Save(ctx context.Context, rows []contracts.SiteMetric) error {
	areasBySite := make(map[string][]string)
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return fmt.Errorf("invalid metric row: %w", err)
		}
		areasBySite[rows[i].SiteID] = append(areasBySite[rows[i].SiteID], rows[i].TherapeuticArea)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scoring.site_metrics (
			site_id, therapeutic_area, total_studies, completed_studies,
			terminated_studies, withdrawn_studies, avg_enrollment_days,
			completion_ratio, recruit_efficiency, experience_index, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (site_id, therapeutic_area) DO UPDATE SET
			total_studies = EXCLUDED.total_studies,
			completed_studies = EXCLUDED.completed_studies,
			terminated_studies = EXCLUDED.terminated_studies,
			withdrawn_studies = EXCLUDED.withdrawn_studies,
			avg_enrollment_days = EXCLUDED.avg_enrollment_days,
			completion_ratio = EXCLUDED.completion_ratio,
			recruit_efficiency = EXCLUDED.recruit_efficiency,
			experience_index = EXCLUDED.experience_index,
			computed_at = EXCLUDED.computed_at
	`

	for _, m := range rows {
		_, err := tx.Exec(ctx, query,
			m.SiteID, m.TherapeuticArea, m.TotalStudies, m.CompletedStudies,
			m.TerminatedStudies, m.WithdrawnStudies, m.AvgEnrollmentDays,
			m.CompletionRatio, m.RecruitEfficiency, m.ExperienceIndex, m.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert site metric: %w", err)
		}
	}

	prune := `
		DELETE FROM scoring.site_metrics
		WHERE site_id = $1 AND therapeutic_area <> ALL($2)
	`

	for siteID, areas := range areasBySite {
		if _, err := tx.Exec(ctx, prune, siteID, areas); err != nil {
			return fmt.Errorf("failed to prune stale site metrics: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListBySite returns all metric rows for one site, ordered by area.
func (r *Repository) ListBySite(ctx context.Context, siteID string) ([]contracts.SiteMetric, error) {
	return r.list(ctx, `WHERE site_id = $1`, siteID)
}

// ListByArea returns one area's rows across all sites.
func (r *Repository) ListByArea(ctx context.Context, area string) ([]contracts.SiteMetric, error) {
	return r.list(ctx, `WHERE therapeutic_area = $1`, area)
}

// ListAll returns every metric row.
func (r *Repository) ListAll(ctx context.Context) ([]contracts.SiteMetric, error) {
	return r.list(ctx, ``)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]contracts.SiteMetric, error) {
	query := fmt.Sprintf(`
		SELECT
			site_id, therapeutic_area, total_studies, completed_studies,
			terminated_studies, withdrawn_studies, avg_enrollment_days,
			completion_ratio, recruit_efficiency, experience_index, computed_at
		FROM scoring.site_metrics
		%s
		ORDER BY site_id ASC, therapeutic_area ASC
	`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query site metrics: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.SiteMetric, 0)

	for rows.Next() {
		var m contracts.SiteMetric
		err := rows.Scan(
			&m.SiteID, &m.TherapeuticArea, &m.TotalStudies, &m.CompletedStudies,
			&m.TerminatedStudies, &m.WithdrawnStudies, &m.AvgEnrollmentDays,
			&m.CompletionRatio, &m.RecruitEfficiency, &m.ExperienceIndex, &m.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}
