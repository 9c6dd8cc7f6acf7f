package quality

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinscout/backend/internal/contracts"
)

// Repository persists quality scores keyed by (site, trial).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality score repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.QualityRepository = (*Repository)(nil)

// Save upserts a batch of quality scores in one transaction.
func (r *Repository) Save(ctx context.Context, scores []contracts.QualityScore) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scoring.quality_scores (
			site_id, nct_id, completeness, recency, consistency,
			overall, missing_fields, lag_days, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (site_id, nct_id) DO UPDATE SET
			completeness = EXCLUDED.completeness,
			recency = EXCLUDED.recency,
			consistency = EXCLUDED.consistency,
			overall = EXCLUDED.overall,
			missing_fields = EXCLUDED.missing_fields,
			lag_days = EXCLUDED.lag_days,
			computed_at = EXCLUDED.computed_at
	`

	for _, s := range scores {
		_, err := tx.Exec(ctx, query,
			s.SiteID, s.NCTID, s.Completeness, s.Recency, s.Consistency,
			s.Overall, s.MissingFields, s.LagDays, s.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert quality score: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// AverageBySite returns the mean overall score across a site's trials,
// or nil when the site has no scored records.
func (r *Repository) AverageBySite(ctx context.Context, siteID string) (*float64, error) {
	query := `
		SELECT AVG(overall)
		FROM scoring.quality_scores
		WHERE site_id = $1
	`

	var avg *float64
	if err := r.pool.QueryRow(ctx, query, siteID).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to query average quality: %w", err)
	}

	return avg, nil
}

// ListBySite returns all quality scores for one site.
func (r *Repository) ListBySite(ctx context.Context, siteID string) ([]contracts.QualityScore, error) {
	query := `
		SELECT
			site_id, nct_id, completeness, recency, consistency,
			overall, missing_fields, lag_days, computed_at
		FROM scoring.quality_scores
		WHERE site_id = $1
		ORDER BY nct_id ASC
	`

	rows, err := r.pool.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quality scores: %w", err)
	}
	defer rows.Close()

	scores := make([]contracts.QualityScore, 0)

	for rows.Next() {
		var s contracts.QualityScore
		err := rows.Scan(
			&s.SiteID, &s.NCTID, &s.Completeness, &s.Recency, &s.Consistency,
			&s.Overall, &s.MissingFields, &s.LagDays, &s.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		scores = append(scores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return scores, nil
}
