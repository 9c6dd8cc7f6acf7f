package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinscout/backend/internal/contracts"
)

// Repository persists cluster model versions. Each version's rows land
// in one transaction so readers never see a partial model.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new cluster repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.ClusterRepository = (*Repository)(nil)

// SaveVersion writes the version header and all assignments atomically.
// Centroids ride along on the version row as JSON.
func (r *Repository) SaveVersion(ctx context.Context, version int64, computedAt time.Time, assignments []contracts.ClusterAssignment, centroids map[int][]float64) error {
	centroidJSON, err := json.Marshal(centroids)
	if err != nil {
		return fmt.Errorf("failed to marshal centroids: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scoring.cluster_versions (version, computed_at, site_count, centroids)
		VALUES ($1, $2, $3, $4)
	`, version, computedAt, len(assignments), centroidJSON)
	if err != nil {
		return fmt.Errorf("failed to insert cluster version: %w", err)
	}

	query := `
		INSERT INTO scoring.cluster_assignments (version, site_id, label, distance)
		VALUES ($1, $2, $3, $4)
	`
	for _, a := range assignments {
		if _, err := tx.Exec(ctx, query, version, a.SiteID, a.Label, a.Distance); err != nil {
			return fmt.Errorf("failed to insert cluster assignment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadLatestVersion returns the newest committed version, its rows and
// centroids. Version 0 with no rows means nothing has been committed yet.
func (r *Repository) LoadLatestVersion(ctx context.Context) (int64, []contracts.ClusterAssignment, map[int][]float64, error) {
	var (
		version      int64
		centroidJSON []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT version, centroids FROM scoring.cluster_versions
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&version, &centroidJSON)
	if err == pgx.ErrNoRows {
		return 0, nil, nil, nil
	}
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to query latest cluster version: %w", err)
	}

	var centroids map[int][]float64
	if len(centroidJSON) > 0 {
		if err := json.Unmarshal(centroidJSON, &centroids); err != nil {
			return 0, nil, nil, fmt.Errorf("failed to unmarshal centroids: %w", err)
		}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT site_id, label, distance
		FROM scoring.cluster_assignments
		WHERE version = $1
		ORDER BY site_id ASC
	`, version)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to query cluster assignments: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.ClusterAssignment, 0)
	for rows.Next() {
		var a contracts.ClusterAssignment
		if err := rows.Scan(&a.SiteID, &a.Label, &a.Distance); err != nil {
			return 0, nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return version, out, centroids, nil
}
