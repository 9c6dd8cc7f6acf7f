package enroll

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository persists statistics versions in Postgres. One version's
// rows land in a single transaction.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new enrollment statistics repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// SaveVersion writes all statistics rows of one version atomically.
func (r *PgRepository) SaveVersion(ctx context.Context, version int64, computedAt time.Time, rows []StatRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scoring.enrollment_stats (
			version, level, key, avg_duration_days, success_ratio, sample_count, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, row := range rows {
		_, err := tx.Exec(ctx, query,
			version, row.Level, row.Key,
			row.AvgDurationDays, row.SuccessRatio, row.SampleCount, computedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert enrollment stats row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadLatestVersion returns the newest version's rows. Version 0 with no
// rows means nothing has been committed yet.
func (r *PgRepository) LoadLatestVersion(ctx context.Context) (int64, []StatRow, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `
		SELECT version FROM scoring.enrollment_stats
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&version)
	if err == pgx.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query latest enrollment stats version: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT level, key, avg_duration_days, success_ratio, sample_count
		FROM scoring.enrollment_stats
		WHERE version = $1
		ORDER BY level ASC, key ASC
	`, version)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query enrollment stats: %w", err)
	}
	defer rows.Close()

	out := make([]StatRow, 0)
	for rows.Next() {
		var row StatRow
		if err := rows.Scan(&row.Level, &row.Key, &row.AvgDurationDays, &row.SuccessRatio, &row.SampleCount); err != nil {
			return 0, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return version, out, nil
}
