package repository

import (
	"context"
	"fmt"

	"github.com/opencorp/clientsync/internal/db"
	"github.com/opencorp/clientsync/internal/domain"
)

type syncRunRepository struct {
	conn *db.Connection
}

// NewSyncRunRepository wires the run-history storage.
func NewSyncRunRepository(conn *db.Connection) SyncRunRepository {
	return &syncRunRepository{conn: conn}
}

func (r *syncRunRepository) Insert(ctx context.Context, run domain.SyncRun) error {
	_, err := r.conn.Pool.Exec(
		ctx,
		`INSERT INTO sync_runs (id, feed, dry_run, rows_total, rows_imported, rows_errors,
		                        status, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Feed, run.DryRun, run.RowsTotal, run.RowsImported, run.RowsErrors,
		run.Status, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

func (r *syncRunRepository) ListByFeed(ctx context.Context, feed string, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT id, feed, dry_run, rows_total, rows_imported, rows_errors,
		        status, error, started_at, finished_at
		 FROM sync_runs
		 WHERE feed = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		feed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		var run domain.SyncRun
		if err := rows.Scan(
			&run.ID, &run.Feed, &run.DryRun, &run.RowsTotal, &run.RowsImported, &run.RowsErrors,
			&run.Status, &run.Error, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
