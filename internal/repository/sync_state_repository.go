package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opencorp/clientsync/internal/db"
	"github.com/opencorp/clientsync/internal/domain"
)

type syncStateRepository struct {
	conn *db.Connection
}

// NewSyncStateRepository wires the per-feed state row storage.
func NewSyncStateRepository(conn *db.Connection) SyncStateRepository {
	return &syncStateRepository{conn: conn}
}

// Get returns the feed's state row, or a zero state when none exists yet.
func (r *syncStateRepository) Get(ctx context.Context, feed string) (domain.SyncState, error) {
	state := domain.SyncState{Feed: feed}
	err := r.conn.Pool.QueryRow(
		ctx,
		`SELECT last_synced_at, last_run_status, last_run_error
		 FROM sync_state
		 WHERE feed = $1`,
		feed,
	).Scan(&state.LastSyncedAt, &state.LastRunStatus, &state.LastRunError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, nil
		}
		return domain.SyncState{}, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}

func (r *syncStateRepository) Upsert(ctx context.Context, state domain.SyncState) error {
	_, err := r.conn.Pool.Exec(
		ctx,
		`INSERT INTO sync_state (feed, last_synced_at, last_run_status, last_run_error)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (feed) DO UPDATE
		 SET last_synced_at = EXCLUDED.last_synced_at,
		     last_run_status = EXCLUDED.last_run_status,
		     last_run_error = EXCLUDED.last_run_error`,
		state.Feed, state.LastSyncedAt, state.LastRunStatus, state.LastRunError,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}
	return nil
}
