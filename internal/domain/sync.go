package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run status values persisted in sync_state and sync_runs.
const (
	RunStatusOK      = "ok"
	RunStatusPartial = "partial"
	RunStatusError   = "error"
)

// SyncState holds the last-run outcome for one feed key. It is written only by
// the batch executor at the end of a live run, never by preview.
type SyncState struct {
	Feed          string     `json:"feed"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	LastRunError  string     `json:"last_run_error,omitempty"`
}

// SyncRun is the persisted history record for one executed run.
type SyncRun struct {
	ID           uuid.UUID `json:"id"`
	Feed         string    `json:"feed"`
	DryRun       bool      `json:"dry_run"`
	RowsTotal    int       `json:"rows_total"`
	RowsImported int       `json:"rows_imported"`
	RowsErrors   int       `json:"rows_errors"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RowError reports one row-level failure. It is surfaced in run responses and
// never persisted.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, field %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Audit actions recorded per committed mutation.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// AuditLogEntry is an append-only record of one mutation, written inside the
// same transaction as the change it describes.
type AuditLogEntry struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	Action     string    `json:"action"`
	Before     []byte    `json:"before,omitempty"`
	After      []byte    `json:"after,omitempty"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}
