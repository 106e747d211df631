package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opencorp/clientsync/internal/domain"
)

// ErrNotFound is returned when a lookup matches no live record.
var ErrNotFound = errors.New("not found")

// ClientRepository defines the storage operations the reconciliation engine
// needs. Create and update apply the client row, the wholesale child
// replacement, and the audit entry inside one transaction.
type ClientRepository interface {
	FindByNormalizedName(ctx context.Context, normalizedName string) (domain.Client, error)
	CreateWithChildren(ctx context.Context, patch domain.ClientPatch, items []domain.LineItem, partners []domain.Partner, actor string) (uuid.UUID, error)
	UpdateWithChildren(ctx context.Context, before domain.Client, patch domain.ClientPatch, items []domain.LineItem, partners []domain.Partner, actor string) error
}

// SyncStateRepository persists the per-feed run outcome row.
type SyncStateRepository interface {
	Get(ctx context.Context, feed string) (domain.SyncState, error)
	Upsert(ctx context.Context, state domain.SyncState) error
}

// SyncRunRepository records run history for later listing.
type SyncRunRepository interface {
	Insert(ctx context.Context, run domain.SyncRun) error
	ListByFeed(ctx context.Context, feed string, limit int) ([]domain.SyncRun, error)
}

// AuditLogRepository exposes the append-only mutation trail. Entries are
// written by the client repository inside the mutating transaction.
type AuditLogRepository interface {
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditLogEntry, error)
}
