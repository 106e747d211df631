package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opencorp/clientsync/internal/db"
	"github.com/opencorp/clientsync/internal/domain"
)

type auditLogRepository struct {
	conn *db.Connection
}

// NewAuditLogRepository wires read access to the audit trail.
func NewAuditLogRepository(conn *db.Connection) AuditLogRepository {
	return &auditLogRepository{conn: conn}
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT id, entity_type, entity_id, action, before, after, actor, created_at
		 FROM audit_log
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		entityType, entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var entry domain.AuditLogEntry
		if err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action,
			&entry.Before, &entry.After, &entry.Actor, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
