package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opencorp/clientsync/internal/db"
	"github.com/opencorp/clientsync/internal/domain"
)

type clientRepository struct {
	conn *db.Connection
}

// NewClientRepository wires a repository backed by the shared pgx pool.
func NewClientRepository(conn *db.Connection) ClientRepository {
	return &clientRepository{conn: conn}
}

// FindByNormalizedName loads at most one live client with that matching key,
// including its line items and partners.
func (r *clientRepository) FindByNormalizedName(ctx context.Context, normalizedName string) (domain.Client, error) {
	var client domain.Client
	err := r.conn.Pool.QueryRow(
		ctx,
		`SELECT id, display_name, normalized_name, reference_code, transaction_date,
		        sales_rep, sales_channel, payment_method, expedited, courtesy, notes,
		        created_at, updated_at, deleted_at
		 FROM clients
		 WHERE normalized_name = $1 AND deleted_at IS NULL`,
		normalizedName,
	).Scan(
		&client.ID, &client.DisplayName, &client.NormalizedName, &client.ReferenceCode,
		&client.TransactionDate, &client.SalesRep, &client.SalesChannel, &client.PaymentMethod,
		&client.Expedited, &client.Courtesy, &client.Notes,
		&client.CreatedAt, &client.UpdatedAt, &client.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, ErrNotFound
		}
		return domain.Client{}, fmt.Errorf("failed to find client: %w", err)
	}

	if client.Items, err = r.loadItems(ctx, client.ID); err != nil {
		return domain.Client{}, err
	}
	if client.Partners, err = r.loadPartners(ctx, client.ID); err != nil {
		return domain.Client{}, err
	}

	return client, nil
}

func (r *clientRepository) loadItems(ctx context.Context, clientID uuid.UUID) ([]domain.LineItem, error) {
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT kind, description, value_cents, meta
		 FROM line_items
		 WHERE client_id = $1
		 ORDER BY position`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		var meta []byte
		if err := rows.Scan(&item.Kind, &item.Description, &item.ValueCents, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &item.Meta); err != nil {
				return nil, fmt.Errorf("failed to decode line item meta: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *clientRepository) loadPartners(ctx context.Context, clientID uuid.UUID) ([]domain.Partner, error) {
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT full_name, role, percentage, phone
		 FROM partners
		 WHERE client_id = $1
		 ORDER BY position`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load partners: %w", err)
	}
	defer rows.Close()

	var partners []domain.Partner
	for rows.Next() {
		var partner domain.Partner
		if err := rows.Scan(&partner.FullName, &partner.Role, &partner.Percentage, &partner.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		partners = append(partners, partner)
	}
	return partners, rows.Err()
}

// CreateWithChildren inserts the client row, its children, and the creation
// audit entry in one transaction.
func (r *clientRepository) CreateWithChildren(ctx context.Context, patch domain.ClientPatch, items []domain.LineItem, partners []domain.Partner, actor string) (uuid.UUID, error) {
	id := uuid.New()
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO clients (id, display_name, normalized_name, reference_code, transaction_date,
			                      sales_rep, sales_channel, payment_method, expedited, courtesy, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			id, patch.DisplayName, patch.NormalizedName, patch.ReferenceCode, patch.TransactionDate,
			patch.SalesRep, patch.SalesChannel, patch.PaymentMethod, patch.Expedited, patch.Courtesy, patch.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to insert client: %w", err)
		}

		if err := insertChildren(ctx, tx, id, items, partners); err != nil {
			return err
		}

		after, err := snapshot(patch, items, partners)
		if err != nil {
			return err
		}
		return insertAudit(ctx, tx, domain.AuditLogEntry{
			EntityType: "client",
			EntityID:   id,
			Action:     domain.AuditActionCreate,
			After:      after,
			Actor:      actor,
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdateWithChildren updates the client row, replaces the child collections
// wholesale, and records a before/after audit entry, all in one transaction.
// The wholesale replacement is what makes re-running the sync idempotent.
func (r *clientRepository) UpdateWithChildren(ctx context.Context, before domain.Client, patch domain.ClientPatch, items []domain.LineItem, partners []domain.Partner, actor string) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(
			ctx,
			`UPDATE clients
			 SET display_name = $2, normalized_name = $3, reference_code = $4, transaction_date = $5,
			     sales_rep = $6, sales_channel = $7, payment_method = $8, expedited = $9,
			     courtesy = $10, notes = $11, updated_at = now()
			 WHERE id = $1`,
			before.ID, patch.DisplayName, patch.NormalizedName, patch.ReferenceCode, patch.TransactionDate,
			patch.SalesRep, patch.SalesChannel, patch.PaymentMethod, patch.Expedited, patch.Courtesy, patch.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM line_items WHERE client_id = $1`, before.ID); err != nil {
			return fmt.Errorf("failed to clear line items: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM partners WHERE client_id = $1`, before.ID); err != nil {
			return fmt.Errorf("failed to clear partners: %w", err)
		}
		if err := insertChildren(ctx, tx, before.ID, items, partners); err != nil {
			return err
		}

		beforeSnap, err := snapshot(before.ClientPatch, before.Items, before.Partners)
		if err != nil {
			return err
		}
		afterSnap, err := snapshot(patch, items, partners)
		if err != nil {
			return err
		}
		return insertAudit(ctx, tx, domain.AuditLogEntry{
			EntityType: "client",
			EntityID:   before.ID,
			Action:     domain.AuditActionUpdate,
			Before:     beforeSnap,
			After:      afterSnap,
			Actor:      actor,
		})
	})
}

func insertChildren(ctx context.Context, tx pgx.Tx, clientID uuid.UUID, items []domain.LineItem, partners []domain.Partner) error {
	for pos, item := range items {
		var meta []byte
		if len(item.Meta) > 0 {
			encoded, err := json.Marshal(item.Meta)
			if err != nil {
				return fmt.Errorf("failed to encode line item meta: %w", err)
			}
			meta = encoded
		}
		_, err := tx.Exec(
			ctx,
			`INSERT INTO line_items (client_id, kind, description, value_cents, meta, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			clientID, item.Kind, item.Description, item.ValueCents, meta, pos,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}
	}

	for pos, partner := range partners {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO partners (client_id, full_name, role, percentage, phone, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			clientID, partner.FullName, partner.Role, partner.Percentage, partner.Phone, pos,
		)
		if err != nil {
			return fmt.Errorf("failed to insert partner: %w", err)
		}
	}

	return nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, entry domain.AuditLogEntry) error {
	_, err := tx.Exec(
		ctx,
		`INSERT INTO audit_log (entity_type, entity_id, action, before, after, actor)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.EntityType, entry.EntityID, entry.Action, entry.Before, entry.After, entry.Actor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func snapshot(patch domain.ClientPatch, items []domain.LineItem, partners []domain.Partner) ([]byte, error) {
	encoded, err := json.Marshal(struct {
		domain.ClientPatch
		Items    []domain.LineItem `json:"items"`
		Partners []domain.Partner  `json:"partners"`
	}{patch, items, partners})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit snapshot: %w", err)
	}
	return encoded, nil
}
