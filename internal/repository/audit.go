package repository

import (
	"context"
	"fmt"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/jackc/pgx/v5"
)

// AuditFilter narrows ListAudit.
type AuditFilter struct {
	Entity   string
	EntityID string
	Limit    int
}

// BulkInsertAudit inserts entries, skipping event ids already recorded.
func (r *Repository) BulkInsertAudit(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO audit_log (event_id, entity, entity_id, action, actor, payload, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, e := range entries {
		payload := e.Payload
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		batch.Queue(query,
			e.EventID,
			e.Entity,
			e.EntityID,
			e.Action,
			e.Actor,
			string(payload),
			e.OccurredAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(entries); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert audit entry %d: %w", i, err)
		}
	}

	return nil
}

// ListAudit returns entries newest first.
func (r *Repository) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `
		SELECT id, event_id, entity, entity_id, action, actor, payload, occurred_at, recorded_at
		FROM audit_log
		WHERE 1=1
	`
	args := []any{}
	argIndex := 1

	if filter.Entity != "" {
		query += fmt.Sprintf(" AND entity = $%d", argIndex)
		args = append(args, filter.Entity)
		argIndex++
	}

	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", argIndex)
		args = append(args, filter.EntityID)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var payload []byte
		if err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.Entity,
			&e.EntityID,
			&e.Action,
			&e.Actor,
			&payload,
			&e.OccurredAt,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
