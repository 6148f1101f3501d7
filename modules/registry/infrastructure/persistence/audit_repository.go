package persistence

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
	"github.com/iota-uz/entity-registry/pkg/composables"
)

const (
	auditInsertQuery = `
        INSERT INTO registry_audit_log (id, entity_id, request_id, actor_id, action, resulting_state, comment, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	auditSelectQuery = `
        SELECT id, entity_id, request_id, actor_id, action, resulting_state, comment, payload, created_at
        FROM registry_audit_log
        WHERE request_id = $1
        ORDER BY seq`
)

// AuditRepository appends to registry_audit_log. The table rejects updates
// and deletes with a trigger.
type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

var (
	_ audit.Sink   = (*AuditRepository)(nil)
	_ audit.Reader = (*AuditRepository)(nil)
)

func (r *AuditRepository) Append(ctx context.Context, rec audit.Record) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = nowUTC()
	}
	if _, err := tx.Exec(
		ctx,
		auditInsertQuery,
		rec.ID,
		rec.EntityID,
		rec.RequestID,
		rec.ActorID,
		rec.Action,
		rec.ResultingState,
		rec.Comment,
		jsonb(rec.Payload),
		rec.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to append audit record")
	}
	return nil
}

func (r *AuditRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]audit.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, auditSelectQuery, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit log")
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			rec     audit.Record
			payload []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.EntityID,
			&rec.RequestID,
			&rec.ActorID,
			&rec.Action,
			&rec.ResultingState,
			&rec.Comment,
			&payload,
			&rec.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit record")
		}
		if len(payload) > 0 {
			rec.Payload = json.RawMessage(payload)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate audit log")
	}
	return out, nil
}
