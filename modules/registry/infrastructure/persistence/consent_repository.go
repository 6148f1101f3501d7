package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/pkg/composables"
)

const (
	consentSelectQuery = `
        SELECT
            c.id,
            c.request_id,
            c.approver_id,
            c.role,
            c.shareholder_ref,
            c.weight,
            c.status,
            c.decided_at,
            c.comment
        FROM registry_consent_requirements c`

	// Conflicts hit registry_consent_requirements_key.
	consentInsertQuery = `
        INSERT INTO registry_consent_requirements (id, request_id, approver_id, role, shareholder_ref, weight, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT DO NOTHING`

	consentDecideQuery = `
        UPDATE registry_consent_requirements
           SET status = $3, comment = $4, decided_at = $5
         WHERE request_id = $1 AND approver_id = $2 AND status = 'PENDING'`

	consentRejectPendingQuery = `
        UPDATE registry_consent_requirements
           SET status = 'REJECTED', comment = $2, decided_at = $3
         WHERE request_id = $1 AND status = 'PENDING'`

	consentDeleteQuery = `DELETE FROM registry_consent_requirements WHERE request_id = $1`
)

type ConsentRepository struct{}

func NewConsentRepository() *ConsentRepository {
	return &ConsentRepository{}
}

var _ consent.Repository = (*ConsentRepository)(nil)

func (r *ConsentRepository) InsertRequirements(ctx context.Context, reqs []consent.Requirement) (int, error) {
	if len(reqs) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	batch := &pgx.Batch{}
	for _, req := range reqs {
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		if req.Status == "" {
			req.Status = consent.StatusPending
		}
		batch.Queue(
			consentInsertQuery,
			req.ID,
			req.RequestID,
			req.ApproverID,
			string(req.Role),
			req.ShareholderRef,
			req.Weight,
			string(req.Status),
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range reqs {
		tag, err := br.Exec()
		if err != nil {
			return 0, errors.Wrap(err, "failed to insert consent requirement")
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *ConsentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]consent.Requirement, error) {
	return r.list(ctx, consentSelectQuery+" WHERE c.request_id = $1 ORDER BY c.seq", requestID)
}

func (r *ConsentRepository) ListPendingByApprover(ctx context.Context, approverID uuid.UUID) ([]consent.Requirement, error) {
	return r.list(ctx, consentSelectQuery+" WHERE c.approver_id = $1 AND c.status = 'PENDING' ORDER BY c.request_id, c.role", approverID)
}

func (r *ConsentRepository) list(ctx context.Context, query string, args ...any) ([]consent.Requirement, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query consent requirements")
	}
	defer rows.Close()

	out := make([]consent.Requirement, 0)
	for rows.Next() {
		var req consent.Requirement
		if err := rows.Scan(
			&req.ID,
			&req.RequestID,
			&req.ApproverID,
			&req.Role,
			&req.ShareholderRef,
			&req.Weight,
			&req.Status,
			&req.DecidedAt,
			&req.Comment,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan consent requirement")
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate consent requirements")
	}
	return out, nil
}

func (r *ConsentRepository) Decide(ctx context.Context, requestID, approverID uuid.UUID, status consent.Status, comment string, at time.Time) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, consentDecideQuery, requestID, approverID, string(status), comment, at)
	if err != nil {
		return 0, errors.Wrap(err, "failed to record consent decision")
	}
	return int(tag.RowsAffected()), nil
}

func (r *ConsentRepository) RejectPending(ctx context.Context, requestID uuid.UUID, comment string, at time.Time) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, consentRejectPendingQuery, requestID, comment, at)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reject pending consents")
	}
	return int(tag.RowsAffected()), nil
}

func (r *ConsentRepository) DeleteByRequest(ctx context.Context, requestID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := tx.Exec(ctx, consentDeleteQuery, requestID); err != nil {
		return errors.Wrap(err, "failed to delete consent requirements")
	}
	return nil
}
