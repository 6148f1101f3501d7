package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/pkg/composables"
)

const (
	changeRequestFindQuery = `
        SELECT
            cr.id,
            cr.entity_id,
            cr.kind,
            cr.payload,
            cr.status,
            cr.verdict,
            cr.workflow_instance_id,
            cr.workflow_state,
            cr.initiator_id,
            cr.committed_at,
            cr.created_at,
            cr.updated_at
        FROM registry_change_requests cr`

	changeRequestInsertQuery = `
        INSERT INTO registry_change_requests (
            id,
            entity_id,
            kind,
            payload,
            status,
            verdict,
            workflow_instance_id,
            workflow_state,
            initiator_id,
            created_at,
            updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	changeRequestUpdateVerdictQuery = `UPDATE registry_change_requests SET verdict = $2, updated_at = now() WHERE id = $1`
	changeRequestUpdateStatusQuery  = `UPDATE registry_change_requests SET status = $2, workflow_state = $3, updated_at = now() WHERE id = $1`
	changeRequestUpdatePayloadQuery = `UPDATE registry_change_requests SET payload = $2, updated_at = now() WHERE id = $1`
	changeRequestSetEntityQuery     = `UPDATE registry_change_requests SET entity_id = $2, updated_at = now() WHERE id = $1`
	changeRequestMarkCommittedQuery = `
        UPDATE registry_change_requests
           SET committed_at = $2, updated_at = now()
         WHERE id = $1 AND committed_at IS NULL`
	changeRequestOpenQuery = `
        SELECT EXISTS (
            SELECT 1 FROM registry_change_requests
            WHERE entity_id = $1 AND status <> 'ARCHIVED'
        )`
	changeRequestDeregisteredQuery = `
        SELECT EXISTS (
            SELECT 1 FROM registry_change_requests
            WHERE entity_id = $1 AND kind = 'DEREGISTRATION' AND committed_at IS NOT NULL
        )`
)

type ChangeRequestRepository struct{}

func NewChangeRequestRepository() *ChangeRequestRepository {
	return &ChangeRequestRepository{}
}

var _ changerequest.Repository = (*ChangeRequestRepository)(nil)

func (r *ChangeRequestRepository) Create(ctx context.Context, cr changerequest.ChangeRequest) (changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "failed to get transaction")
	}
	payload, err := changerequest.EncodePayload(cr.Payload)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "failed to encode payload")
	}
	if cr.ID == uuid.Nil {
		cr.ID = uuid.New()
	}
	cr.CreatedAt = nowUTC()
	cr.UpdatedAt = cr.CreatedAt

	if _, err := tx.Exec(
		ctx,
		changeRequestInsertQuery,
		cr.ID,
		cr.EntityID,
		string(cr.Kind),
		payload,
		string(cr.Status),
		string(cr.Verdict),
		cr.WorkflowInstanceID,
		cr.WorkflowState,
		cr.InitiatorID,
		cr.CreatedAt,
	); err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "failed to insert change request")
	}
	return cr, nil
}

func (r *ChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (changerequest.ChangeRequest, error) {
	return r.find(ctx, changeRequestFindQuery+" WHERE cr.id = $1", id)
}

func (r *ChangeRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (changerequest.ChangeRequest, error) {
	return r.find(ctx, changeRequestFindQuery+" WHERE cr.id = $1 FOR UPDATE", id)
}

func (r *ChangeRequestRepository) find(ctx context.Context, query string, id uuid.UUID) (changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "failed to get transaction")
	}

	var (
		cr      changerequest.ChangeRequest
		payload []byte
	)
	err = tx.QueryRow(ctx, query, id).Scan(
		&cr.ID,
		&cr.EntityID,
		&cr.Kind,
		&payload,
		&cr.Status,
		&cr.Verdict,
		&cr.WorkflowInstanceID,
		&cr.WorkflowState,
		&cr.InitiatorID,
		&cr.CommittedAt,
		&cr.CreatedAt,
		&cr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return changerequest.ChangeRequest{}, changerequest.ErrNotFound
		}
		return changerequest.ChangeRequest{}, errors.Wrap(err, fmt.Sprintf("failed to query change request with id: %s", id))
	}

	p, err := changerequest.DecodePayload(cr.Kind, payload)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, fmt.Sprintf("change request %s", id))
	}
	cr.Payload = p
	return cr, nil
}

func (r *ChangeRequestRepository) UpdateVerdict(ctx context.Context, id uuid.UUID, verdict changerequest.Verdict) error {
	return r.exec(ctx, changeRequestUpdateVerdictQuery, id, string(verdict))
}

func (r *ChangeRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status changerequest.Status, workflowState string) error {
	return r.exec(ctx, changeRequestUpdateStatusQuery, id, string(status), workflowState)
}

func (r *ChangeRequestRepository) UpdatePayload(ctx context.Context, id uuid.UUID, payload changerequest.Payload) error {
	raw, err := changerequest.EncodePayload(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode payload")
	}
	return r.exec(ctx, changeRequestUpdatePayloadQuery, id, raw)
}

func (r *ChangeRequestRepository) SetEntityID(ctx context.Context, id uuid.UUID, entityID uuid.UUID) error {
	return r.exec(ctx, changeRequestSetEntityQuery, id, entityID)
}

func (r *ChangeRequestRepository) MarkCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, changeRequestMarkCommittedQuery, id, at)
	if err != nil {
		return false, errors.Wrap(err, "failed to mark change request committed")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Either the row is gone or another commit got there first.
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *ChangeRequestRepository) HasOpenForEntity(ctx context.Context, entityID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	var open bool
	if err := tx.QueryRow(ctx, changeRequestOpenQuery, entityID).Scan(&open); err != nil {
		return false, errors.Wrap(err, "checking open change requests failed")
	}
	return open, nil
}

func (r *ChangeRequestRepository) IsDeregistered(ctx context.Context, entityID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	var gone bool
	if err := tx.QueryRow(ctx, changeRequestDeregisteredQuery, entityID).Scan(&gone); err != nil {
		return false, errors.Wrap(err, "checking entity deregistration failed")
	}
	return gone, nil
}

func (r *ChangeRequestRepository) exec(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to update change request with id: %s", id))
	}
	if tag.RowsAffected() == 0 {
		return changerequest.ErrNotFound
	}
	return nil
}
