package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
	wfinfra "github.com/iota-uz/entity-registry/modules/registry/infrastructure/workflow"
	"github.com/iota-uz/entity-registry/pkg/composables"
)

const (
	instanceInsertQuery = `
        INSERT INTO registry_workflow_instances (id, definition_code, target_type, target_id, state, finished, vars, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	instanceFindQuery = `
        SELECT id, definition_code, target_type, target_id, state, finished, vars, created_at, updated_at
        FROM registry_workflow_instances
        WHERE id = $1`

	instanceUpdateStateQuery = `
        UPDATE registry_workflow_instances
           SET state = $2, finished = $3, updated_at = $4
         WHERE id = $1`

	transitionInsertQuery = `
        INSERT INTO registry_workflow_transitions (id, instance_id, action, from_state, to_state, actor_id, comment, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	transitionSelectQuery = `
        SELECT id, instance_id, action, from_state, to_state, actor_id, comment, payload, created_at
        FROM registry_workflow_transitions
        WHERE instance_id = $1
        ORDER BY seq`
)

// WorkflowStore keeps workflow instances and their transition history in
// postgres.
type WorkflowStore struct{}

func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{}
}

var _ wfinfra.InstanceStore = (*WorkflowStore)(nil)

func (s *WorkflowStore) CreateInstance(ctx context.Context, inst wf.Instance) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	var vars []byte
	if len(inst.Vars) > 0 {
		vars, err = json.Marshal(inst.Vars)
		if err != nil {
			return errors.Wrap(err, "failed to encode workflow vars")
		}
	}
	if _, err := tx.Exec(
		ctx,
		instanceInsertQuery,
		inst.ID,
		inst.DefinitionCode,
		inst.TargetType,
		inst.TargetID,
		inst.State,
		inst.Finished,
		vars,
		inst.CreatedAt,
		inst.UpdatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to insert workflow instance")
	}
	return nil
}

func (s *WorkflowStore) GetInstance(ctx context.Context, id uuid.UUID) (wf.Instance, error) {
	return s.find(ctx, instanceFindQuery, id)
}

func (s *WorkflowStore) GetInstanceForUpdate(ctx context.Context, id uuid.UUID) (wf.Instance, error) {
	return s.find(ctx, instanceFindQuery+" FOR UPDATE", id)
}

func (s *WorkflowStore) find(ctx context.Context, query string, id uuid.UUID) (wf.Instance, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return wf.Instance{}, errors.Wrap(err, "failed to get transaction")
	}
	var (
		inst wf.Instance
		vars []byte
	)
	err = tx.QueryRow(ctx, query, id).Scan(
		&inst.ID,
		&inst.DefinitionCode,
		&inst.TargetType,
		&inst.TargetID,
		&inst.State,
		&inst.Finished,
		&vars,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wf.Instance{}, errors.Wrapf(wf.ErrInstanceNotFound, "instance %s", id)
		}
		return wf.Instance{}, errors.Wrap(err, "failed to query workflow instance")
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &inst.Vars); err != nil {
			return wf.Instance{}, errors.Wrap(err, "failed to decode workflow vars")
		}
	}
	return inst, nil
}

func (s *WorkflowStore) UpdateInstanceState(ctx context.Context, id uuid.UUID, state string, finished bool, at time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, instanceUpdateStateQuery, id, state, finished, at)
	if err != nil {
		return errors.Wrap(err, "failed to update workflow instance")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(wf.ErrInstanceNotFound, "instance %s", id)
	}
	return nil
}

func (s *WorkflowStore) AppendTransition(ctx context.Context, tr wf.Transition) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := tx.Exec(
		ctx,
		transitionInsertQuery,
		tr.ID,
		tr.InstanceID,
		tr.Action,
		tr.FromState,
		tr.ToState,
		tr.ActorID,
		tr.Comment,
		jsonb(tr.Payload),
		tr.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to append workflow transition")
	}
	return nil
}

func (s *WorkflowStore) ListTransitions(ctx context.Context, instanceID uuid.UUID) ([]wf.Transition, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, transitionSelectQuery, instanceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query workflow transitions")
	}
	defer rows.Close()

	var out []wf.Transition
	for rows.Next() {
		var (
			tr      wf.Transition
			payload []byte
		)
		if err := rows.Scan(
			&tr.ID,
			&tr.InstanceID,
			&tr.Action,
			&tr.FromState,
			&tr.ToState,
			&tr.ActorID,
			&tr.Comment,
			&payload,
			&tr.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan workflow transition")
		}
		if len(payload) > 0 {
			tr.Payload = json.RawMessage(payload)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate workflow transitions")
	}
	return out, nil
}
