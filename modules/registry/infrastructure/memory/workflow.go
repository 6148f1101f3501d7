package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
	wfinfra "github.com/iota-uz/entity-registry/modules/registry/infrastructure/workflow"
)

// InstanceStore keeps workflow instances and their history.
type InstanceStore struct {
	s *Store
}

var _ wfinfra.InstanceStore = (*InstanceStore)(nil)

func (r *InstanceStore) CreateInstance(ctx context.Context, inst wf.Instance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("workflow.CreateInstance"); err != nil {
		return err
	}
	r.s.data.instances[inst.ID] = inst
	return nil
}

func (r *InstanceStore) GetInstance(ctx context.Context, id uuid.UUID) (wf.Instance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inst, ok := r.s.data.instances[id]
	if !ok {
		return wf.Instance{}, wf.ErrInstanceNotFound
	}
	return inst, nil
}

func (r *InstanceStore) GetInstanceForUpdate(ctx context.Context, id uuid.UUID) (wf.Instance, error) {
	return r.GetInstance(ctx, id)
}

func (r *InstanceStore) UpdateInstanceState(ctx context.Context, id uuid.UUID, state string, finished bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("workflow.UpdateInstanceState"); err != nil {
		return err
	}
	inst, ok := r.s.data.instances[id]
	if !ok {
		return wf.ErrInstanceNotFound
	}
	inst.State = state
	inst.Finished = finished
	inst.UpdatedAt = at
	r.s.data.instances[id] = inst
	return nil
}

func (r *InstanceStore) AppendTransition(ctx context.Context, tr wf.Transition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("workflow.AppendTransition"); err != nil {
		return err
	}
	r.s.data.transitions[tr.InstanceID] = append(r.s.data.transitions[tr.InstanceID], tr)
	return nil
}

func (r *InstanceStore) ListTransitions(ctx context.Context, instanceID uuid.UUID) ([]wf.Transition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]wf.Transition(nil), r.s.data.transitions[instanceID]...), nil
}
