package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
)

type ChangeRequestRepository struct {
	s *Store
}

var _ changerequest.Repository = (*ChangeRequestRepository)(nil)

func (r *ChangeRequestRepository) Create(ctx context.Context, cr changerequest.ChangeRequest) (changerequest.ChangeRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("changeRequests.Create"); err != nil {
		return changerequest.ChangeRequest{}, err
	}
	if cr.ID == uuid.Nil {
		cr.ID = uuid.New()
	}
	now := time.Now().UTC()
	cr.CreatedAt = now
	cr.UpdatedAt = now
	r.s.data.requests[cr.ID] = cr
	return cr, nil
}

func (r *ChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (changerequest.ChangeRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("changeRequests.GetByID"); err != nil {
		return changerequest.ChangeRequest{}, err
	}
	cr, ok := r.s.data.requests[id]
	if !ok {
		return changerequest.ChangeRequest{}, changerequest.ErrNotFound
	}
	return cr, nil
}

func (r *ChangeRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (changerequest.ChangeRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *ChangeRequestRepository) update(op string, id uuid.UUID, fn func(*changerequest.ChangeRequest)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(op); err != nil {
		return err
	}
	cr, ok := r.s.data.requests[id]
	if !ok {
		return changerequest.ErrNotFound
	}
	fn(&cr)
	cr.UpdatedAt = time.Now().UTC()
	r.s.data.requests[id] = cr
	return nil
}

func (r *ChangeRequestRepository) UpdateVerdict(ctx context.Context, id uuid.UUID, verdict changerequest.Verdict) error {
	return r.update("changeRequests.UpdateVerdict", id, func(cr *changerequest.ChangeRequest) {
		cr.Verdict = verdict
	})
}

func (r *ChangeRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status changerequest.Status, workflowState string) error {
	return r.update("changeRequests.UpdateStatus", id, func(cr *changerequest.ChangeRequest) {
		cr.Status = status
		cr.WorkflowState = workflowState
	})
}

func (r *ChangeRequestRepository) UpdatePayload(ctx context.Context, id uuid.UUID, payload changerequest.Payload) error {
	return r.update("changeRequests.UpdatePayload", id, func(cr *changerequest.ChangeRequest) {
		cr.Payload = payload
	})
}

func (r *ChangeRequestRepository) MarkCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	marked := false
	err := r.update("changeRequests.MarkCommitted", id, func(cr *changerequest.ChangeRequest) {
		if cr.CommittedAt != nil {
			return
		}
		t := at
		cr.CommittedAt = &t
		marked = true
	})
	return marked, err
}

func (r *ChangeRequestRepository) SetEntityID(ctx context.Context, id uuid.UUID, entityID uuid.UUID) error {
	return r.update("changeRequests.SetEntityID", id, func(cr *changerequest.ChangeRequest) {
		eid := entityID
		cr.EntityID = &eid
	})
}

func (r *ChangeRequestRepository) HasOpenForEntity(ctx context.Context, entityID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, cr := range r.s.data.requests {
		if cr.EntityID != nil && *cr.EntityID == entityID && !cr.IsArchived() {
			return true, nil
		}
	}
	return false, nil
}

func (r *ChangeRequestRepository) IsDeregistered(ctx context.Context, entityID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, cr := range r.s.data.requests {
		if cr.EntityID != nil && *cr.EntityID == entityID && cr.Kind == changerequest.KindDeregistration && cr.IsCommitted() {
			return true, nil
		}
	}
	return false, nil
}
