package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
)

type ConsentRepository struct {
	s *Store
}

var _ consent.Repository = (*ConsentRepository)(nil)

func (r *ConsentRepository) InsertRequirements(ctx context.Context, reqs []consent.Requirement) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("consents.InsertRequirements"); err != nil {
		return 0, err
	}
	inserted := 0
	for _, req := range reqs {
		rows := r.s.data.requirements[req.RequestID]
		dup := false
		for _, existing := range rows {
			if existing.Key() == req.Key() {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		if req.Status == "" {
			req.Status = consent.StatusPending
		}
		r.s.data.requirements[req.RequestID] = append(rows, req)
		inserted++
	}
	return inserted, nil
}

func (r *ConsentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]consent.Requirement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("consents.ListByRequest"); err != nil {
		return nil, err
	}
	return append([]consent.Requirement(nil), r.s.data.requirements[requestID]...), nil
}

func (r *ConsentRepository) Decide(ctx context.Context, requestID, approverID uuid.UUID, status consent.Status, comment string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("consents.Decide"); err != nil {
		return 0, err
	}
	rows := append([]consent.Requirement(nil), r.s.data.requirements[requestID]...)
	n := 0
	for i, req := range rows {
		if req.ApproverID != approverID || req.Status != consent.StatusPending {
			continue
		}
		t := at
		rows[i].Status = status
		rows[i].Comment = comment
		rows[i].DecidedAt = &t
		n++
	}
	r.s.data.requirements[requestID] = rows
	return n, nil
}

func (r *ConsentRepository) RejectPending(ctx context.Context, requestID uuid.UUID, comment string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("consents.RejectPending"); err != nil {
		return 0, err
	}
	rows := append([]consent.Requirement(nil), r.s.data.requirements[requestID]...)
	n := 0
	for i, req := range rows {
		if req.Status != consent.StatusPending {
			continue
		}
		t := at
		rows[i].Status = consent.StatusRejected
		rows[i].Comment = comment
		rows[i].DecidedAt = &t
		n++
	}
	r.s.data.requirements[requestID] = rows
	return n, nil
}

func (r *ConsentRepository) DeleteByRequest(ctx context.Context, requestID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("consents.DeleteByRequest"); err != nil {
		return err
	}
	delete(r.s.data.requirements, requestID)
	return nil
}

func (r *ConsentRepository) ListPendingByApprover(ctx context.Context, approverID uuid.UUID) ([]consent.Requirement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []consent.Requirement
	for _, rows := range r.s.data.requirements {
		for _, req := range rows {
			if req.ApproverID == approverID && req.Status == consent.StatusPending {
				out = append(out, req)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestID != out[j].RequestID {
			return out[i].RequestID.String() < out[j].RequestID.String()
		}
		return out[i].Role < out[j].Role
	})
	return out, nil
}
