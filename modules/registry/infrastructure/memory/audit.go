package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
)

type AuditRepository struct {
	s *Store
}

var (
	_ audit.Sink   = (*AuditRepository)(nil)
	_ audit.Reader = (*AuditRepository)(nil)
)

func (r *AuditRepository) Append(ctx context.Context, rec audit.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("audit.Append"); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.s.data.audit = append(r.s.data.audit, rec)
	return nil
}

func (r *AuditRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]audit.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []audit.Record
	for _, rec := range r.s.data.audit {
		if rec.RequestID == requestID {
			out = append(out, rec)
		}
	}
	return out, nil
}
