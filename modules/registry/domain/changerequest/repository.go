package changerequest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, cr ChangeRequest) (ChangeRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (ChangeRequest, error)
	// GetForUpdate locks the request row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (ChangeRequest, error)
	UpdateVerdict(ctx context.Context, id uuid.UUID, verdict Verdict) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, workflowState string) error
	UpdatePayload(ctx context.Context, id uuid.UUID, payload Payload) error
	// MarkCommitted sets committed_at only when it is still unset and reports
	// whether this call was the one that set it.
	MarkCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SetEntityID(ctx context.Context, id uuid.UUID, entityID uuid.UUID) error
	// HasOpenForEntity reports whether a non-archived request targets entityID.
	HasOpenForEntity(ctx context.Context, entityID uuid.UUID) (bool, error)
	// IsDeregistered reports whether a DEREGISTRATION of entityID was committed.
	IsDeregistered(ctx context.Context, entityID uuid.UUID) (bool, error)
}
