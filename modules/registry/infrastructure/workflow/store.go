package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
)

// InstanceStore persists workflow instances and their transition history.
type InstanceStore interface {
	CreateInstance(ctx context.Context, inst wf.Instance) error
	GetInstance(ctx context.Context, id uuid.UUID) (wf.Instance, error)
	// GetInstanceForUpdate locks the instance for the rest of the transaction.
	GetInstanceForUpdate(ctx context.Context, id uuid.UUID) (wf.Instance, error)
	UpdateInstanceState(ctx context.Context, id uuid.UUID, state string, finished bool, at time.Time) error
	AppendTransition(ctx context.Context, tr wf.Transition) error
	ListTransitions(ctx context.Context, instanceID uuid.UUID) ([]wf.Transition, error)
}
