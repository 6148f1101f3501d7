package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionSubmit   = "submit"
	ActionDecide   = "decide_consent"
	ActionWithdraw = "withdraw"
	ActionCommit   = "commit"
)

// Record is an immutable audit log entry.
type Record struct {
	ID             uuid.UUID       `json:"id"`
	EntityID       *uuid.UUID      `json:"entity_id,omitempty"`
	RequestID      uuid.UUID       `json:"request_id"`
	ActorID        uuid.UUID       `json:"actor_id"`
	Action         string          `json:"action"`
	ResultingState string          `json:"resulting_state"`
	Comment        string          `json:"comment,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Sink is append-only.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Reader is used by tooling and tests to inspect the trail of a request.
type Reader interface {
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Record, error)
}
