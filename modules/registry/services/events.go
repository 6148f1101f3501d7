package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

// TopicEntityChanged is the outbox topic of committed changes.
const TopicEntityChanged = "registry.entity.changed.v1"

// EventPublisher stores an outbox message in the caller's unit of work.
type EventPublisher interface {
	Enqueue(ctx context.Context, msg outbox.Message) error
}

// ConsentDecided is published on the event bus after a decision commits.
type ConsentDecided struct {
	RequestID  uuid.UUID
	ApproverID uuid.UUID
	Status     consent.Status
	Comment    string
	At         time.Time
}

// VerdictChanged is published when a decision or a ledger reset moves the
// cached verdict of a request.
type VerdictChanged struct {
	RequestID uuid.UUID
	Kind      changerequest.Kind
	From      changerequest.Verdict
	To        changerequest.Verdict
}

// ChangeCommitted is published after an approved change was applied.
type ChangeCommitted struct {
	RequestID uuid.UUID
	EntityID  uuid.UUID
	Kind      changerequest.Kind
	ActorID   uuid.UUID
	At        time.Time
}

// EntityChangedEvent is the outbox payload of TopicEntityChanged.
type EntityChangedEvent struct {
	EventID     uuid.UUID          `json:"event_id"`
	RequestID   uuid.UUID          `json:"request_id"`
	EntityID    uuid.UUID          `json:"entity_id"`
	Kind        changerequest.Kind `json:"kind"`
	ActorID     uuid.UUID          `json:"actor_id"`
	CommittedAt time.Time          `json:"committed_at"`
	Diff        json.RawMessage    `json:"diff,omitempty"`
}

func (e EntityChangedEvent) message() (outbox.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return outbox.Message{}, err
	}
	return outbox.Message{
		AggregateID: e.EntityID,
		Topic:       TopicEntityChanged,
		EventID:     e.EventID,
		Payload:     payload,
	}, nil
}
