package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/pkg/outbox"
)

// OutboxRepository collects enqueued messages, idempotent by event id.
type OutboxRepository struct {
	s *Store
}

func (r *OutboxRepository) Enqueue(ctx context.Context, msg outbox.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("outbox.Enqueue"); err != nil {
		return err
	}
	if msg.EventID == uuid.Nil || msg.Topic == "" {
		return fmt.Errorf("%w: event_id and topic are required", outbox.ErrInvalidConfig)
	}
	for _, m := range r.s.data.events {
		if m.EventID == msg.EventID {
			return nil
		}
	}
	r.s.data.events = append(r.s.data.events, msg)
	return nil
}

func (r *OutboxRepository) Messages() []outbox.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]outbox.Message(nil), r.s.data.events...)
}
