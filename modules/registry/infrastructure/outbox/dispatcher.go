package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iota-uz/entity-registry/modules/registry/services"
	"github.com/iota-uz/entity-registry/pkg/eventbus"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

// Dispatcher decodes registry outbox messages and republishes them on the
// event bus as typed events.
type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func NewDispatcher(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	if d == nil || d.bus == nil {
		return fmt.Errorf("registry outbox dispatcher: bus is nil")
	}

	switch msg.Meta.Topic {
	case services.TopicEntityChanged:
	default:
		return fmt.Errorf("registry outbox dispatcher: unsupported topic %q", msg.Meta.Topic)
	}

	var ev services.EntityChangedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("registry outbox dispatcher: decode payload: %w", err)
	}

	return d.bus.PublishE(&msg.Meta, &ev)
}
