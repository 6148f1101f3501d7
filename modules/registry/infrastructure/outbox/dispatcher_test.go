package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/services"
	"github.com/iota-uz/entity-registry/pkg/eventbus"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

func TestDispatcher_PublishesTypedEvent(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())
	var got *services.EntityChangedEvent
	bus.Subscribe(func(meta *outbox.Meta, ev *services.EntityChangedEvent) error {
		got = ev
		return nil
	})

	ev := services.EntityChangedEvent{
		EventID:   uuid.New(),
		RequestID: uuid.New(),
		EntityID:  uuid.New(),
		Kind:      changerequest.KindRename,
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	err = NewDispatcher(bus).Dispatch(context.Background(), outbox.DispatchedMessage{
		Meta:    outbox.Meta{Topic: services.TopicEntityChanged, EventID: ev.EventID},
		Payload: payload,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, ev.EntityID, got.EntityID)
	require.Equal(t, changerequest.KindRename, got.Kind)
}

func TestDispatcher_Rejects(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())
	d := NewDispatcher(bus)

	err := d.Dispatch(context.Background(), outbox.DispatchedMessage{Meta: outbox.Meta{Topic: "other.v1"}})
	require.ErrorContains(t, err, "unsupported topic")

	err = d.Dispatch(context.Background(), outbox.DispatchedMessage{
		Meta:    outbox.Meta{Topic: services.TopicEntityChanged},
		Payload: json.RawMessage(`{`),
	})
	require.ErrorContains(t, err, "decode payload")

	var nilDispatcher *Dispatcher
	require.Error(t, nilDispatcher.Dispatch(context.Background(), outbox.DispatchedMessage{}))
}
