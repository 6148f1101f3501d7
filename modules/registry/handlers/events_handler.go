package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/entity-registry/modules/registry/services"
	"github.com/iota-uz/entity-registry/pkg/application"
	"github.com/iota-uz/entity-registry/pkg/outbox"
)

// EventsHandler records registry domain events in the application log. It
// stands in for notification delivery, which lives outside the registry.
type EventsHandler struct {
	logger *logrus.Logger
}

func RegisterEventHandlers(app application.Application) *EventsHandler {
	handler := &EventsHandler{logger: app.Logger()}
	bus := app.EventPublisher()
	bus.Subscribe(handler.onConsentDecided)
	bus.Subscribe(handler.onVerdictChanged)
	bus.Subscribe(handler.onChangeCommitted)
	bus.Subscribe(handler.onEntityChangedV1)
	return handler
}

func (h *EventsHandler) onConsentDecided(ev services.ConsentDecided) {
	h.logger.WithFields(logrus.Fields{
		"request_id":  ev.RequestID,
		"approver_id": ev.ApproverID,
		"status":      ev.Status,
	}).Info("registry: consent decided")
}

func (h *EventsHandler) onVerdictChanged(ev services.VerdictChanged) {
	h.logger.WithFields(logrus.Fields{
		"request_id": ev.RequestID,
		"kind":       ev.Kind,
		"from":       ev.From,
		"to":         ev.To,
	}).Info("registry: verdict changed")
}

func (h *EventsHandler) onChangeCommitted(ev services.ChangeCommitted) {
	h.logger.WithFields(logrus.Fields{
		"request_id": ev.RequestID,
		"entity_id":  ev.EntityID,
		"kind":       ev.Kind,
		"actor_id":   ev.ActorID,
	}).Info("registry: change committed")
}

func (h *EventsHandler) onEntityChangedV1(meta *outbox.Meta, ev *services.EntityChangedEvent) error {
	if h == nil || meta == nil || ev == nil {
		return nil
	}
	h.logger.WithFields(logrus.Fields{
		"event_id":  meta.EventID,
		"sequence":  meta.Sequence,
		"attempts":  meta.Attempts,
		"entity_id": ev.EntityID,
		"kind":      ev.Kind,
	}).Info("registry: entity change delivered")
	return nil
}
