package services

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/memory"
	wfinfra "github.com/iota-uz/entity-registry/modules/registry/infrastructure/workflow"
	"github.com/iota-uz/entity-registry/pkg/authz"
	"github.com/iota-uz/entity-registry/pkg/eventbus"
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	bus      eventbus.EventBusWithError
	svc      *ChangeRequestService
	reviewer actor.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.New()
	engine, err := wfinfra.NewEngine(store.Workflow(), authz.ModeEnforce,
		[]wfinfra.Definition{wfinfra.DefaultDefinition()}, wfinfra.WithLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewEventPublisher(logger)
	svc := NewChangeRequestService(Dependencies{
		Tx:         store,
		Requests:   store.ChangeRequests(),
		Consents:   store.Consents(),
		Entities:   store.Entities(),
		Identities: store.Identities(),
		Audit:      store.Audit(),
		Outbox:     store.Outbox(),
		Engine:     engine,
		EventBus:   bus,
		Logger:     logger,
	})
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		bus:      bus,
		svc:      svc,
		reviewer: actor.New(uuid.New(), actor.RoleReviewer),
	}
}

func (f *fixture) person() uuid.UUID {
	id := uuid.New()
	f.store.Identities().PutPerson(id)
	return id
}

func (f *fixture) people(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = f.person()
	}
	return out
}

func personHolder(id uuid.UUID) entity.Holder {
	return entity.Holder{Kind: entity.HolderPerson, ID: id}
}

// entityOwnedBy seeds an entity whose person stakeholders hold the given
// weights; capital equals weight so proportional mode holds.
func (f *fixture) entityOwnedBy(name string, weights ...float64) (entity.Entity, []uuid.UUID) {
	holders := f.people(len(weights))
	rows := make([]entity.Stakeholder, len(weights))
	total := decimal.Zero
	for i, w := range weights {
		rows[i] = entity.Stakeholder{Holder: personHolder(holders[i]), Capital: decimal.NewFromFloat(w), Weight: w}
		total = total.Add(rows[i].Capital)
	}
	e := f.store.Entities().PutEntity(entity.Entity{
		Name:              name,
		RegisteredCapital: total,
		Domicile:          entity.Domicile{RegionCode: "1201", Address: "1 Main St"},
	}, rows...)
	return e, holders
}

func (f *fixture) submit(entityID uuid.UUID, initiator uuid.UUID, p changerequest.Payload) changerequest.ChangeRequest {
	f.t.Helper()
	id := entityID
	cr, err := f.svc.Submit(f.ctx, SubmitInput{
		EntityID:  &id,
		Kind:      p.Kind(),
		Payload:   p,
		Initiator: actor.New(initiator),
	})
	require.NoError(f.t, err)
	return cr
}

func (f *fixture) decide(requestID, approverID uuid.UUID, approve bool) changerequest.ChangeRequest {
	f.t.Helper()
	cr, err := f.svc.DecideConsent(f.ctx, requestID, approverID, approve, "")
	require.NoError(f.t, err)
	return cr
}

func (f *fixture) transition(requestID uuid.UUID, action string) (changerequest.ChangeRequest, error) {
	return f.svc.PerformAdminTransition(f.ctx, TransitionInput{
		RequestID: requestID,
		Action:    action,
		Actor:     f.reviewer,
	})
}

func (f *fixture) ledger(requestID uuid.UUID) []consent.Requirement {
	f.t.Helper()
	reqs, err := f.store.Consents().ListByRequest(f.ctx, requestID)
	require.NoError(f.t, err)
	return reqs
}

func (f *fixture) request(requestID uuid.UUID) changerequest.ChangeRequest {
	f.t.Helper()
	cr, err := f.store.ChangeRequests().GetByID(f.ctx, requestID)
	require.NoError(f.t, err)
	return cr
}

func (f *fixture) entity(id uuid.UUID) entity.Entity {
	f.t.Helper()
	e, err := f.store.Entities().Get(f.ctx, id)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) snapshot(id uuid.UUID) entity.Snapshot {
	f.t.Helper()
	snap, err := f.store.Entities().Snapshot(f.ctx, id)
	require.NoError(f.t, err)
	return snap
}

func (f *fixture) instanceState(cr changerequest.ChangeRequest) string {
	f.t.Helper()
	inst, err := f.store.Workflow().GetInstance(f.ctx, cr.WorkflowInstanceID)
	require.NoError(f.t, err)
	return inst.State
}

func rolesOf(reqs []consent.Requirement) map[consent.Role]int {
	out := map[consent.Role]int{}
	for _, r := range reqs {
		out[r.Role]++
	}
	return out
}
