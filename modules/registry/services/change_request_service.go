package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
	"github.com/iota-uz/entity-registry/pkg/eventbus"
)

const DefaultDefinitionCode = "entity_change"

var tracer = otel.Tracer("entity-registry/services")

// Dependencies are the collaborators of ChangeRequestService.
type Dependencies struct {
	Tx         Transactor
	Requests   changerequest.Repository
	Consents   consent.Repository
	Entities   entity.Repository
	Identities entity.IdentityRepository
	Audit      audit.Sink
	Outbox     EventPublisher
	Engine     wf.Engine
	// EventBus receives domain events after their unit of work committed.
	EventBus       eventbus.EventBus
	Logger         *logrus.Logger
	DefinitionCode string
	Clock          func() time.Time
}

type ChangeRequestService struct {
	tx             Transactor
	requests       changerequest.Repository
	consents       consent.Repository
	entities       entity.Repository
	audit          audit.Sink
	engine         wf.Engine
	bus            eventbus.EventBus
	logger         *logrus.Logger
	generator      *RequirementGenerator
	committer      *Committer
	definitionCode string
	now            func() time.Time
}

func NewChangeRequestService(deps Dependencies) *ChangeRequestService {
	if deps.Tx == nil {
		deps.Tx = PgTransactor{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.DefinitionCode == "" {
		deps.DefinitionCode = DefaultDefinitionCode
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &ChangeRequestService{
		tx:             deps.Tx,
		requests:       deps.Requests,
		consents:       deps.Consents,
		entities:       deps.Entities,
		audit:          deps.Audit,
		engine:         deps.Engine,
		bus:            deps.EventBus,
		logger:         deps.Logger,
		generator:      NewRequirementGenerator(deps.Entities, deps.Identities),
		committer:      NewCommitter(deps.Requests, deps.Consents, deps.Entities, deps.Audit, deps.Outbox, deps.Logger),
		definitionCode: deps.DefinitionCode,
		now:            deps.Clock,
	}
}

type SubmitInput struct {
	// EntityID is nil for FORMATION.
	EntityID  *uuid.UUID
	Kind      changerequest.Kind
	Payload   changerequest.Payload
	Initiator actor.Actor
	Comment   string
}

type TransitionInput struct {
	RequestID uuid.UUID
	Action    string
	Actor     actor.Actor
	Comment   string
	Payload   json.RawMessage
}

// PendingConsent is one open consent obligation of an approver.
type PendingConsent struct {
	Request     changerequest.ChangeRequest `json:"request"`
	Requirement consent.Requirement         `json:"requirement"`
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "registry."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publish hands events to the bus once their unit of work committed.
func (s *ChangeRequestService) publish(events []any) {
	if s.bus == nil {
		return
	}
	for _, ev := range events {
		s.bus.Publish(ev)
	}
}

func (s *ChangeRequestService) Submit(ctx context.Context, in SubmitInput) (_ changerequest.ChangeRequest, err error) {
	ctx, span := startSpan(ctx, "Submit", attribute.String("kind", string(in.Kind)))
	defer func() { endSpan(span, err) }()

	if in.Initiator.IsZero() {
		return changerequest.ChangeRequest{}, fail(ErrInvalidStructure, nil, "initiator is required")
	}
	if !in.Kind.Valid() {
		return changerequest.ChangeRequest{}, fail(ErrInvalidStructure, nil, "unknown change kind %q", in.Kind)
	}
	if in.Payload == nil || in.Payload.Kind() != in.Kind {
		return changerequest.ChangeRequest{}, fail(ErrInvalidStructure, nil, "payload does not match kind %s", in.Kind)
	}
	if in.Kind.TargetsExistingEntity() != (in.EntityID != nil) {
		return changerequest.ChangeRequest{}, fail(ErrInvalidStructure, nil, "entity id is required for %s and forbidden for %s", in.Kind, changerequest.KindFormation)
	}

	cr, err := inTx(ctx, s.tx, func(txCtx context.Context) (changerequest.ChangeRequest, error) {
		entityID := uuid.Nil
		if in.EntityID != nil {
			entityID = *in.EntityID
			if _, err := s.entities.GetForUpdate(txCtx, entityID); err != nil {
				return changerequest.ChangeRequest{}, mapError(err)
			}
			open, err := s.requests.HasOpenForEntity(txCtx, entityID)
			if err != nil {
				return changerequest.ChangeRequest{}, mapError(err)
			}
			if open {
				return changerequest.ChangeRequest{}, fail(ErrRequestInProgress, nil, "entity %s", entityID)
			}
			gone, err := s.requests.IsDeregistered(txCtx, entityID)
			if err != nil {
				return changerequest.ChangeRequest{}, mapError(err)
			}
			if gone {
				return changerequest.ChangeRequest{}, fail(ErrEntityDeregistered, nil, "entity %s", entityID)
			}
		}

		requestID := uuid.New()
		reqs, err := s.generator.Generate(txCtx, requestID, entityID, in.Payload)
		if err != nil {
			return changerequest.ChangeRequest{}, err
		}

		inst, err := s.engine.CreateInstance(txCtx, s.definitionCode, wf.TargetChangeRequest, requestID, map[string]any{
			"kind":      string(in.Kind),
			"initiator": in.Initiator.ID.String(),
		})
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}

		cr, err := s.requests.Create(txCtx, changerequest.ChangeRequest{
			ID:                 requestID,
			EntityID:           in.EntityID,
			Kind:               in.Kind,
			Payload:            in.Payload,
			Status:             statusForState(inst.State, inst.Finished),
			Verdict:            changerequest.VerdictPending,
			WorkflowInstanceID: inst.ID,
			WorkflowState:      inst.State,
			InitiatorID:        in.Initiator.ID,
		})
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if _, err := s.consents.InsertRequirements(txCtx, reqs); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if cr, _, err = s.refreshVerdict(txCtx, cr); err != nil {
			return changerequest.ChangeRequest{}, err
		}

		payload, err := changerequest.EncodePayload(in.Payload)
		if err != nil {
			return changerequest.ChangeRequest{}, err
		}
		if err := appendAudit(txCtx, s.audit, auditInput{
			Request:        cr,
			ActorID:        in.Initiator.ID,
			Action:         audit.ActionSubmit,
			ResultingState: cr.WorkflowState,
			Comment:        in.Comment,
			Payload:        payload,
			At:             s.now(),
		}); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		return cr, nil
	})
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id":   cr.ID,
		"kind":         cr.Kind,
		"entity_id":    cr.EntityRef(),
		"initiator_id": cr.InitiatorID,
	}).Info("registry: change request submitted")
	return cr, nil
}

// DecideConsent records the answer of approverID on every PENDING
// requirement they hold on the request and recomputes the verdict.
func (s *ChangeRequestService) DecideConsent(ctx context.Context, requestID, approverID uuid.UUID, approve bool, comment string) (_ changerequest.ChangeRequest, err error) {
	ctx, span := startSpan(ctx, "DecideConsent",
		attribute.String("request_id", requestID.String()),
		attribute.Bool("approve", approve),
	)
	defer func() { endSpan(span, err) }()

	status := consent.StatusRejected
	if approve {
		status = consent.StatusApproved
	}

	var events []any
	cr, err := inTx(ctx, s.tx, func(txCtx context.Context) (changerequest.ChangeRequest, error) {
		events = nil
		cr, err := s.requests.GetForUpdate(txCtx, requestID)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if cr.IsArchived() {
			return changerequest.ChangeRequest{}, fail(ErrRequestArchived, nil, "request %s", cr.ID)
		}

		reqs, err := s.consents.ListByRequest(txCtx, cr.ID)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		held, pending := 0, 0
		for _, r := range reqs {
			if r.ApproverID != approverID {
				continue
			}
			held++
			if r.Status == consent.StatusPending {
				pending++
			}
		}
		if held == 0 {
			return changerequest.ChangeRequest{}, fail(ErrNotAuthorized, nil, "%s has no consent requirement on request %s", approverID, cr.ID)
		}
		if pending == 0 {
			return changerequest.ChangeRequest{}, fail(ErrAlreadyDecided, nil, "%s on request %s", approverID, cr.ID)
		}

		at := s.now()
		n, err := s.consents.Decide(txCtx, cr.ID, approverID, status, comment, at)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if n == 0 {
			return changerequest.ChangeRequest{}, fail(ErrAlreadyDecided, nil, "%s on request %s", approverID, cr.ID)
		}
		events = append(events, ConsentDecided{RequestID: cr.ID, ApproverID: approverID, Status: status, Comment: comment, At: at})

		before := cr.Verdict
		cr, _, err = s.refreshVerdict(txCtx, cr)
		if err != nil {
			return changerequest.ChangeRequest{}, err
		}
		if cr.Verdict != before {
			events = append(events, VerdictChanged{RequestID: cr.ID, Kind: cr.Kind, From: before, To: cr.Verdict})
		}

		if err := appendAudit(txCtx, s.audit, auditInput{
			Request:        cr,
			ActorID:        approverID,
			Action:         audit.ActionDecide,
			ResultingState: string(cr.Verdict),
			Comment:        comment,
			At:             at,
		}); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		return cr, nil
	})
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}

	registryConsentDecisions.WithLabelValues(string(status)).Inc()
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id":  cr.ID,
		"approver_id": approverID,
		"status":      status,
		"verdict":     cr.Verdict,
	}).Info("registry: consent decided")
	s.publish(events)
	return cr, nil
}

// Withdraw rejects every open requirement, cancels the workflow instance and
// archives the request. Only the initiator may withdraw.
func (s *ChangeRequestService) Withdraw(ctx context.Context, requestID uuid.UUID, initiator actor.Actor, comment string) (err error) {
	ctx, span := startSpan(ctx, "Withdraw", attribute.String("request_id", requestID.String()))
	defer func() { endSpan(span, err) }()

	var events []any
	_, err = inTx(ctx, s.tx, func(txCtx context.Context) (changerequest.ChangeRequest, error) {
		events = nil
		cr, err := s.requests.GetForUpdate(txCtx, requestID)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if cr.IsArchived() {
			return changerequest.ChangeRequest{}, fail(ErrRequestArchived, nil, "request %s", cr.ID)
		}
		if initiator.IsZero() || initiator.ID != cr.InitiatorID {
			return changerequest.ChangeRequest{}, fail(ErrNotAuthorized, nil, "only the initiator may withdraw request %s", cr.ID)
		}

		at := s.now()
		if _, err := s.consents.RejectPending(txCtx, cr.ID, comment, at); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		res, err := s.engine.PerformAction(txCtx, cr.WorkflowInstanceID, wf.ActionCancel, initiator.WithRole(actor.RoleInitiator), comment, nil)
		recordTransition(wf.ActionCancel, err)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}

		before := cr.Verdict
		if cr, _, err = s.refreshVerdict(txCtx, cr); err != nil {
			return changerequest.ChangeRequest{}, err
		}
		if cr.Verdict != before {
			events = append(events, VerdictChanged{RequestID: cr.ID, Kind: cr.Kind, From: before, To: cr.Verdict})
		}
		if err := s.requests.UpdateStatus(txCtx, cr.ID, changerequest.StatusArchived, res.NextState); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		cr.Status = changerequest.StatusArchived
		cr.WorkflowState = res.NextState

		if err := appendAudit(txCtx, s.audit, auditInput{
			Request:        cr,
			ActorID:        initiator.ID,
			Action:         audit.ActionWithdraw,
			ResultingState: res.NextState,
			Comment:        comment,
			At:             at,
		}); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		return cr, nil
	})
	if err != nil {
		return err
	}
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id":   requestID,
		"initiator_id": initiator.ID,
	}).Info("registry: change request withdrawn")
	s.publish(events)
	return nil
}

// PerformAdminTransition drives the workflow of a request through the
// transition guard. approve commits the change in the same unit of work.
func (s *ChangeRequestService) PerformAdminTransition(ctx context.Context, in TransitionInput) (_ changerequest.ChangeRequest, err error) {
	action := normalizeAction(in.Action)
	ctx, span := startSpan(ctx, "PerformAdminTransition",
		attribute.String("request_id", in.RequestID.String()),
		attribute.String("action", action),
	)
	defer func() { endSpan(span, err) }()

	if in.Actor.IsZero() {
		return changerequest.ChangeRequest{}, fail(ErrNotAuthorized, nil, "actor is required")
	}

	var events []any
	cr, err := inTx(ctx, s.tx, func(txCtx context.Context) (changerequest.ChangeRequest, error) {
		events = nil
		cr, err := s.requests.GetForUpdate(txCtx, in.RequestID)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if action == wf.ActionApprove && cr.IsCommitted() {
			return changerequest.ChangeRequest{}, fail(ErrAlreadyApplied, nil, "request %s", cr.ID)
		}
		if cr.IsArchived() {
			return changerequest.ChangeRequest{}, fail(ErrRequestArchived, nil, "request %s", cr.ID)
		}
		if action == wf.ActionResubmit {
			return s.resubmit(txCtx, cr, in.Actor, nil, in.Comment, &events)
		}

		reqs, err := s.consents.ListByRequest(txCtx, cr.ID)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if err := guardTransition(cr, action, reqs); err != nil {
			return changerequest.ChangeRequest{}, err
		}

		res, err := s.engine.PerformAction(txCtx, cr.WorkflowInstanceID, action, in.Actor, in.Comment, in.Payload)
		recordTransition(action, err)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}

		at := s.now()
		switch action {
		case wf.ActionRequestChanges:
			if err := s.consents.DeleteByRequest(txCtx, cr.ID); err != nil {
				return changerequest.ChangeRequest{}, mapError(err)
			}
			if cr.Verdict != changerequest.VerdictPending {
				if err := s.requests.UpdateVerdict(txCtx, cr.ID, changerequest.VerdictPending); err != nil {
					return changerequest.ChangeRequest{}, mapError(err)
				}
				events = append(events, VerdictChanged{RequestID: cr.ID, Kind: cr.Kind, From: cr.Verdict, To: changerequest.VerdictPending})
				cr.Verdict = changerequest.VerdictPending
			}
		case wf.ActionCancel:
			if _, err := s.consents.RejectPending(txCtx, cr.ID, in.Comment, at); err != nil {
				return changerequest.ChangeRequest{}, mapError(err)
			}
		case wf.ActionApprove:
			committed, err := s.committer.Commit(txCtx, cr, in.Actor.ID, at)
			if err != nil {
				return changerequest.ChangeRequest{}, err
			}
			cr.EntityID = &committed.EntityID
			cr.CommittedAt = &at
			events = append(events, ChangeCommitted{RequestID: cr.ID, EntityID: committed.EntityID, Kind: cr.Kind, ActorID: in.Actor.ID, At: at})
		}

		cr.Status = statusForState(res.NextState, res.Finished)
		cr.WorkflowState = res.NextState
		if err := s.requests.UpdateStatus(txCtx, cr.ID, cr.Status, cr.WorkflowState); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if err := appendAudit(txCtx, s.audit, auditInput{
			Request:        cr,
			ActorID:        in.Actor.ID,
			Action:         action,
			ResultingState: res.NextState,
			Comment:        in.Comment,
			Payload:        in.Payload,
			At:             at,
		}); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		return cr, nil
	})
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id": cr.ID,
		"action":     action,
		"state":      cr.WorkflowState,
		"actor_id":   in.Actor.ID,
	}).Info("registry: transition applied")
	s.publish(events)
	return cr, nil
}

// Resubmit answers a request_changes round: the ledger is regenerated from
// revised (or the stored payload when revised is nil) before the request
// returns to submitted.
func (s *ChangeRequestService) Resubmit(ctx context.Context, requestID uuid.UUID, initiator actor.Actor, revised changerequest.Payload, comment string) (_ changerequest.ChangeRequest, err error) {
	ctx, span := startSpan(ctx, "Resubmit", attribute.String("request_id", requestID.String()))
	defer func() { endSpan(span, err) }()

	var events []any
	cr, err := inTx(ctx, s.tx, func(txCtx context.Context) (changerequest.ChangeRequest, error) {
		events = nil
		cr, err := s.requests.GetForUpdate(txCtx, requestID)
		if err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		if cr.IsArchived() {
			return changerequest.ChangeRequest{}, fail(ErrRequestArchived, nil, "request %s", cr.ID)
		}
		if initiator.IsZero() || initiator.ID != cr.InitiatorID {
			return changerequest.ChangeRequest{}, fail(ErrNotAuthorized, nil, "only the initiator may resubmit request %s", cr.ID)
		}
		return s.resubmit(txCtx, cr, initiator.WithRole(actor.RoleInitiator), revised, comment, &events)
	})
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id": cr.ID,
		"revised":    revised != nil,
	}).Info("registry: change request resubmitted")
	s.publish(events)
	return cr, nil
}

func (s *ChangeRequestService) resubmit(ctx context.Context, cr changerequest.ChangeRequest, act actor.Actor, revised changerequest.Payload, comment string, events *[]any) (changerequest.ChangeRequest, error) {
	if cr.Status != changerequest.StatusNeedsChanges {
		return changerequest.ChangeRequest{}, fail(ErrTransitionNotAllowed, nil, "request %s is %s", cr.ID, cr.Status)
	}
	payload := cr.Payload
	if revised != nil {
		if revised.Kind() != cr.Kind {
			return changerequest.ChangeRequest{}, fail(ErrInvalidStructure, nil, "payload does not match kind %s", cr.Kind)
		}
		payload = revised
	}

	if err := s.consents.DeleteByRequest(ctx, cr.ID); err != nil {
		return changerequest.ChangeRequest{}, mapError(err)
	}
	reqs, err := s.generator.Generate(ctx, cr.ID, cr.EntityRef(), payload)
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}
	if revised != nil {
		if err := s.requests.UpdatePayload(ctx, cr.ID, payload); err != nil {
			return changerequest.ChangeRequest{}, mapError(err)
		}
		cr.Payload = payload
	}
	if _, err := s.consents.InsertRequirements(ctx, reqs); err != nil {
		return changerequest.ChangeRequest{}, mapError(err)
	}
	before := cr.Verdict
	if cr, _, err = s.refreshVerdict(ctx, cr); err != nil {
		return changerequest.ChangeRequest{}, err
	}
	if cr.Verdict != before {
		*events = append(*events, VerdictChanged{RequestID: cr.ID, Kind: cr.Kind, From: before, To: cr.Verdict})
	}

	res, err := s.engine.PerformAction(ctx, cr.WorkflowInstanceID, wf.ActionResubmit, act, comment, nil)
	recordTransition(wf.ActionResubmit, err)
	if err != nil {
		return changerequest.ChangeRequest{}, mapError(err)
	}
	cr.Status = statusForState(res.NextState, res.Finished)
	cr.WorkflowState = res.NextState
	if err := s.requests.UpdateStatus(ctx, cr.ID, cr.Status, cr.WorkflowState); err != nil {
		return changerequest.ChangeRequest{}, mapError(err)
	}

	var raw json.RawMessage
	if revised != nil {
		if raw, err = changerequest.EncodePayload(revised); err != nil {
			return changerequest.ChangeRequest{}, err
		}
	}
	if err := appendAudit(ctx, s.audit, auditInput{
		Request:        cr,
		ActorID:        act.ID,
		Action:         wf.ActionResubmit,
		ResultingState: res.NextState,
		Comment:        comment,
		Payload:        raw,
		At:             s.now(),
	}); err != nil {
		return changerequest.ChangeRequest{}, mapError(err)
	}
	return cr, nil
}

// refreshVerdict recomputes the verdict from the ledger and stores it when
// it changed.
func (s *ChangeRequestService) refreshVerdict(ctx context.Context, cr changerequest.ChangeRequest) (changerequest.ChangeRequest, consent.Progress, error) {
	reqs, err := s.consents.ListByRequest(ctx, cr.ID)
	if err != nil {
		return cr, consent.Progress{}, mapError(err)
	}
	progress := consent.Evaluate(cr.Kind, reqs)
	if progress.Verdict == cr.Verdict {
		return cr, progress, nil
	}
	if err := s.requests.UpdateVerdict(ctx, cr.ID, progress.Verdict); err != nil {
		return cr, consent.Progress{}, mapError(err)
	}
	registryVerdictChanges.WithLabelValues(string(cr.Kind), string(progress.Verdict)).Inc()
	cr.Verdict = progress.Verdict
	return cr, progress, nil
}

// ListPendingConsentsFor returns the open requirements of approverID on
// requests that are not archived.
func (s *ChangeRequestService) ListPendingConsentsFor(ctx context.Context, approverID uuid.UUID) (_ []PendingConsent, err error) {
	ctx, span := startSpan(ctx, "ListPendingConsentsFor", attribute.String("approver_id", approverID.String()))
	defer func() { endSpan(span, err) }()

	reqs, err := s.consents.ListPendingByApprover(ctx, approverID)
	if err != nil {
		return nil, mapError(err)
	}
	requests := make(map[uuid.UUID]changerequest.ChangeRequest)
	out := make([]PendingConsent, 0, len(reqs))
	for _, r := range reqs {
		cr, ok := requests[r.RequestID]
		if !ok {
			cr, err = s.requests.GetByID(ctx, r.RequestID)
			if err != nil {
				return nil, mapError(err)
			}
			requests[r.RequestID] = cr
		}
		if cr.IsArchived() {
			continue
		}
		out = append(out, PendingConsent{Request: cr, Requirement: r})
	}
	return out, nil
}

// Get returns a request with its ledger and the progress breakdown.
func (s *ChangeRequestService) Get(ctx context.Context, requestID uuid.UUID) (_ changerequest.ChangeRequest, _ []consent.Requirement, _ consent.Progress, err error) {
	ctx, span := startSpan(ctx, "Get", attribute.String("request_id", requestID.String()))
	defer func() { endSpan(span, err) }()

	cr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return changerequest.ChangeRequest{}, nil, consent.Progress{}, mapError(err)
	}
	reqs, err := s.consents.ListByRequest(ctx, requestID)
	if err != nil {
		return changerequest.ChangeRequest{}, nil, consent.Progress{}, mapError(err)
	}
	return cr, reqs, consent.Evaluate(cr.Kind, reqs), nil
}

// History returns the workflow transitions of a request.
func (s *ChangeRequestService) History(ctx context.Context, requestID uuid.UUID) ([]wf.Transition, error) {
	cr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, mapError(err)
	}
	history, err := s.engine.History(ctx, cr.WorkflowInstanceID)
	if err != nil {
		return nil, mapError(err)
	}
	return history, nil
}
