package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
)

// Committer applies approved changes to the entity record. It must run
// inside the unit of work of the approve transition.
type Committer struct {
	requests changerequest.Repository
	consents consent.Repository
	entities entity.Repository
	audit    audit.Sink
	outbox   EventPublisher
	logger   *logrus.Logger
}

func NewCommitter(
	requests changerequest.Repository,
	consents consent.Repository,
	entities entity.Repository,
	sink audit.Sink,
	outbox EventPublisher,
	logger *logrus.Logger,
) *Committer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Committer{
		requests: requests,
		consents: consents,
		entities: entities,
		audit:    sink,
		outbox:   outbox,
		logger:   logger,
	}
}

// CommitResult describes an applied change.
type CommitResult struct {
	EntityID uuid.UUID
	Diff     []byte
}

// Commit re-checks the ledger, marks the request committed and applies the
// kind-specific mutation. Any error leaves the unit of work to be rolled back.
func (c *Committer) Commit(ctx context.Context, cr changerequest.ChangeRequest, actorID uuid.UUID, at time.Time) (res CommitResult, err error) {
	defer func() { recordCommit(string(cr.Kind), err) }()

	reqs, err := c.consents.ListByRequest(ctx, cr.ID)
	if err != nil {
		return CommitResult{}, mapError(err)
	}
	if progress := consent.Evaluate(cr.Kind, reqs); progress.Verdict != changerequest.VerdictApproved {
		return CommitResult{}, fail(ErrConsentIncomplete, nil, "ledger verdict is %s", progress.Verdict)
	}

	marked, err := c.requests.MarkCommitted(ctx, cr.ID, at)
	if err != nil {
		return CommitResult{}, mapError(err)
	}
	if !marked {
		return CommitResult{}, fail(ErrAlreadyApplied, nil, "request %s", cr.ID)
	}

	entityID, before, err := c.apply(ctx, cr)
	if err != nil {
		return CommitResult{}, err
	}
	after, err := c.state(ctx, entityID)
	if err != nil {
		return CommitResult{}, err
	}
	diff, err := newCommitDiff(before, after)
	if err != nil {
		return CommitResult{}, err
	}

	committed := cr
	committed.EntityID = &entityID
	if err := appendAudit(ctx, c.audit, auditInput{
		Request:        committed,
		ActorID:        actorID,
		Action:         audit.ActionCommit,
		ResultingState: "committed",
		Payload:        diff,
		At:             at,
	}); err != nil {
		return CommitResult{}, mapError(err)
	}

	if c.outbox != nil {
		msg, err := EntityChangedEvent{
			EventID:     uuid.New(),
			RequestID:   cr.ID,
			EntityID:    entityID,
			Kind:        cr.Kind,
			ActorID:     actorID,
			CommittedAt: at,
			Diff:        diff,
		}.message()
		if err != nil {
			return CommitResult{}, err
		}
		if err := c.outbox.Enqueue(ctx, msg); err != nil {
			return CommitResult{}, err
		}
	}

	c.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id": cr.ID,
		"entity_id":  entityID,
		"kind":       cr.Kind,
		"actor_id":   actorID,
	}).Info("registry: change committed")

	return CommitResult{EntityID: entityID, Diff: diff}, nil
}

// apply returns the affected entity and its state before the mutation.
func (c *Committer) apply(ctx context.Context, cr changerequest.ChangeRequest) (uuid.UUID, *entityState, error) {
	if p, ok := cr.Payload.(changerequest.FormationPayload); ok {
		id, err := c.form(ctx, cr.ID, p)
		return id, nil, err
	}

	entityID := cr.EntityRef()
	e, err := c.entities.GetForUpdate(ctx, entityID)
	if err != nil {
		return uuid.Nil, nil, mapError(err)
	}
	before, err := c.state(ctx, entityID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	switch p := cr.Payload.(type) {
	case changerequest.RenamePayload:
		err = c.rename(ctx, e, p)
	case changerequest.DomicileChangePayload:
		err = c.moveDomicile(ctx, e, p)
	case changerequest.BusinessScopeChangePayload:
		err = c.entities.UpdateBusinessScope(ctx, e.ID, p.BusinessScope)
	case changerequest.CapitalChangePayload:
		err = c.changeCapital(ctx, e, p)
	case changerequest.OfficerChangePayload:
		err = c.replaceOfficers(ctx, e, entity.BoardRoles, p.Roster())
	case changerequest.ManagementChangePayload:
		err = c.replaceOfficers(ctx, e, entity.ManagementRoles, p.Roster())
	case changerequest.EquityTransferPayload:
		err = c.transfer(ctx, e, p)
	case changerequest.DeregistrationPayload:
		// the terminal workflow state is the whole effect
	default:
		err = fail(ErrInvalidStructure, nil, "unsupported payload %T", cr.Payload)
	}
	if err != nil {
		return uuid.Nil, nil, mapError(err)
	}
	return e.ID, before, nil
}

func (c *Committer) form(ctx context.Context, requestID uuid.UUID, p changerequest.FormationPayload) (uuid.UUID, error) {
	taken, err := c.entities.NameTaken(ctx, p.Name, uuid.Nil)
	if err != nil {
		return uuid.Nil, mapError(err)
	}
	if taken {
		return uuid.Nil, fail(ErrNameConflict, nil, "%q", p.Name)
	}
	if err := checkAuthority(ctx, c.entities, p.ApprovingAuthorityID, p.Domicile); err != nil {
		return uuid.Nil, err
	}
	rows, err := p.Stakeholders.Resolve(p.Mode())
	if err != nil {
		return uuid.Nil, fail(ErrInvalidStructure, err, "founding stakeholders")
	}

	rep := p.LegalRepresentativeID
	e, err := c.entities.Create(ctx, entity.Entity{
		ID:                    uuid.New(),
		Name:                  p.Name,
		RegisteredCapital:     p.RegisteredCapital,
		Domicile:              p.Domicile,
		ApprovingAuthorityID:  p.ApprovingAuthorityID,
		BusinessScope:         p.BusinessScope,
		LegalRepresentativeID: &rep,
		WeightMode:            p.Mode(),
		Status:                entity.StatusActive,
		Officers:              p.Officers,
	})
	if err != nil {
		return uuid.Nil, mapError(err)
	}
	for i := range rows {
		rows[i].ID = uuid.New()
	}
	if err := c.entities.ReplaceStakeholders(ctx, e.ID, rows); err != nil {
		return uuid.Nil, mapError(err)
	}
	if err := c.requests.SetEntityID(ctx, requestID, e.ID); err != nil {
		return uuid.Nil, mapError(err)
	}
	return e.ID, nil
}

func (c *Committer) rename(ctx context.Context, e entity.Entity, p changerequest.RenamePayload) error {
	taken, err := c.entities.NameTaken(ctx, p.Name, e.ID)
	if err != nil {
		return err
	}
	if taken {
		return fail(ErrNameConflict, nil, "%q", p.Name)
	}
	return c.entities.UpdateName(ctx, e.ID, p.Name)
}

func (c *Committer) moveDomicile(ctx context.Context, e entity.Entity, p changerequest.DomicileChangePayload) error {
	authorityID := p.ApprovingAuthorityID
	if authorityID == nil {
		authorityID = e.ApprovingAuthorityID
	}
	if err := checkAuthority(ctx, c.entities, authorityID, p.Domicile); err != nil {
		return err
	}
	return c.entities.UpdateDomicile(ctx, e.ID, p.Domicile, authorityID)
}

func (c *Committer) changeCapital(ctx context.Context, e entity.Entity, p changerequest.CapitalChangePayload) error {
	rows, err := p.Stakeholders.Resolve(e.WeightMode)
	if err != nil {
		return fail(ErrInvalidStructure, err, "proposed stakeholders")
	}
	if err := c.entities.UpdateCapital(ctx, e.ID, p.RegisteredCapital); err != nil {
		return err
	}
	for i := range rows {
		rows[i].ID = uuid.New()
	}
	return c.entities.ReplaceStakeholders(ctx, e.ID, rows)
}

func (c *Committer) replaceOfficers(ctx context.Context, e entity.Entity, roles []entity.OfficerRole, proposed entity.Roster) error {
	if err := validateRoster(e.Officers, roles, proposed); err != nil {
		return err
	}
	return c.entities.ReplaceOfficers(ctx, e.ID, roles, proposed)
}

func (c *Committer) transfer(ctx context.Context, e entity.Entity, p changerequest.EquityTransferPayload) error {
	snap, err := c.entities.Snapshot(ctx, e.ID)
	if err != nil {
		return err
	}
	from, ok := snap.Find(p.Transferor)
	if !ok {
		return fail(ErrInsufficientHolding, nil, "transferor %s holds nothing", p.Transferor)
	}
	weight, err := transferredWeight(snap, from, p)
	if err != nil {
		return err
	}
	capital, left, err := debit(from, p.Capital, weight)
	if err != nil {
		return err
	}
	to, ok := snap.Find(p.Transferee)
	if !ok {
		to = entity.Stakeholder{ID: uuid.New(), Holder: p.Transferee, Capital: decimal.Zero}
	}
	to.Capital = to.Capital.Add(p.Capital)
	to.Weight += weight
	from.Capital = capital
	from.Weight = left
	if snap.Mode != entity.WeightModeCustom {
		total := snap.TotalCapital()
		from.Weight = capitalShare(from.Capital, total)
		to.Weight = capitalShare(to.Capital, total)
	}

	if capital.IsZero() && (snap.Mode != entity.WeightModeCustom || left <= entity.WeightTolerance) {
		if err := c.entities.DeleteStakeholder(ctx, e.ID, from.ID); err != nil {
			return err
		}
	} else if _, err := c.entities.UpsertStakeholder(ctx, e.ID, from); err != nil {
		return err
	}
	_, err = c.entities.UpsertStakeholder(ctx, e.ID, to)
	return err
}

// transferredWeight is the voting weight p moves away from the transferor.
// Proportional entities derive it from the capital share and refuse a stated
// weight that disagrees with it.
func transferredWeight(snap entity.Snapshot, from entity.Stakeholder, p changerequest.EquityTransferPayload) (float64, error) {
	if from.Capital.LessThan(p.Capital) {
		return 0, fail(ErrInsufficientHolding, nil,
			"%s holds capital %s, transfer needs %s", from.Holder, from.Capital, p.Capital)
	}
	if snap.Mode == entity.WeightModeCustom {
		return p.Weight, nil
	}
	total := snap.TotalCapital()
	if !p.Capital.IsPositive() || !total.IsPositive() {
		return 0, fail(ErrInvalidStructure, nil, "proportional transfer needs a positive capital amount")
	}
	derived := capitalShare(p.Capital, total)
	if p.Weight != 0 && math.Abs(p.Weight-derived) > entity.WeightTolerance {
		return 0, fail(ErrInvalidStructure, nil,
			"weight %.6f does not match capital share %.6f", p.Weight, derived)
	}
	return derived, nil
}

func capitalShare(capital, total decimal.Decimal) float64 {
	return capital.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// debit returns the holding left after moving capital and weight away from sh.
func debit(sh entity.Stakeholder, capital decimal.Decimal, weight float64) (decimal.Decimal, float64, error) {
	leftCapital := sh.Capital.Sub(capital)
	leftWeight := sh.Weight - weight
	if leftCapital.IsNegative() || leftWeight < -entity.WeightTolerance {
		return decimal.Zero, 0, fail(ErrInsufficientHolding, nil,
			"%s holds capital %s weight %.6f, transfer needs capital %s weight %.6f",
			sh.Holder, sh.Capital, sh.Weight, capital, weight)
	}
	return leftCapital, math.Max(leftWeight, 0), nil
}

func (c *Committer) state(ctx context.Context, entityID uuid.UUID) (*entityState, error) {
	e, err := c.entities.Get(ctx, entityID)
	if err != nil {
		return nil, mapError(err)
	}
	snap, err := c.entities.Snapshot(ctx, entityID)
	if err != nil {
		return nil, mapError(err)
	}
	return &entityState{Entity: e, Stakeholders: snap.Stakeholders}, nil
}
