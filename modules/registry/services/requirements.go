package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	"github.com/iota-uz/entity-registry/pkg/constants"
)

// RequirementGenerator derives the consent requirements of a change request
// from its payload and the current state of the target entity.
type RequirementGenerator struct {
	entities   entity.Repository
	identities entity.IdentityRepository
}

func NewRequirementGenerator(entities entity.Repository, identities entity.IdentityRepository) *RequirementGenerator {
	return &RequirementGenerator{entities: entities, identities: identities}
}

// Generate returns the deduplicated PENDING requirement set of request
// requestID. entityID is uuid.Nil for FORMATION.
func (g *RequirementGenerator) Generate(ctx context.Context, requestID, entityID uuid.UUID, p changerequest.Payload) ([]consent.Requirement, error) {
	if p == nil {
		return nil, fail(ErrInvalidStructure, nil, "payload is required")
	}
	if err := p.Validate(); err != nil {
		return nil, fail(ErrInvalidStructure, err, "%s payload: %s", p.Kind(), constants.ValidationMessage(err))
	}

	var (
		reqs []consent.Requirement
		err  error
	)
	switch v := p.(type) {
	case changerequest.FormationPayload:
		reqs, err = g.formation(ctx, v)
	case changerequest.RenamePayload, changerequest.BusinessScopeChangePayload, changerequest.DeregistrationPayload:
		reqs, err = g.currentStakeholders(ctx, entityID)
	case changerequest.DomicileChangePayload:
		reqs, err = g.domicile(ctx, entityID, v)
	case changerequest.CapitalChangePayload:
		reqs, err = g.capital(ctx, entityID, v)
	case changerequest.OfficerChangePayload:
		reqs, err = g.officers(ctx, entityID, v)
	case changerequest.ManagementChangePayload:
		reqs, err = g.management(ctx, entityID, v)
	case changerequest.EquityTransferPayload:
		reqs, err = g.equityTransfer(ctx, entityID, v)
	default:
		return nil, fail(ErrInvalidStructure, nil, "unsupported payload %T", p)
	}
	if err != nil {
		return nil, err
	}

	reqs = consent.Dedupe(reqs)
	if len(reqs) == 0 {
		return nil, fail(ErrInvalidStructure, nil, "no consent requirements could be generated")
	}
	for i := range reqs {
		reqs[i].ID = uuid.New()
		reqs[i].RequestID = requestID
		reqs[i].Status = consent.StatusPending
	}
	return reqs, nil
}

func (g *RequirementGenerator) formation(ctx context.Context, p changerequest.FormationPayload) ([]consent.Requirement, error) {
	rows, err := p.Stakeholders.Resolve(p.Mode())
	if err != nil {
		return nil, fail(ErrInvalidStructure, err, "founding stakeholders")
	}
	if err := g.checkAuthority(ctx, p.ApprovingAuthorityID, p.Domicile); err != nil {
		return nil, err
	}

	reqs := make([]consent.Requirement, 0, len(rows)+1)
	for _, sh := range rows {
		if err := g.mustExist(ctx, sh.Holder.Kind, sh.Holder.ID); err != nil {
			return nil, err
		}
		approver, role, err := g.approverFor(ctx, sh.Holder, false)
		if err != nil {
			return nil, err
		}
		ref := sh.Holder.ID
		reqs = append(reqs, consent.Requirement{ApproverID: approver, Role: role, ShareholderRef: &ref, Weight: sh.Weight})
	}

	if err := g.mustExist(ctx, entity.HolderPerson, p.LegalRepresentativeID); err != nil {
		return nil, err
	}
	reqs = append(reqs, consent.Requirement{ApproverID: p.LegalRepresentativeID, Role: consent.RoleFoundingLegalRep})

	for _, o := range p.Officers {
		if err := g.mustExist(ctx, entity.HolderPerson, o.PersonID); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

// currentStakeholders yields one stakeholder vote per current stakeholder.
func (g *RequirementGenerator) currentStakeholders(ctx context.Context, entityID uuid.UUID) ([]consent.Requirement, error) {
	snap, err := g.snapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return g.stakeholderVotes(ctx, snap)
}

func (g *RequirementGenerator) stakeholderVotes(ctx context.Context, snap entity.Snapshot) ([]consent.Requirement, error) {
	reqs := make([]consent.Requirement, 0, len(snap.Stakeholders))
	for _, sh := range snap.Stakeholders {
		approver, role, err := g.approverFor(ctx, sh.Holder, false)
		if err != nil {
			return nil, err
		}
		ref := sh.ID
		reqs = append(reqs, consent.Requirement{ApproverID: approver, Role: role, ShareholderRef: &ref, Weight: sh.Weight})
	}
	return reqs, nil
}

func (g *RequirementGenerator) domicile(ctx context.Context, entityID uuid.UUID, p changerequest.DomicileChangePayload) ([]consent.Requirement, error) {
	e, err := g.entities.Get(ctx, entityID)
	if err != nil {
		return nil, mapError(err)
	}
	authorityID := p.ApprovingAuthorityID
	if authorityID == nil {
		authorityID = e.ApprovingAuthorityID
	}
	if err := g.checkAuthority(ctx, authorityID, p.Domicile); err != nil {
		return nil, err
	}
	return g.currentStakeholders(ctx, entityID)
}

func (g *RequirementGenerator) capital(ctx context.Context, entityID uuid.UUID, p changerequest.CapitalChangePayload) ([]consent.Requirement, error) {
	snap, err := g.snapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if _, err := p.Stakeholders.Resolve(snap.Mode); err != nil {
		return nil, fail(ErrInvalidStructure, err, "proposed stakeholders")
	}
	reqs, err := g.stakeholderVotes(ctx, snap)
	if err != nil {
		return nil, err
	}
	for _, h := range p.Stakeholders.Holders() {
		if _, ok := snap.Find(h); ok {
			continue
		}
		if err := g.mustExist(ctx, h.Kind, h.ID); err != nil {
			return nil, err
		}
		approver, role, err := g.approverFor(ctx, h, true)
		if err != nil {
			return nil, err
		}
		ref := h.ID
		reqs = append(reqs, consent.Requirement{ApproverID: approver, Role: role, ShareholderRef: &ref})
	}
	return reqs, nil
}

func (g *RequirementGenerator) officers(ctx context.Context, entityID uuid.UUID, p changerequest.OfficerChangePayload) ([]consent.Requirement, error) {
	e, err := g.entities.Get(ctx, entityID)
	if err != nil {
		return nil, mapError(err)
	}
	proposed := p.Roster()
	if err := validateRoster(e.Officers, entity.BoardRoles, proposed); err != nil {
		return nil, err
	}
	reqs, err := g.currentStakeholders(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for _, o := range proposed {
		if err := g.mustExist(ctx, entity.HolderPerson, o.PersonID); err != nil {
			return nil, err
		}
		if e.Officers.Has(o.Role, o.PersonID) {
			continue
		}
		role := consent.RoleNewDirector
		if o.Role == entity.OfficerSupervisor {
			role = consent.RoleNewSupervisor
		}
		reqs = append(reqs, consent.Requirement{ApproverID: o.PersonID, Role: role})
	}
	return reqs, nil
}

func (g *RequirementGenerator) management(ctx context.Context, entityID uuid.UUID, p changerequest.ManagementChangePayload) ([]consent.Requirement, error) {
	e, err := g.entities.Get(ctx, entityID)
	if err != nil {
		return nil, mapError(err)
	}
	proposed := p.Roster()
	if err := validateRoster(e.Officers, entity.ManagementRoles, proposed); err != nil {
		return nil, err
	}

	var reqs []consent.Requirement
	for _, id := range e.Officers.Holders(entity.OfficerDirector) {
		reqs = append(reqs, consent.Requirement{ApproverID: id, Role: consent.RoleDirector})
	}
	for _, o := range proposed {
		if err := g.mustExist(ctx, entity.HolderPerson, o.PersonID); err != nil {
			return nil, err
		}
		if e.Officers.Holder(o.Role) == o.PersonID {
			continue
		}
		reqs = append(reqs, consent.Requirement{ApproverID: o.PersonID, Role: consent.RoleNewOfficerRole})
	}
	return reqs, nil
}

func (g *RequirementGenerator) equityTransfer(ctx context.Context, entityID uuid.UUID, p changerequest.EquityTransferPayload) ([]consent.Requirement, error) {
	snap, err := g.snapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}
	from, ok := snap.Find(p.Transferor)
	if !ok {
		return nil, fail(ErrInvalidStructure, nil, "transferor %s is not a stakeholder", p.Transferor)
	}
	weight, err := transferredWeight(snap, from, p)
	if err != nil {
		return nil, err
	}
	if _, _, err := debit(from, p.Capital, weight); err != nil {
		return nil, err
	}
	if err := g.mustExist(ctx, p.Transferee.Kind, p.Transferee.ID); err != nil {
		return nil, err
	}
	approver, _, err := g.approverFor(ctx, p.Transferee, false)
	if err != nil {
		return nil, err
	}
	ref := p.Transferee.ID
	return []consent.Requirement{{ApproverID: approver, Role: consent.RoleTransferee, ShareholderRef: &ref}}, nil
}

// approverFor resolves who answers for holder h: a person answers for
// themselves and an entity through its legal representative.
func (g *RequirementGenerator) approverFor(ctx context.Context, h entity.Holder, newcomer bool) (uuid.UUID, consent.Role, error) {
	switch h.Kind {
	case entity.HolderPerson:
		if newcomer {
			return h.ID, consent.RoleNewShareholderUser, nil
		}
		return h.ID, consent.RoleShareholderUser, nil
	case entity.HolderEntity:
		rep, err := g.entities.LegalRepresentative(ctx, h.ID)
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return uuid.Nil, "", fail(ErrInvalidStructure, err, "stakeholder entity %s does not exist", h.ID)
			}
			return uuid.Nil, "", mapError(err)
		}
		if rep == uuid.Nil {
			return uuid.Nil, "", fail(ErrMissingRepresentative, nil, "entity %s", h.ID)
		}
		if newcomer {
			return rep, consent.RoleNewShareholderEntityLegalRep, nil
		}
		return rep, consent.RoleShareholderEntityLegalRep, nil
	}
	return uuid.Nil, "", fail(ErrInvalidStructure, nil, "unknown holder kind %q", h.Kind)
}

func (g *RequirementGenerator) mustExist(ctx context.Context, kind entity.HolderKind, id uuid.UUID) error {
	ok, err := g.identities.Exists(ctx, kind, id)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return fail(ErrInvalidStructure, nil, "%s %s does not exist", kind, id)
	}
	return nil
}

func (g *RequirementGenerator) snapshot(ctx context.Context, entityID uuid.UUID) (entity.Snapshot, error) {
	snap, err := g.entities.Snapshot(ctx, entityID)
	if err != nil {
		return entity.Snapshot{}, mapError(err)
	}
	return snap, nil
}

func (g *RequirementGenerator) checkAuthority(ctx context.Context, authorityID *uuid.UUID, d entity.Domicile) error {
	return checkAuthority(ctx, g.entities, authorityID, d)
}

func checkAuthority(ctx context.Context, entities entity.Repository, authorityID *uuid.UUID, d entity.Domicile) error {
	if authorityID == nil {
		return nil
	}
	a, err := entities.GetAuthority(ctx, *authorityID)
	if err != nil {
		return mapError(err)
	}
	if !a.Covers(d) {
		return fail(ErrInvalidStructure, nil, "authority %s (%s) does not cover region %s", a.Name, a.RegionCode, d.RegionCode)
	}
	return nil
}

// validateRoster checks role exclusivity of the roster that results from
// replacing roles of current with proposed.
func validateRoster(current entity.Roster, roles []entity.OfficerRole, proposed entity.Roster) error {
	merged := append(current.Without(roles...), proposed...)
	if err := changerequest.ValidateRoster(merged); err != nil {
		return fail(ErrInvalidStructure, err, "officer roles")
	}
	return nil
}
