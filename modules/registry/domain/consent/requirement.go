package consent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleShareholderUser              Role = "SHAREHOLDER_USER"
	RoleShareholderEntityLegalRep    Role = "SHAREHOLDER_ENTITY_LEGAL_REP"
	RoleNewShareholderUser           Role = "NEW_SHAREHOLDER_USER"
	RoleNewShareholderEntityLegalRep Role = "NEW_SHAREHOLDER_ENTITY_LEGAL_REP"
	RoleDirector                     Role = "DIRECTOR"
	RoleNewDirector                  Role = "NEW_DIRECTOR"
	RoleNewSupervisor                Role = "NEW_SUPERVISOR"
	RoleNewOfficerRole               Role = "NEW_OFFICER_ROLE"
	RoleTransferee                   Role = "TRANSFEREE"
	RoleFoundingLegalRep             Role = "FOUNDING_LEGAL_REP"
)

func Roles() []Role {
	return []Role{
		RoleShareholderUser,
		RoleShareholderEntityLegalRep,
		RoleNewShareholderUser,
		RoleNewShareholderEntityLegalRep,
		RoleDirector,
		RoleNewDirector,
		RoleNewSupervisor,
		RoleNewOfficerRole,
		RoleTransferee,
		RoleFoundingLegalRep,
	}
}

// Group is the aggregation bucket a role is counted in.
type Group string

const (
	GroupStakeholderVote Group = "STAKEHOLDER_VOTE"
	GroupNewStakeholder  Group = "NEW_STAKEHOLDER"
	GroupDirector        Group = "DIRECTOR"
	GroupNewOfficer      Group = "NEW_OFFICER"
	GroupNamed           Group = "NAMED"
)

// Groups is the fixed evaluation order.
var Groups = []Group{GroupStakeholderVote, GroupNewStakeholder, GroupDirector, GroupNewOfficer, GroupNamed}

func (r Role) Group() (Group, bool) {
	switch r {
	case RoleShareholderUser, RoleShareholderEntityLegalRep:
		return GroupStakeholderVote, true
	case RoleNewShareholderUser, RoleNewShareholderEntityLegalRep:
		return GroupNewStakeholder, true
	case RoleDirector:
		return GroupDirector, true
	case RoleNewDirector, RoleNewSupervisor, RoleNewOfficerRole:
		return GroupNewOfficer, true
	case RoleTransferee, RoleFoundingLegalRep:
		return GroupNamed, true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := r.Group()
	return ok
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

type Requirement struct {
	ID             uuid.UUID  `json:"id"`
	RequestID      uuid.UUID  `json:"request_id"`
	ApproverID     uuid.UUID  `json:"approver_id"`
	Role           Role       `json:"role"`
	ShareholderRef *uuid.UUID `json:"shareholder_ref,omitempty"`
	// Weight is the voting weight captured at generation time; zero outside
	// the stakeholder vote group.
	Weight    float64    `json:"weight"`
	Status    Status     `json:"status"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	Comment   string     `json:"comment,omitempty"`
}

// Key is the per-request uniqueness key of a requirement.
type Key struct {
	ApproverID     uuid.UUID
	Role           Role
	ShareholderRef uuid.UUID
}

func (r Requirement) Key() Key {
	k := Key{ApproverID: r.ApproverID, Role: r.Role}
	if r.ShareholderRef != nil {
		k.ShareholderRef = *r.ShareholderRef
	}
	return k
}

// Dedupe drops requirements whose key was already seen, keeping the first.
func Dedupe(reqs []Requirement) []Requirement {
	seen := make(map[Key]struct{}, len(reqs))
	out := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Repository is the consent ledger.
type Repository interface {
	// InsertRequirements ignores rows whose key already exists on the request
	// and returns how many rows were stored.
	InsertRequirements(ctx context.Context, reqs []Requirement) (int, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Requirement, error)
	// Decide moves every PENDING row of approver on the request to status and
	// returns the number of rows changed.
	Decide(ctx context.Context, requestID, approverID uuid.UUID, status Status, comment string, at time.Time) (int, error)
	// RejectPending rejects all PENDING rows of the request.
	RejectPending(ctx context.Context, requestID uuid.UUID, comment string, at time.Time) (int, error)
	DeleteByRequest(ctx context.Context, requestID uuid.UUID) error
	ListPendingByApprover(ctx context.Context, approverID uuid.UUID) ([]Requirement, error)
}
