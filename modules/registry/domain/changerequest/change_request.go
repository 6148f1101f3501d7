package changerequest

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("change request not found")

type Kind string

const (
	KindFormation           Kind = "FORMATION"
	KindRename              Kind = "RENAME"
	KindDomicileChange      Kind = "DOMICILE_CHANGE"
	KindBusinessScopeChange Kind = "BUSINESS_SCOPE_CHANGE"
	KindCapitalChange       Kind = "CAPITAL_CHANGE"
	KindOfficerChange       Kind = "OFFICER_CHANGE"
	KindManagementChange    Kind = "MANAGEMENT_CHANGE"
	KindEquityTransfer      Kind = "EQUITY_TRANSFER"
	KindDeregistration      Kind = "DEREGISTRATION"
)

func Kinds() []Kind {
	return []Kind{
		KindFormation,
		KindRename,
		KindDomicileChange,
		KindBusinessScopeChange,
		KindCapitalChange,
		KindOfficerChange,
		KindManagementChange,
		KindEquityTransfer,
		KindDeregistration,
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindFormation, KindRename, KindDomicileChange, KindBusinessScopeChange, KindCapitalChange,
		KindOfficerChange, KindManagementChange, KindEquityTransfer, KindDeregistration:
		return true
	}
	return false
}

// TargetsExistingEntity is false only for FORMATION, whose entity is created on commit.
func (k Kind) TargetsExistingEntity() bool {
	return k != KindFormation
}

type Status string

const (
	StatusSubmitted    Status = "SUBMITTED"
	StatusUnderReview  Status = "UNDER_REVIEW"
	StatusNeedsChanges Status = "NEEDS_CHANGES"
	StatusApproved     Status = "APPROVED"
	StatusRejected     Status = "REJECTED"
	StatusArchived     Status = "ARCHIVED"
)

type Verdict string

const (
	VerdictPending  Verdict = "PENDING"
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
)

type ChangeRequest struct {
	ID                 uuid.UUID  `json:"id"`
	EntityID           *uuid.UUID `json:"entity_id,omitempty"`
	Kind               Kind       `json:"kind"`
	Payload            Payload    `json:"-"`
	Status             Status     `json:"status"`
	Verdict            Verdict    `json:"verdict"`
	WorkflowInstanceID uuid.UUID  `json:"workflow_instance_id"`
	WorkflowState      string     `json:"workflow_state"`
	InitiatorID        uuid.UUID  `json:"initiator_id"`
	CommittedAt        *time.Time `json:"committed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (cr ChangeRequest) IsArchived() bool {
	return cr.Status == StatusArchived
}

func (cr ChangeRequest) IsCommitted() bool {
	return cr.CommittedAt != nil
}

// EntityRef returns the target entity id or uuid.Nil before FORMATION commits.
func (cr ChangeRequest) EntityRef() uuid.UUID {
	if cr.EntityID == nil {
		return uuid.Nil
	}
	return *cr.EntityID
}
