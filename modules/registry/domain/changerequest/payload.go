package changerequest

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	"github.com/iota-uz/entity-registry/pkg/constants"
)

// Payload is the proposed data of a change request. The set of implementations
// is closed: one struct per Kind.
type Payload interface {
	Kind() Kind
	// Validate checks the payload on its own, without looking at stored state.
	Validate() error
	isPayload()
}

type ProposedStakeholder struct {
	Holder  entity.Holder   `json:"holder" validate:"required"`
	Capital decimal.Decimal `json:"capital"`
	Weight  float64         `json:"weight" validate:"gte=0,lte=100"`
}

type ProposedStakeholders []ProposedStakeholder

// Resolve turns the proposal into stakeholder rows, deriving weights for mode
// and checking that they total 100.
func (ps ProposedStakeholders) Resolve(mode entity.WeightMode) ([]entity.Stakeholder, error) {
	rows := make([]entity.Stakeholder, 0, len(ps))
	for _, p := range ps {
		if p.Capital.IsNegative() {
			return nil, fmt.Errorf("stakeholder %s capital is negative", p.Holder)
		}
		rows = append(rows, entity.Stakeholder{Holder: p.Holder, Capital: p.Capital, Weight: p.Weight})
	}
	rows, err := entity.ApplyWeightMode(mode, rows)
	if err != nil {
		return nil, err
	}
	if err := entity.ValidateWeights(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (ps ProposedStakeholders) Holders() []entity.Holder {
	out := make([]entity.Holder, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Holder)
	}
	return out
}

type FormationPayload struct {
	Name                  string               `json:"name" validate:"required,max=255"`
	RegisteredCapital     decimal.Decimal      `json:"registered_capital"`
	Domicile              entity.Domicile      `json:"domicile"`
	ApprovingAuthorityID  *uuid.UUID           `json:"approving_authority_id,omitempty"`
	BusinessScope         string               `json:"business_scope" validate:"max=4000"`
	LegalRepresentativeID uuid.UUID            `json:"legal_representative_id" validate:"required"`
	WeightMode            entity.WeightMode    `json:"weight_mode" validate:"omitempty,oneof=PROPORTIONAL CUSTOM"`
	Stakeholders          ProposedStakeholders `json:"stakeholders" validate:"required,min=1,dive"`
	Officers              entity.Roster        `json:"officers,omitempty"`
}

func (FormationPayload) Kind() Kind { return KindFormation }
func (FormationPayload) isPayload() {}

func (p FormationPayload) Validate() error {
	if err := constants.Validate.Struct(p); err != nil {
		return err
	}
	if !p.RegisteredCapital.IsPositive() {
		return fmt.Errorf("registered capital must be positive")
	}
	if p.Domicile.RegionCode == "" {
		return fmt.Errorf("domicile region code is required")
	}
	for _, o := range p.Officers {
		if o.PersonID == uuid.Nil {
			return fmt.Errorf("officer %s has no person", o.Role)
		}
	}
	return ValidateRoster(p.Officers)
}

// Mode defaults to proportional weights.
func (p FormationPayload) Mode() entity.WeightMode {
	if p.WeightMode == "" {
		return entity.WeightModeProportional
	}
	return p.WeightMode
}

type RenamePayload struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (RenamePayload) Kind() Kind { return KindRename }
func (RenamePayload) isPayload() {}

func (p RenamePayload) Validate() error {
	return constants.Validate.Struct(p)
}

type DomicileChangePayload struct {
	Domicile             entity.Domicile `json:"domicile"`
	ApprovingAuthorityID *uuid.UUID      `json:"approving_authority_id,omitempty"`
}

func (DomicileChangePayload) Kind() Kind { return KindDomicileChange }
func (DomicileChangePayload) isPayload() {}

func (p DomicileChangePayload) Validate() error {
	if p.Domicile.RegionCode == "" {
		return fmt.Errorf("domicile region code is required")
	}
	if p.Domicile.Address == "" {
		return fmt.Errorf("domicile address is required")
	}
	return nil
}

type BusinessScopeChangePayload struct {
	BusinessScope string `json:"business_scope" validate:"required,max=4000"`
}

func (BusinessScopeChangePayload) Kind() Kind { return KindBusinessScopeChange }
func (BusinessScopeChangePayload) isPayload() {}

func (p BusinessScopeChangePayload) Validate() error {
	return constants.Validate.Struct(p)
}

type CapitalChangePayload struct {
	RegisteredCapital decimal.Decimal      `json:"registered_capital"`
	Stakeholders      ProposedStakeholders `json:"stakeholders" validate:"required,min=1,dive"`
}

func (CapitalChangePayload) Kind() Kind { return KindCapitalChange }
func (CapitalChangePayload) isPayload() {}

func (p CapitalChangePayload) Validate() error {
	if err := constants.Validate.Struct(p); err != nil {
		return err
	}
	if !p.RegisteredCapital.IsPositive() {
		return fmt.Errorf("registered capital must be positive")
	}
	return nil
}

// OfficerChangePayload lists the complete proposed board.
type OfficerChangePayload struct {
	Directors   []uuid.UUID `json:"directors" validate:"dive,required"`
	Supervisors []uuid.UUID `json:"supervisors" validate:"dive,required"`
}

func (OfficerChangePayload) Kind() Kind { return KindOfficerChange }
func (OfficerChangePayload) isPayload() {}

func (p OfficerChangePayload) Validate() error {
	if err := constants.Validate.Struct(p); err != nil {
		return err
	}
	if len(p.Directors) == 0 {
		return fmt.Errorf("at least one director is required")
	}
	return ValidateRoster(p.Roster())
}

func (p OfficerChangePayload) Roster() entity.Roster {
	out := make(entity.Roster, 0, len(p.Directors)+len(p.Supervisors))
	for _, id := range p.Directors {
		out = append(out, entity.Officer{Role: entity.OfficerDirector, PersonID: id})
	}
	for _, id := range p.Supervisors {
		out = append(out, entity.Officer{Role: entity.OfficerSupervisor, PersonID: id})
	}
	return out
}

// ManagementChangePayload names the proposed holder of each management role;
// a nil holder leaves the role vacant after commit.
type ManagementChangePayload struct {
	ManagerID          *uuid.UUID `json:"manager_id,omitempty"`
	DeputyManagerID    *uuid.UUID `json:"deputy_manager_id,omitempty"`
	FinancialOfficerID *uuid.UUID `json:"financial_officer_id,omitempty"`
}

func (ManagementChangePayload) Kind() Kind { return KindManagementChange }
func (ManagementChangePayload) isPayload() {}

func (p ManagementChangePayload) Validate() error {
	roster := p.Roster()
	if len(roster) == 0 {
		return fmt.Errorf("at least one management role must be assigned")
	}
	for _, o := range roster {
		if o.PersonID == uuid.Nil {
			return fmt.Errorf("%s holder is empty", o.Role)
		}
	}
	return ValidateRoster(roster)
}

func (p ManagementChangePayload) Roster() entity.Roster {
	out := make(entity.Roster, 0, 3)
	if p.ManagerID != nil {
		out = append(out, entity.Officer{Role: entity.OfficerManager, PersonID: *p.ManagerID})
	}
	if p.DeputyManagerID != nil {
		out = append(out, entity.Officer{Role: entity.OfficerDeputyManager, PersonID: *p.DeputyManagerID})
	}
	if p.FinancialOfficerID != nil {
		out = append(out, entity.Officer{Role: entity.OfficerFinancialOfficer, PersonID: *p.FinancialOfficerID})
	}
	return out
}

// EquityTransferPayload moves a (capital, weight) pair between two holders.
type EquityTransferPayload struct {
	Transferor entity.Holder   `json:"transferor" validate:"required"`
	Transferee entity.Holder   `json:"transferee" validate:"required"`
	Capital    decimal.Decimal `json:"capital"`
	Weight     float64         `json:"weight" validate:"gte=0,lte=100"`
}

func (EquityTransferPayload) Kind() Kind { return KindEquityTransfer }
func (EquityTransferPayload) isPayload() {}

func (p EquityTransferPayload) Validate() error {
	if err := constants.Validate.Struct(p); err != nil {
		return err
	}
	if p.Transferor == p.Transferee {
		return fmt.Errorf("transferor and transferee must differ")
	}
	if p.Capital.IsNegative() {
		return fmt.Errorf("transferred capital is negative")
	}
	if !p.Capital.IsPositive() && p.Weight <= 0 {
		return fmt.Errorf("nothing to transfer")
	}
	return nil
}

type DeregistrationPayload struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (DeregistrationPayload) Kind() Kind { return KindDeregistration }
func (DeregistrationPayload) isPayload() {}

func (p DeregistrationPayload) Validate() error {
	return constants.Validate.Struct(p)
}

// ValidateRoster enforces officer role exclusivity: nobody holds a role twice
// and a supervisor holds no other officer role.
func ValidateRoster(r entity.Roster) error {
	type key struct {
		role entity.OfficerRole
		id   uuid.UUID
	}
	seen := make(map[key]struct{}, len(r))
	for _, o := range r {
		k := key{o.Role, o.PersonID}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("person %s listed twice as %s", o.PersonID, o.Role)
		}
		seen[k] = struct{}{}
	}
	for _, o := range r {
		if o.Role != entity.OfficerSupervisor {
			continue
		}
		for _, other := range r {
			if other.PersonID == o.PersonID && other.Role != entity.OfficerSupervisor {
				return fmt.Errorf("supervisor %s may not also be %s", o.PersonID, other.Role)
			}
		}
	}
	return nil
}

func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	return json.Marshal(p)
}

// DecodePayload parses raw into the payload struct of kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindFormation:
		var v FormationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindRename:
		var v RenamePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindDomicileChange:
		var v DomicileChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindBusinessScopeChange:
		var v BusinessScopeChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindCapitalChange:
		var v CapitalChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindOfficerChange:
		var v OfficerChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindManagementChange:
		var v ManagementChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindEquityTransfer:
		var v EquityTransferPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindDeregistration:
		var v DeregistrationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown change kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

func (cr ChangeRequest) MarshalJSON() ([]byte, error) {
	type plain ChangeRequest
	var raw json.RawMessage
	if cr.Payload != nil {
		b, err := EncodePayload(cr.Payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(struct {
		plain
		Payload json.RawMessage `json:"payload,omitempty"`
	}{plain: plain(cr), Payload: raw})
}
