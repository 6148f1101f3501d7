package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrAuthorityNotFound = errors.New("approving authority not found")
	// ErrNameTaken is returned when a write would duplicate an entity name.
	ErrNameTaken = errors.New("entity name already taken")
)

type Status string

const (
	StatusActive Status = "ACTIVE"
)

// WeightMode fixes how stakeholder voting weights are derived for an entity.
type WeightMode string

const (
	// WeightModeProportional derives the voting weight from the capital share.
	WeightModeProportional WeightMode = "PROPORTIONAL"
	// WeightModeCustom uses independently supplied weights.
	WeightModeCustom WeightMode = "CUSTOM"
)

func (m WeightMode) Valid() bool {
	return m == WeightModeProportional || m == WeightModeCustom
}

type OfficerRole string

const (
	OfficerDirector         OfficerRole = "DIRECTOR"
	OfficerSupervisor       OfficerRole = "SUPERVISOR"
	OfficerManager          OfficerRole = "MANAGER"
	OfficerDeputyManager    OfficerRole = "DEPUTY_MANAGER"
	OfficerFinancialOfficer OfficerRole = "FINANCIAL_OFFICER"
)

// BoardRoles are replaced together by an officer change.
var BoardRoles = []OfficerRole{OfficerDirector, OfficerSupervisor}

// ManagementRoles are replaced together by a management change.
var ManagementRoles = []OfficerRole{OfficerManager, OfficerDeputyManager, OfficerFinancialOfficer}

type Officer struct {
	Role     OfficerRole `json:"role"`
	PersonID uuid.UUID   `json:"person_id"`
}

// Roster is the officer list of an entity.
type Roster []Officer

func (r Roster) Holders(role OfficerRole) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r))
	for _, o := range r {
		if o.Role == role {
			out = append(out, o.PersonID)
		}
	}
	return out
}

// Holder returns the single holder of role, or uuid.Nil.
func (r Roster) Holder(role OfficerRole) uuid.UUID {
	for _, o := range r {
		if o.Role == role {
			return o.PersonID
		}
	}
	return uuid.Nil
}

func (r Roster) Has(role OfficerRole, personID uuid.UUID) bool {
	for _, o := range r {
		if o.Role == role && o.PersonID == personID {
			return true
		}
	}
	return false
}

// Without returns the roster minus every officer holding one of roles.
func (r Roster) Without(roles ...OfficerRole) Roster {
	out := make(Roster, 0, len(r))
	for _, o := range r {
		drop := false
		for _, role := range roles {
			if o.Role == role {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, o)
		}
	}
	return out
}

type Domicile struct {
	RegionCode string `json:"region_code"`
	Address    string `json:"address"`
}

// Authority is an administrative body that approves registrations for a region.
type Authority struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	RegionCode string    `json:"region_code"`
}

// Covers reports whether the authority's region contains the domicile region.
// Region codes are hierarchical, so a parent code is a prefix of its children.
func (a Authority) Covers(d Domicile) bool {
	code := strings.TrimSpace(a.RegionCode)
	if code == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(d.RegionCode), code)
}

type Entity struct {
	ID                    uuid.UUID       `json:"id"`
	Name                  string          `json:"name"`
	RegisteredCapital     decimal.Decimal `json:"registered_capital"`
	Domicile              Domicile        `json:"domicile"`
	ApprovingAuthorityID  *uuid.UUID      `json:"approving_authority_id,omitempty"`
	BusinessScope         string          `json:"business_scope"`
	LegalRepresentativeID *uuid.UUID      `json:"legal_representative_id,omitempty"`
	WeightMode            WeightMode      `json:"weight_mode"`
	Status                Status          `json:"status"`
	Officers              Roster          `json:"officers"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// NormalizeName is the form used for case-insensitive name uniqueness.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
