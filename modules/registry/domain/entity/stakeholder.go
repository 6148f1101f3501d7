package entity

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WeightTolerance is the allowed deviation of a weight sum from 100.
const WeightTolerance = 1e-6

type HolderKind string

const (
	HolderPerson HolderKind = "PERSON"
	HolderEntity HolderKind = "ENTITY"
)

func (k HolderKind) Valid() bool {
	return k == HolderPerson || k == HolderEntity
}

// Holder identifies who holds a stake.
type Holder struct {
	Kind HolderKind `json:"kind" validate:"required,oneof=PERSON ENTITY"`
	ID   uuid.UUID  `json:"id" validate:"required"`
}

func (h Holder) String() string { return fmt.Sprintf("%s:%s", h.Kind, h.ID) }

type Stakeholder struct {
	ID      uuid.UUID       `json:"id"`
	Holder  Holder          `json:"holder"`
	Capital decimal.Decimal `json:"capital"`
	Weight  float64         `json:"weight"`
}

// Snapshot is a read-only view of an entity's weighted stakeholders.
type Snapshot struct {
	EntityID     uuid.UUID     `json:"entity_id"`
	Mode         WeightMode    `json:"mode"`
	Stakeholders []Stakeholder `json:"stakeholders"`
}

func (s Snapshot) TotalWeight() float64 {
	total := 0.0
	for _, sh := range s.Stakeholders {
		total += sh.Weight
	}
	return total
}

func (s Snapshot) TotalCapital() decimal.Decimal {
	total := decimal.Zero
	for _, sh := range s.Stakeholders {
		total = total.Add(sh.Capital)
	}
	return total
}

func (s Snapshot) Find(h Holder) (Stakeholder, bool) {
	for _, sh := range s.Stakeholders {
		if sh.Holder == h {
			return sh, true
		}
	}
	return Stakeholder{}, false
}

// ValidateWeights checks the 0..100 range of every weight and the 100 total.
func ValidateWeights(stakeholders []Stakeholder) error {
	if len(stakeholders) == 0 {
		return fmt.Errorf("at least one stakeholder is required")
	}
	seen := make(map[Holder]struct{}, len(stakeholders))
	total := 0.0
	for _, sh := range stakeholders {
		if !sh.Holder.Kind.Valid() || sh.Holder.ID == uuid.Nil {
			return fmt.Errorf("stakeholder holder is invalid")
		}
		if _, dup := seen[sh.Holder]; dup {
			return fmt.Errorf("stakeholder %s listed twice", sh.Holder)
		}
		seen[sh.Holder] = struct{}{}
		if sh.Weight < 0 || sh.Weight > 100+WeightTolerance {
			return fmt.Errorf("stakeholder %s weight %.6f out of range", sh.Holder, sh.Weight)
		}
		if sh.Capital.IsNegative() {
			return fmt.Errorf("stakeholder %s capital is negative", sh.Holder)
		}
		total += sh.Weight
	}
	if math.Abs(total-100) > WeightTolerance {
		return fmt.Errorf("stakeholder weights sum to %.6f, expected 100", total)
	}
	return nil
}

// ApplyWeightMode returns a copy of stakeholders with weights derived for mode.
// Proportional weights are the capital share; custom weights are kept as given.
func ApplyWeightMode(mode WeightMode, stakeholders []Stakeholder) ([]Stakeholder, error) {
	out := make([]Stakeholder, len(stakeholders))
	copy(out, stakeholders)
	if mode == WeightModeCustom {
		return out, nil
	}
	total := decimal.Zero
	for _, sh := range out {
		total = total.Add(sh.Capital)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("total capital must be positive for proportional weights")
	}
	hundred := decimal.NewFromInt(100)
	for i := range out {
		out[i].Weight = out[i].Capital.Div(total).Mul(hundred).InexactFloat64()
	}
	return out, nil
}
