package entity

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the authoritative store of entities and their satellite rows.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Entity, error)
	// GetForUpdate locks the entity row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (Entity, error)
	Create(ctx context.Context, e Entity) (Entity, error)
	// NameTaken reports whether another entity uses name (case-insensitive).
	NameTaken(ctx context.Context, name string, excludeID uuid.UUID) (bool, error)

	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateCapital(ctx context.Context, id uuid.UUID, capital decimal.Decimal) error
	UpdateDomicile(ctx context.Context, id uuid.UUID, domicile Domicile, authorityID *uuid.UUID) error
	UpdateBusinessScope(ctx context.Context, id uuid.UUID, scope string) error

	Snapshot(ctx context.Context, entityID uuid.UUID) (Snapshot, error)
	ReplaceStakeholders(ctx context.Context, entityID uuid.UUID, stakeholders []Stakeholder) error
	UpsertStakeholder(ctx context.Context, entityID uuid.UUID, sh Stakeholder) (Stakeholder, error)
	DeleteStakeholder(ctx context.Context, entityID uuid.UUID, stakeholderID uuid.UUID) error

	// ReplaceOfficers swaps the officers holding roles; other roles are untouched.
	ReplaceOfficers(ctx context.Context, entityID uuid.UUID, roles []OfficerRole, officers []Officer) error

	// LegalRepresentative returns uuid.Nil when the entity has none.
	LegalRepresentative(ctx context.Context, entityID uuid.UUID) (uuid.UUID, error)
	GetAuthority(ctx context.Context, id uuid.UUID) (Authority, error)
}

// IdentityRepository answers existence checks against the identity store.
type IdentityRepository interface {
	Exists(ctx context.Context, kind HolderKind, id uuid.UUID) (bool, error)
}
