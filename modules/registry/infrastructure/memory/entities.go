package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
)

type EntityRepository struct {
	s *Store
}

var _ entity.Repository = (*EntityRepository)(nil)

func (r *EntityRepository) Get(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("entities.Get"); err != nil {
		return entity.Entity{}, err
	}
	e, ok := r.s.data.entities[id]
	if !ok {
		return entity.Entity{}, entity.ErrNotFound
	}
	e.Officers = append(entity.Roster(nil), e.Officers...)
	return e, nil
}

// GetForUpdate is Get: the store lock already serializes transactions.
func (r *EntityRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	return r.Get(ctx, id)
}

func (r *EntityRepository) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("entities.Create"); err != nil {
		return entity.Entity{}, err
	}
	if r.nameTakenLocked(e.Name, uuid.Nil) {
		return entity.Entity{}, entity.ErrNameTaken
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = entity.StatusActive
	}
	e.Officers = append(entity.Roster(nil), e.Officers...)
	r.s.data.entities[e.ID] = e
	r.s.data.identities[entity.Holder{Kind: entity.HolderEntity, ID: e.ID}] = struct{}{}
	return e, nil
}

func (r *EntityRepository) NameTaken(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.nameTakenLocked(name, excludeID), nil
}

func (r *EntityRepository) nameTakenLocked(name string, excludeID uuid.UUID) bool {
	want := entity.NormalizeName(name)
	for id, e := range r.s.data.entities {
		if id != excludeID && entity.NormalizeName(e.Name) == want {
			return true
		}
	}
	return false
}

func (r *EntityRepository) update(op string, id uuid.UUID, fn func(*entity.Entity) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(op); err != nil {
		return err
	}
	e, ok := r.s.data.entities[id]
	if !ok {
		return entity.ErrNotFound
	}
	if err := fn(&e); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()
	r.s.data.entities[id] = e
	return nil
}

func (r *EntityRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return r.update("entities.UpdateName", id, func(e *entity.Entity) error {
		if r.nameTakenLocked(name, id) {
			return entity.ErrNameTaken
		}
		e.Name = name
		return nil
	})
}

func (r *EntityRepository) UpdateCapital(ctx context.Context, id uuid.UUID, capital decimal.Decimal) error {
	return r.update("entities.UpdateCapital", id, func(e *entity.Entity) error {
		e.RegisteredCapital = capital
		return nil
	})
}

func (r *EntityRepository) UpdateDomicile(ctx context.Context, id uuid.UUID, domicile entity.Domicile, authorityID *uuid.UUID) error {
	return r.update("entities.UpdateDomicile", id, func(e *entity.Entity) error {
		e.Domicile = domicile
		e.ApprovingAuthorityID = authorityID
		return nil
	})
}

func (r *EntityRepository) UpdateBusinessScope(ctx context.Context, id uuid.UUID, scope string) error {
	return r.update("entities.UpdateBusinessScope", id, func(e *entity.Entity) error {
		e.BusinessScope = scope
		return nil
	})
}

func (r *EntityRepository) ReplaceOfficers(ctx context.Context, entityID uuid.UUID, roles []entity.OfficerRole, officers []entity.Officer) error {
	return r.update("entities.ReplaceOfficers", entityID, func(e *entity.Entity) error {
		e.Officers = append(e.Officers.Without(roles...), officers...)
		return nil
	})
}

func (r *EntityRepository) Snapshot(ctx context.Context, entityID uuid.UUID) (entity.Snapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("entities.Snapshot"); err != nil {
		return entity.Snapshot{}, err
	}
	e, ok := r.s.data.entities[entityID]
	if !ok {
		return entity.Snapshot{}, entity.ErrNotFound
	}
	return entity.Snapshot{
		EntityID:     entityID,
		Mode:         e.WeightMode,
		Stakeholders: append([]entity.Stakeholder(nil), r.s.data.stakeholders[entityID]...),
	}, nil
}

func (r *EntityRepository) ReplaceStakeholders(ctx context.Context, entityID uuid.UUID, stakeholders []entity.Stakeholder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("entities.ReplaceStakeholders"); err != nil {
		return err
	}
	if _, ok := r.s.data.entities[entityID]; !ok {
		return entity.ErrNotFound
	}
	rows := make([]entity.Stakeholder, 0, len(stakeholders))
	for _, sh := range stakeholders {
		if sh.ID == uuid.Nil {
			sh.ID = uuid.New()
		}
		rows = append(rows, sh)
	}
	r.s.data.stakeholders[entityID] = rows
	return nil
}

func (r *EntityRepository) UpsertStakeholder(ctx context.Context, entityID uuid.UUID, sh entity.Stakeholder) (entity.Stakeholder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("entities.UpsertStakeholder"); err != nil {
		return entity.Stakeholder{}, err
	}
	if _, ok := r.s.data.entities[entityID]; !ok {
		return entity.Stakeholder{}, entity.ErrNotFound
	}
	rows := append([]entity.Stakeholder(nil), r.s.data.stakeholders[entityID]...)
	for i, existing := range rows {
		if existing.Holder == sh.Holder {
			sh.ID = existing.ID
			rows[i] = sh
			r.s.data.stakeholders[entityID] = rows
			return sh, nil
		}
	}
	if sh.ID == uuid.Nil {
		sh.ID = uuid.New()
	}
	r.s.data.stakeholders[entityID] = append(rows, sh)
	return sh, nil
}

func (r *EntityRepository) DeleteStakeholder(ctx context.Context, entityID uuid.UUID, stakeholderID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("entities.DeleteStakeholder"); err != nil {
		return err
	}
	rows := r.s.data.stakeholders[entityID]
	out := make([]entity.Stakeholder, 0, len(rows))
	for _, sh := range rows {
		if sh.ID != stakeholderID {
			out = append(out, sh)
		}
	}
	r.s.data.stakeholders[entityID] = out
	return nil
}

func (r *EntityRepository) LegalRepresentative(ctx context.Context, entityID uuid.UUID) (uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.data.entities[entityID]
	if !ok {
		return uuid.Nil, entity.ErrNotFound
	}
	if e.LegalRepresentativeID == nil {
		return uuid.Nil, nil
	}
	return *e.LegalRepresentativeID, nil
}

func (r *EntityRepository) GetAuthority(ctx context.Context, id uuid.UUID) (entity.Authority, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.data.authorities[id]
	if !ok {
		return entity.Authority{}, entity.ErrAuthorityNotFound
	}
	return a, nil
}

// PutEntity seeds an entity with its stakeholders, bypassing name checks.
func (r *EntityRepository) PutEntity(e entity.Entity, stakeholders ...entity.Stakeholder) entity.Entity {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = entity.StatusActive
	}
	if e.WeightMode == "" {
		e.WeightMode = entity.WeightModeProportional
	}
	rows := make([]entity.Stakeholder, 0, len(stakeholders))
	for _, sh := range stakeholders {
		if sh.ID == uuid.Nil {
			sh.ID = uuid.New()
		}
		rows = append(rows, sh)
	}
	r.s.data.entities[e.ID] = e
	r.s.data.stakeholders[e.ID] = rows
	r.s.data.identities[entity.Holder{Kind: entity.HolderEntity, ID: e.ID}] = struct{}{}
	return e
}

func (r *EntityRepository) PutAuthority(a entity.Authority) entity.Authority {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.data.authorities[a.ID] = a
	return a
}

type IdentityRepository struct {
	s *Store
}

var _ entity.IdentityRepository = (*IdentityRepository)(nil)

func (r *IdentityRepository) Exists(ctx context.Context, kind entity.HolderKind, id uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault("identities.Exists"); err != nil {
		return false, err
	}
	_, ok := r.s.data.identities[entity.Holder{Kind: kind, ID: id}]
	return ok, nil
}

// PutPerson registers person ids in the identity store.
func (r *IdentityRepository) PutPerson(ids ...uuid.UUID) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		r.s.data.identities[entity.Holder{Kind: entity.HolderPerson, ID: id}] = struct{}{}
	}
}
