package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	"github.com/iota-uz/entity-registry/pkg/composables"
)

const (
	entityFindQuery = `
        SELECT
            e.id,
            e.name,
            e.registered_capital,
            e.domicile_region,
            e.domicile_address,
            e.approving_authority_id,
            e.business_scope,
            e.legal_representative_id,
            e.weight_mode,
            e.status,
            e.created_at,
            e.updated_at
        FROM registry_entities e`

	entityInsertQuery = `
        INSERT INTO registry_entities (
            id,
            name,
            name_normalized,
            registered_capital,
            domicile_region,
            domicile_address,
            approving_authority_id,
            business_scope,
            legal_representative_id,
            weight_mode,
            status,
            created_at,
            updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	entityExistsQuery    = `SELECT 1 FROM registry_entities WHERE id = $1`
	entityNameTakenQuery = `SELECT EXISTS (SELECT 1 FROM registry_entities WHERE name_normalized = $1 AND id <> $2)`
	entityModeQuery      = `SELECT weight_mode FROM registry_entities WHERE id = $1`
	entityLegalRepQuery  = `SELECT legal_representative_id FROM registry_entities WHERE id = $1`

	entityUpdateNameQuery     = `UPDATE registry_entities SET name = $2, name_normalized = $3, updated_at = now() WHERE id = $1`
	entityUpdateCapitalQuery  = `UPDATE registry_entities SET registered_capital = $2, updated_at = now() WHERE id = $1`
	entityUpdateDomicileQuery = `
        UPDATE registry_entities
           SET domicile_region = $2,
               domicile_address = $3,
               approving_authority_id = $4,
               updated_at = now()
         WHERE id = $1`
	entityUpdateScopeQuery = `UPDATE registry_entities SET business_scope = $2, updated_at = now() WHERE id = $1`

	officerSelectQuery = `SELECT role, person_id FROM registry_officers WHERE entity_id = $1 ORDER BY role, person_id`
	officerDeleteQuery = `DELETE FROM registry_officers WHERE entity_id = $1 AND role = ANY($2)`

	stakeholderSelectQuery = `
        SELECT id, holder_kind, holder_id, capital, weight
        FROM registry_stakeholders
        WHERE entity_id = $1
        ORDER BY holder_kind, holder_id`
	stakeholderUpsertQuery = `
        INSERT INTO registry_stakeholders (id, entity_id, holder_kind, holder_id, capital, weight)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (entity_id, holder_kind, holder_id)
        DO UPDATE SET capital = EXCLUDED.capital, weight = EXCLUDED.weight
        RETURNING id`
	stakeholderDeleteAllQuery = `DELETE FROM registry_stakeholders WHERE entity_id = $1`
	stakeholderDeleteQuery    = `DELETE FROM registry_stakeholders WHERE entity_id = $1 AND id = $2`

	authorityFindQuery   = `SELECT id, name, region_code FROM registry_authorities WHERE id = $1`
	authorityInsertQuery = `INSERT INTO registry_authorities (id, name, region_code) VALUES ($1, $2, $3)`
)

const entityNameConstraint = "registry_entities_name_key"

var (
	officerColumns     = []string{"entity_id", "role", "person_id"}
	stakeholderColumns = []string{"id", "entity_id", "holder_kind", "holder_id", "capital", "weight"}
)

type EntityRepository struct{}

func NewEntityRepository() *EntityRepository {
	return &EntityRepository{}
}

var _ entity.Repository = (*EntityRepository)(nil)

func (r *EntityRepository) Get(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	return r.find(ctx, entityFindQuery+" WHERE e.id = $1", id)
}

func (r *EntityRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	return r.find(ctx, entityFindQuery+" WHERE e.id = $1 FOR UPDATE", id)
}

func (r *EntityRepository) find(ctx context.Context, query string, id uuid.UUID) (entity.Entity, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return entity.Entity{}, errors.Wrap(err, "failed to get transaction")
	}

	var e entity.Entity
	err = tx.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Name,
		&e.RegisteredCapital,
		&e.Domicile.RegionCode,
		&e.Domicile.Address,
		&e.ApprovingAuthorityID,
		&e.BusinessScope,
		&e.LegalRepresentativeID,
		&e.WeightMode,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Entity{}, entity.ErrNotFound
		}
		return entity.Entity{}, errors.Wrapf(err, "failed to query entity with id: %s", id)
	}

	officers, err := r.officers(ctx, id)
	if err != nil {
		return entity.Entity{}, err
	}
	e.Officers = officers
	return e, nil
}

func (r *EntityRepository) officers(ctx context.Context, entityID uuid.UUID) (entity.Roster, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, officerSelectQuery, entityID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query officers")
	}
	defer rows.Close()

	roster := entity.Roster{}
	for rows.Next() {
		var o entity.Officer
		if err := rows.Scan(&o.Role, &o.PersonID); err != nil {
			return nil, errors.Wrap(err, "failed to scan officer")
		}
		roster = append(roster, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate officers")
	}
	return roster, nil
}

func (r *EntityRepository) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return entity.Entity{}, errors.Wrap(err, "failed to get transaction")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = entity.StatusActive
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	e.UpdatedAt = e.CreatedAt

	if _, err := tx.Exec(
		ctx,
		entityInsertQuery,
		e.ID,
		e.Name,
		entity.NormalizeName(e.Name),
		e.RegisteredCapital,
		e.Domicile.RegionCode,
		e.Domicile.Address,
		e.ApprovingAuthorityID,
		e.BusinessScope,
		e.LegalRepresentativeID,
		e.WeightMode,
		e.Status,
		e.CreatedAt,
	); err != nil {
		if hasConstraint(err, pgUniqueViolation, entityNameConstraint) {
			return entity.Entity{}, errors.Wrap(entity.ErrNameTaken, e.Name)
		}
		return entity.Entity{}, errors.Wrap(err, "failed to insert entity")
	}

	if err := r.insertOfficers(ctx, e.ID, e.Officers); err != nil {
		return entity.Entity{}, err
	}
	if e.Officers == nil {
		e.Officers = entity.Roster{}
	}
	return e, nil
}

func (r *EntityRepository) NameTaken(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	var taken bool
	if err := tx.QueryRow(ctx, entityNameTakenQuery, entity.NormalizeName(name), excludeID).Scan(&taken); err != nil {
		return false, errors.Wrap(err, "checking name existence failed")
	}
	return taken, nil
}

func (r *EntityRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	err := r.update(ctx, entityUpdateNameQuery, id, name, entity.NormalizeName(name))
	if hasConstraint(err, pgUniqueViolation, entityNameConstraint) {
		return errors.Wrap(entity.ErrNameTaken, name)
	}
	return err
}

func (r *EntityRepository) UpdateCapital(ctx context.Context, id uuid.UUID, capital decimal.Decimal) error {
	return r.update(ctx, entityUpdateCapitalQuery, id, capital)
}

func (r *EntityRepository) UpdateDomicile(ctx context.Context, id uuid.UUID, domicile entity.Domicile, authorityID *uuid.UUID) error {
	err := r.update(ctx, entityUpdateDomicileQuery, id, domicile.RegionCode, domicile.Address, authorityID)
	if hasPgCode(err, pgForeignKeyViolation) {
		return errors.Wrap(entity.ErrAuthorityNotFound, "domicile update")
	}
	return err
}

func (r *EntityRepository) UpdateBusinessScope(ctx context.Context, id uuid.UUID, scope string) error {
	return r.update(ctx, entityUpdateScopeQuery, id, scope)
}

func (r *EntityRepository) update(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "failed to update entity with id: %s", id)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *EntityRepository) Snapshot(ctx context.Context, entityID uuid.UUID) (entity.Snapshot, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return entity.Snapshot{}, errors.Wrap(err, "failed to get transaction")
	}

	snap := entity.Snapshot{EntityID: entityID, Stakeholders: []entity.Stakeholder{}}
	if err := tx.QueryRow(ctx, entityModeQuery, entityID).Scan(&snap.Mode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Snapshot{}, entity.ErrNotFound
		}
		return entity.Snapshot{}, errors.Wrap(err, "failed to query weight mode")
	}

	rows, err := tx.Query(ctx, stakeholderSelectQuery, entityID)
	if err != nil {
		return entity.Snapshot{}, errors.Wrap(err, "failed to query stakeholders")
	}
	defer rows.Close()
	for rows.Next() {
		var sh entity.Stakeholder
		if err := rows.Scan(&sh.ID, &sh.Holder.Kind, &sh.Holder.ID, &sh.Capital, &sh.Weight); err != nil {
			return entity.Snapshot{}, errors.Wrap(err, "failed to scan stakeholder")
		}
		snap.Stakeholders = append(snap.Stakeholders, sh)
	}
	if err := rows.Err(); err != nil {
		return entity.Snapshot{}, errors.Wrap(err, "failed to iterate stakeholders")
	}
	return snap, nil
}

func (r *EntityRepository) ReplaceStakeholders(ctx context.Context, entityID uuid.UUID, stakeholders []entity.Stakeholder) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if err := r.mustExist(ctx, entityID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, stakeholderDeleteAllQuery, entityID); err != nil {
		return errors.Wrap(err, "failed to delete stakeholders")
	}
	if len(stakeholders) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(stakeholders))
	for _, sh := range stakeholders {
		if sh.ID == uuid.Nil {
			sh.ID = uuid.New()
		}
		rows = append(rows, []any{sh.ID, entityID, string(sh.Holder.Kind), sh.Holder.ID, sh.Capital, sh.Weight})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"registry_stakeholders"}, stakeholderColumns, pgx.CopyFromRows(rows)); err != nil {
		return errors.Wrap(err, "failed to insert stakeholders")
	}
	return nil
}

func (r *EntityRepository) UpsertStakeholder(ctx context.Context, entityID uuid.UUID, sh entity.Stakeholder) (entity.Stakeholder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return entity.Stakeholder{}, errors.Wrap(err, "failed to get transaction")
	}
	if sh.ID == uuid.Nil {
		sh.ID = uuid.New()
	}
	err = tx.QueryRow(
		ctx,
		stakeholderUpsertQuery,
		sh.ID,
		entityID,
		string(sh.Holder.Kind),
		sh.Holder.ID,
		sh.Capital,
		sh.Weight,
	).Scan(&sh.ID)
	if err != nil {
		if hasPgCode(err, pgForeignKeyViolation) {
			return entity.Stakeholder{}, entity.ErrNotFound
		}
		return entity.Stakeholder{}, errors.Wrapf(err, "failed to upsert stakeholder %s", sh.Holder)
	}
	return sh, nil
}

func (r *EntityRepository) DeleteStakeholder(ctx context.Context, entityID uuid.UUID, stakeholderID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if _, err := tx.Exec(ctx, stakeholderDeleteQuery, entityID, stakeholderID); err != nil {
		return errors.Wrapf(err, "failed to delete stakeholder with id: %s", stakeholderID)
	}
	return nil
}

func (r *EntityRepository) ReplaceOfficers(ctx context.Context, entityID uuid.UUID, roles []entity.OfficerRole, officers []entity.Officer) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if err := r.mustExist(ctx, entityID); err != nil {
		return err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	if _, err := tx.Exec(ctx, officerDeleteQuery, entityID, pgtype.FlatArray[string](names)); err != nil {
		return errors.Wrap(err, "failed to delete officers")
	}
	return r.insertOfficers(ctx, entityID, officers)
}

func (r *EntityRepository) insertOfficers(ctx context.Context, entityID uuid.UUID, officers []entity.Officer) error {
	if len(officers) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	rows := make([][]any, 0, len(officers))
	for _, o := range officers {
		rows = append(rows, []any{entityID, string(o.Role), o.PersonID})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"registry_officers"}, officerColumns, pgx.CopyFromRows(rows)); err != nil {
		return errors.Wrap(err, "failed to insert officers")
	}
	return nil
}

func (r *EntityRepository) LegalRepresentative(ctx context.Context, entityID uuid.UUID) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to get transaction")
	}
	var rep *uuid.UUID
	if err := tx.QueryRow(ctx, entityLegalRepQuery, entityID).Scan(&rep); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, entity.ErrNotFound
		}
		return uuid.Nil, errors.Wrap(err, "failed to query legal representative")
	}
	if rep == nil {
		return uuid.Nil, nil
	}
	return *rep, nil
}

func (r *EntityRepository) GetAuthority(ctx context.Context, id uuid.UUID) (entity.Authority, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return entity.Authority{}, errors.Wrap(err, "failed to get transaction")
	}
	var a entity.Authority
	if err := tx.QueryRow(ctx, authorityFindQuery, id).Scan(&a.ID, &a.Name, &a.RegionCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Authority{}, entity.ErrAuthorityNotFound
		}
		return entity.Authority{}, errors.Wrapf(err, "failed to query authority with id: %s", id)
	}
	return a, nil
}

// CreateAuthority registers an approving authority.
func (r *EntityRepository) CreateAuthority(ctx context.Context, a entity.Authority) (entity.Authority, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return entity.Authority{}, errors.Wrap(err, "failed to get transaction")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, err := tx.Exec(ctx, authorityInsertQuery, a.ID, a.Name, a.RegionCode); err != nil {
		return entity.Authority{}, errors.Wrap(err, "failed to insert authority")
	}
	return a, nil
}

func (r *EntityRepository) mustExist(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	var one int
	if err := tx.QueryRow(ctx, entityExistsQuery, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ErrNotFound
		}
		return errors.Wrap(err, "checking entity existence failed")
	}
	return nil
}
