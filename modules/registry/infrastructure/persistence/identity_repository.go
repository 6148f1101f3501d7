package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	"github.com/iota-uz/entity-registry/pkg/composables"
)

const (
	personExistsQuery = `SELECT EXISTS (SELECT 1 FROM registry_persons WHERE id = $1)`
	personInsertQuery = `INSERT INTO registry_persons (id, full_name) VALUES ($1, $2)`
	holderEntityQuery = `SELECT EXISTS (SELECT 1 FROM registry_entities WHERE id = $1)`
)

// IdentityRepository resolves stakeholder identities against the person and
// entity tables.
type IdentityRepository struct{}

func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{}
}

var _ entity.IdentityRepository = (*IdentityRepository)(nil)

func (r *IdentityRepository) Exists(ctx context.Context, kind entity.HolderKind, id uuid.UUID) (bool, error) {
	var query string
	switch kind {
	case entity.HolderPerson:
		query = personExistsQuery
	case entity.HolderEntity:
		query = holderEntityQuery
	default:
		return false, fmt.Errorf("unknown holder kind %q", kind)
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	var exists bool
	if err := tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "checking %s existence failed", kind)
	}
	return exists, nil
}

func (r *IdentityRepository) CreatePerson(ctx context.Context, id uuid.UUID, fullName string) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to get transaction")
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, err := tx.Exec(ctx, personInsertQuery, id, fullName); err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to insert person")
	}
	return id, nil
}
