package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
)

func TestEntityRepository_GetMapsRowAndOfficers(t *testing.T) {
	id := uuid.New()
	rep := uuid.New()
	director := uuid.New()
	now := time.Now().UTC()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "FROM registry_entities e")
			require.NotContains(t, sql, "FOR UPDATE")
			require.Equal(t, id, args[0])
			return rowOf(id, "Acme", decimal.NewFromInt(1000), "UZ-TK", "1 Main st", nil, "trade", rep, "CUSTOM", "ACTIVE", now, now)
		},
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM registry_officers")
			return &stubRows{data: [][]any{{"DIRECTOR", director}}}, nil
		},
	}

	e, err := NewEntityRepository().Get(withStubTx(tx), id)
	require.NoError(t, err)
	require.Equal(t, "Acme", e.Name)
	require.True(t, decimal.NewFromInt(1000).Equal(e.RegisteredCapital))
	require.Equal(t, entity.Domicile{RegionCode: "UZ-TK", Address: "1 Main st"}, e.Domicile)
	require.Nil(t, e.ApprovingAuthorityID)
	require.NotNil(t, e.LegalRepresentativeID)
	require.Equal(t, rep, *e.LegalRepresentativeID)
	require.Equal(t, entity.WeightModeCustom, e.WeightMode)
	require.Equal(t, entity.Roster{{Role: entity.OfficerDirector, PersonID: director}}, e.Officers)
}

func TestEntityRepository_GetForUpdateLocksRow(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "FOR UPDATE")
			return rowErr(pgx.ErrNoRows)
		},
	}
	_, err := NewEntityRepository().GetForUpdate(withStubTx(tx), uuid.New())
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEntityRepository_Create(t *testing.T) {
	director := uuid.New()
	var copied [][]any

	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "INSERT INTO registry_entities")
			require.Equal(t, "  Acme   Trading ", args[1])
			require.Equal(t, "acme trading", args[2])
			require.Equal(t, entity.StatusActive, args[10])
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
		copyFunc: func(table pgx.Identifier, columns []string, rows [][]any) (int64, error) {
			require.Equal(t, pgx.Identifier{"registry_officers"}, table)
			require.Equal(t, officerColumns, columns)
			copied = rows
			return int64(len(rows)), nil
		},
	}

	e, err := NewEntityRepository().Create(withStubTx(tx), entity.Entity{
		Name:       "  Acme   Trading ",
		WeightMode: entity.WeightModeProportional,
		Officers:   entity.Roster{{Role: entity.OfficerDirector, PersonID: director}},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, e.ID)
	require.Equal(t, entity.StatusActive, e.Status)
	require.Len(t, copied, 1)
	require.Equal(t, []any{e.ID, "DIRECTOR", director}, copied[0])
}

func TestEntityRepository_NameConflicts(t *testing.T) {
	conflict := pgError(pgUniqueViolation, entityNameConstraint)
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, conflict
		},
	}
	repo := NewEntityRepository()

	_, err := repo.Create(withStubTx(tx), entity.Entity{Name: "Acme", WeightMode: entity.WeightModeCustom})
	require.ErrorIs(t, err, entity.ErrNameTaken)

	err = repo.UpdateName(withStubTx(tx), uuid.New(), "Acme")
	require.ErrorIs(t, err, entity.ErrNameTaken)
}

func TestEntityRepository_UpdateMissingRow(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	err := NewEntityRepository().UpdateBusinessScope(withStubTx(tx), uuid.New(), "retail")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEntityRepository_UpdateDomicileUnknownAuthority(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, pgError(pgForeignKeyViolation, "registry_entities_approving_authority_id_fkey")
		},
	}
	authority := uuid.New()
	err := NewEntityRepository().UpdateDomicile(withStubTx(tx), uuid.New(), entity.Domicile{RegionCode: "UZ"}, &authority)
	require.ErrorIs(t, err, entity.ErrAuthorityNotFound)
}

func TestEntityRepository_Snapshot(t *testing.T) {
	entityID := uuid.New()
	holder := uuid.New()
	shID := uuid.New()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "weight_mode")
			return rowOf("PROPORTIONAL")
		},
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM registry_stakeholders")
			return &stubRows{data: [][]any{
				{shID, "PERSON", holder, decimal.NewFromInt(600), 60.0},
			}}, nil
		},
	}

	snap, err := NewEntityRepository().Snapshot(withStubTx(tx), entityID)
	require.NoError(t, err)
	require.Equal(t, entityID, snap.EntityID)
	require.Equal(t, entity.WeightModeProportional, snap.Mode)
	require.Len(t, snap.Stakeholders, 1)
	require.Equal(t, entity.Holder{Kind: entity.HolderPerson, ID: holder}, snap.Stakeholders[0].Holder)
	require.InDelta(t, 60.0, snap.Stakeholders[0].Weight, 1e-9)
}

func TestEntityRepository_ReplaceOfficersOnlyTouchesRoles(t *testing.T) {
	entityID := uuid.New()
	manager := uuid.New()
	var deletedRoles any

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return rowOf(1)
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "DELETE FROM registry_officers")
			deletedRoles = args[1]
			return pgconn.NewCommandTag("DELETE 2"), nil
		},
		copyFunc: func(table pgx.Identifier, columns []string, rows [][]any) (int64, error) {
			require.Equal(t, [][]any{{entityID, "MANAGER", manager}}, rows)
			return 1, nil
		},
	}

	err := NewEntityRepository().ReplaceOfficers(
		withStubTx(tx),
		entityID,
		entity.ManagementRoles,
		[]entity.Officer{{Role: entity.OfficerManager, PersonID: manager}},
	)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"MANAGER", "DEPUTY_MANAGER", "FINANCIAL_OFFICER"}, deletedRoles)
}

func TestEntityRepository_ReplaceStakeholdersMissingEntity(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return rowErr(pgx.ErrNoRows)
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			t.Fatalf("unexpected exec: %s", sql)
			return pgconn.CommandTag{}, nil
		},
	}
	err := NewEntityRepository().ReplaceStakeholders(withStubTx(tx), uuid.New(), nil)
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEntityRepository_LegalRepresentative(t *testing.T) {
	repo := NewEntityRepository()

	none := &stubTx{queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row { return rowOf(nil) }}
	got, err := repo.LegalRepresentative(withStubTx(none), uuid.New())
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, got)

	rep := uuid.New()
	some := &stubTx{queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row { return rowOf(rep) }}
	got, err = repo.LegalRepresentative(withStubTx(some), uuid.New())
	require.NoError(t, err)
	require.Equal(t, rep, got)
}

func TestIdentityRepository_Exists(t *testing.T) {
	id := uuid.New()
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "registry_persons")
			require.Equal(t, id, args[0])
			return rowOf(true)
		},
	}
	repo := NewIdentityRepository()

	ok, err := repo.Exists(withStubTx(tx), entity.HolderPerson, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.Exists(withStubTx(tx), entity.HolderKind("GROUP"), id)
	require.Error(t, err)
}
