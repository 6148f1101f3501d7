package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/memory"
)

func newGenerator(t *testing.T) (*RequirementGenerator, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewRequirementGenerator(store.Entities(), store.Identities()), store
}

func TestGenerate_StakeholderVotesCarryWeights(t *testing.T) {
	t.Parallel()
	gen, store := newGenerator(t)
	person, rep := uuid.New(), uuid.New()
	store.Identities().PutPerson(person, rep)
	parent := store.Entities().PutEntity(entity.Entity{Name: "Parent", LegalRepresentativeID: &rep})
	e := store.Entities().PutEntity(entity.Entity{Name: "Child"},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderPerson, ID: person}, Capital: decimal.NewFromInt(70), Weight: 70},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderEntity, ID: parent.ID}, Capital: decimal.NewFromInt(30), Weight: 30},
	)
	snap, err := store.Entities().Snapshot(context.Background(), e.ID)
	require.NoError(t, err)

	requestID := uuid.New()
	reqs, err := gen.Generate(context.Background(), requestID, e.ID, changerequest.BusinessScopeChangePayload{BusinessScope: "consulting"})
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	for _, r := range reqs {
		require.Equal(t, requestID, r.RequestID)
		require.Equal(t, consent.StatusPending, r.Status)
		require.NotEqual(t, uuid.Nil, r.ID)
		require.NotNil(t, r.ShareholderRef)
		switch r.Role {
		case consent.RoleShareholderUser:
			require.Equal(t, person, r.ApproverID)
			require.InDelta(t, 70, r.Weight, 1e-9)
			require.Equal(t, snap.Stakeholders[0].ID, *r.ShareholderRef)
		case consent.RoleShareholderEntityLegalRep:
			require.Equal(t, rep, r.ApproverID)
			require.InDelta(t, 30, r.Weight, 1e-9)
			require.Equal(t, snap.Stakeholders[1].ID, *r.ShareholderRef)
		default:
			t.Fatalf("unexpected role %s", r.Role)
		}
	}
}

func TestGenerate_SamePersonForTwoHoldingsKeepsBothRows(t *testing.T) {
	t.Parallel()
	gen, store := newGenerator(t)
	rep := uuid.New()
	store.Identities().PutPerson(rep)
	a := store.Entities().PutEntity(entity.Entity{Name: "A", LegalRepresentativeID: &rep})
	b := store.Entities().PutEntity(entity.Entity{Name: "B", LegalRepresentativeID: &rep})
	e := store.Entities().PutEntity(entity.Entity{Name: "Target"},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderEntity, ID: a.ID}, Capital: decimal.NewFromInt(1), Weight: 50},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderEntity, ID: b.ID}, Capital: decimal.NewFromInt(1), Weight: 50},
	)

	reqs, err := gen.Generate(context.Background(), uuid.New(), e.ID, changerequest.RenamePayload{Name: "New"})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, reqs[0].ApproverID, reqs[1].ApproverID)
	require.NotEqual(t, *reqs[0].ShareholderRef, *reqs[1].ShareholderRef)
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()
	gen, store := newGenerator(t)
	person := uuid.New()
	store.Identities().PutPerson(person)
	noRep := store.Entities().PutEntity(entity.Entity{Name: "NoRep"})
	withRepless := store.Entities().PutEntity(entity.Entity{Name: "Holds NoRep"},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderEntity, ID: noRep.ID}, Capital: decimal.NewFromInt(1), Weight: 100})
	empty := store.Entities().PutEntity(entity.Entity{Name: "Empty"})
	owned := store.Entities().PutEntity(entity.Entity{Name: "Owned"},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderPerson, ID: person}, Capital: decimal.NewFromInt(1), Weight: 100})
	ghost := uuid.New()

	cases := []struct {
		name     string
		entityID uuid.UUID
		payload  changerequest.Payload
		want     error
	}{
		{"nil payload", owned.ID, nil, ErrInvalidStructure},
		{"invalid payload", owned.ID, changerequest.RenamePayload{}, ErrInvalidStructure},
		{"missing representative", withRepless.ID, changerequest.RenamePayload{Name: "X"}, ErrMissingRepresentative},
		{"no stakeholders", empty.ID, changerequest.RenamePayload{Name: "X"}, ErrInvalidStructure},
		{"unknown entity", uuid.New(), changerequest.RenamePayload{Name: "X"}, ErrNotFound},
		{"unknown transferee", owned.ID, changerequest.EquityTransferPayload{
			Transferor: entity.Holder{Kind: entity.HolderPerson, ID: person},
			Transferee: entity.Holder{Kind: entity.HolderPerson, ID: ghost},
			Capital:    decimal.NewFromInt(1),
		}, ErrInvalidStructure},
		{"weight off the capital share", owned.ID, changerequest.EquityTransferPayload{
			Transferor: entity.Holder{Kind: entity.HolderPerson, ID: person},
			Transferee: entity.Holder{Kind: entity.HolderPerson, ID: noRep.ID},
			Capital:    decimal.NewFromInt(1),
			Weight:     10,
		}, ErrInvalidStructure},
		{"transferor without stake", owned.ID, changerequest.EquityTransferPayload{
			Transferor: entity.Holder{Kind: entity.HolderPerson, ID: ghost},
			Transferee: entity.Holder{Kind: entity.HolderPerson, ID: person},
			Capital:    decimal.NewFromInt(1),
			Weight:     10,
		}, ErrInvalidStructure},
		{"unknown new stakeholder", owned.ID, changerequest.CapitalChangePayload{
			RegisteredCapital: decimal.NewFromInt(2),
			Stakeholders: changerequest.ProposedStakeholders{
				{Holder: entity.Holder{Kind: entity.HolderPerson, ID: person}, Capital: decimal.NewFromInt(1)},
				{Holder: entity.Holder{Kind: entity.HolderPerson, ID: ghost}, Capital: decimal.NewFromInt(1)},
			},
		}, ErrInvalidStructure},
		{"unknown officer", owned.ID, changerequest.OfficerChangePayload{Directors: []uuid.UUID{ghost}}, ErrInvalidStructure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gen.Generate(context.Background(), uuid.New(), tc.entityID, tc.payload)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerate_InvalidPayloadNamesTheField(t *testing.T) {
	t.Parallel()
	gen, _ := newGenerator(t)
	_, err := gen.Generate(context.Background(), uuid.New(), uuid.New(), changerequest.RenamePayload{})
	require.ErrorIs(t, err, ErrInvalidStructure)
	require.ErrorContains(t, err, "Name is a required field")
}

func TestGenerate_StorageErrorsPassThrough(t *testing.T) {
	t.Parallel()
	gen, store := newGenerator(t)
	person := uuid.New()
	store.Identities().PutPerson(person)
	e := store.Entities().PutEntity(entity.Entity{Name: "Owned"},
		entity.Stakeholder{Holder: entity.Holder{Kind: entity.HolderPerson, ID: person}, Capital: decimal.NewFromInt(1), Weight: 100})

	boom := errors.New("connection reset")
	store.FailOn("entities.Snapshot", boom)
	_, err := gen.Generate(context.Background(), uuid.New(), e.ID, changerequest.RenamePayload{Name: "X"})
	require.ErrorIs(t, err, boom)
}

func TestValidateRoster(t *testing.T) {
	t.Parallel()
	d, s, m := uuid.New(), uuid.New(), uuid.New()
	current := entity.Roster{
		{Role: entity.OfficerDirector, PersonID: d},
		{Role: entity.OfficerManager, PersonID: m},
	}

	require.NoError(t, validateRoster(current, entity.BoardRoles, entity.Roster{
		{Role: entity.OfficerDirector, PersonID: d},
		{Role: entity.OfficerSupervisor, PersonID: s},
	}))
	require.ErrorIs(t, validateRoster(current, entity.BoardRoles, entity.Roster{
		{Role: entity.OfficerSupervisor, PersonID: m},
	}), ErrInvalidStructure)
	require.NoError(t, validateRoster(current, entity.ManagementRoles, entity.Roster{
		{Role: entity.OfficerManager, PersonID: s},
	}))
}
