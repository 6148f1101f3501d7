package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
)

func TestChangeRequestRepository_CreateEncodesPayload(t *testing.T) {
	entityID := uuid.New()
	var payload []byte

	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "INSERT INTO registry_change_requests")
			require.Equal(t, "RENAME", args[2])
			payload = args[3].([]byte)
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	cr, err := NewChangeRequestRepository().Create(withStubTx(tx), changerequest.ChangeRequest{
		EntityID: &entityID,
		Kind:     changerequest.KindRename,
		Payload:  changerequest.RenamePayload{Name: "Beta"},
		Status:   changerequest.StatusSubmitted,
		Verdict:  changerequest.VerdictPending,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, cr.ID)
	require.False(t, cr.CreatedAt.IsZero())
	require.JSONEq(t, `{"name":"Beta"}`, string(payload))
}

func TestChangeRequestRepository_GetDecodesPayload(t *testing.T) {
	id := uuid.New()
	entityID := uuid.New()
	instanceID := uuid.New()
	initiator := uuid.New()
	now := time.Now().UTC()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "FROM registry_change_requests cr")
			require.Contains(t, sql, "FOR UPDATE")
			return rowOf(
				id, entityID, "RENAME", []byte(`{"name":"Beta"}`), "UNDER_REVIEW", "APPROVED",
				instanceID, "under_review", initiator, nil, now, now,
			)
		},
	}

	cr, err := NewChangeRequestRepository().GetForUpdate(withStubTx(tx), id)
	require.NoError(t, err)
	require.Equal(t, changerequest.KindRename, cr.Kind)
	require.Equal(t, changerequest.RenamePayload{Name: "Beta"}, cr.Payload)
	require.Equal(t, changerequest.StatusUnderReview, cr.Status)
	require.Equal(t, changerequest.VerdictApproved, cr.Verdict)
	require.Equal(t, entityID, cr.EntityRef())
	require.False(t, cr.IsCommitted())
}

func TestChangeRequestRepository_GetNotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return rowErr(pgx.ErrNoRows)
		},
	}
	_, err := NewChangeRequestRepository().GetByID(withStubTx(tx), uuid.New())
	require.ErrorIs(t, err, changerequest.ErrNotFound)
}

func TestChangeRequestRepository_MarkCommitted(t *testing.T) {
	id := uuid.New()
	at := time.Now().UTC()

	first := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "committed_at IS NULL")
			require.Equal(t, at, args[1])
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	marked, err := NewChangeRequestRepository().MarkCommitted(withStubTx(first), id, at)
	require.NoError(t, err)
	require.True(t, marked)

	second := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return rowOf(
				id, nil, "DEREGISTRATION", []byte(`{}`), "APPROVED", "APPROVED",
				uuid.New(), "approved", uuid.New(), at, at, at,
			)
		},
	}
	marked, err = NewChangeRequestRepository().MarkCommitted(withStubTx(second), id, at)
	require.NoError(t, err)
	require.False(t, marked)

	gone := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return rowErr(pgx.ErrNoRows)
		},
	}
	_, err = NewChangeRequestRepository().MarkCommitted(withStubTx(gone), id, at)
	require.ErrorIs(t, err, changerequest.ErrNotFound)
}

func TestChangeRequestRepository_IsDeregistered(t *testing.T) {
	entityID := uuid.New()
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "kind = 'DEREGISTRATION'")
			require.Contains(t, sql, "committed_at IS NOT NULL")
			require.Equal(t, entityID, args[0])
			return rowOf(true)
		},
	}
	gone, err := NewChangeRequestRepository().IsDeregistered(withStubTx(tx), entityID)
	require.NoError(t, err)
	require.True(t, gone)

	failing := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return rowErr(errors.New("boom"))
		},
	}
	_, err = NewChangeRequestRepository().IsDeregistered(withStubTx(failing), entityID)
	require.ErrorContains(t, err, "checking entity deregistration failed")
}

func TestChangeRequestRepository_UpdateMissingRow(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	err := NewChangeRequestRepository().UpdateStatus(withStubTx(tx), uuid.New(), changerequest.StatusArchived, "cancelled")
	require.ErrorIs(t, err, changerequest.ErrNotFound)
}

func TestConsentRepository_InsertRequirementsSkipsDuplicates(t *testing.T) {
	requestID := uuid.New()
	approver := uuid.New()
	ref := uuid.New()
	calls := 0

	tx := &stubTx{
		batchFunc: func(sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "ON CONFLICT DO NOTHING")
			calls++
			if calls == 2 {
				return pgconn.NewCommandTag("INSERT 0 0"), nil
			}
			require.Equal(t, "PENDING", args[6])
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	n, err := NewConsentRepository().InsertRequirements(withStubTx(tx), []consent.Requirement{
		{RequestID: requestID, ApproverID: approver, Role: consent.RoleShareholderUser, ShareholderRef: &ref, Weight: 40},
		{RequestID: requestID, ApproverID: approver, Role: consent.RoleShareholderUser, ShareholderRef: &ref, Weight: 40},
		{RequestID: requestID, ApproverID: uuid.New(), Role: consent.RoleDirector},
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, n)
}

func TestConsentRepository_ListByRequest(t *testing.T) {
	requestID := uuid.New()
	approver := uuid.New()
	ref := uuid.New()
	decided := time.Now().UTC()

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "ORDER BY c.seq")
			return &stubRows{data: [][]any{
				{uuid.New(), requestID, approver, "SHAREHOLDER_USER", ref, 40.0, "APPROVED", decided, "ok"},
				{uuid.New(), requestID, uuid.New(), "DIRECTOR", nil, 0.0, "PENDING", nil, ""},
			}}, nil
		},
	}

	reqs, err := NewConsentRepository().ListByRequest(withStubTx(tx), requestID)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, consent.RoleShareholderUser, reqs[0].Role)
	require.Equal(t, ref, *reqs[0].ShareholderRef)
	require.Equal(t, consent.StatusApproved, reqs[0].Status)
	require.NotNil(t, reqs[0].DecidedAt)
	require.Nil(t, reqs[1].ShareholderRef)
	require.Nil(t, reqs[1].DecidedAt)
	require.Equal(t, consent.StatusPending, reqs[1].Status)
}

func TestConsentRepository_DecideOnlyPendingRows(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "status = 'PENDING'")
			require.Equal(t, "REJECTED", args[2])
			return pgconn.NewCommandTag("UPDATE 2"), nil
		},
	}
	n, err := NewConsentRepository().Decide(withStubTx(tx), uuid.New(), uuid.New(), consent.StatusRejected, "no", time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
