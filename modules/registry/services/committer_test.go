package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
)

func TestDebit(t *testing.T) {
	t.Parallel()
	sh := entity.Stakeholder{
		Holder:  entity.Holder{Kind: entity.HolderPerson, ID: uuid.New()},
		Capital: decimal.RequireFromString("60.50"),
		Weight:  60.5,
	}

	t.Run("partial", func(t *testing.T) {
		capital, weight, err := debit(sh, decimal.RequireFromString("20.25"), 20.25)
		require.NoError(t, err)
		require.True(t, decimal.RequireFromString("40.25").Equal(capital))
		require.InDelta(t, 40.25, weight, 1e-9)
	})

	t.Run("whole holding", func(t *testing.T) {
		capital, weight, err := debit(sh, sh.Capital, sh.Weight)
		require.NoError(t, err)
		require.True(t, capital.IsZero())
		require.Zero(t, weight)
	})

	t.Run("weight rounding is absorbed", func(t *testing.T) {
		_, weight, err := debit(sh, sh.Capital, sh.Weight+entity.WeightTolerance/2)
		require.NoError(t, err)
		require.Zero(t, weight)
	})

	t.Run("too much capital", func(t *testing.T) {
		_, _, err := debit(sh, decimal.NewFromInt(61), 1)
		require.ErrorIs(t, err, ErrInsufficientHolding)
	})

	t.Run("too much weight", func(t *testing.T) {
		_, _, err := debit(sh, decimal.NewFromInt(1), 61)
		require.ErrorIs(t, err, ErrInsufficientHolding)
	})
}

func TestNewCommitDiff(t *testing.T) {
	t.Parallel()
	before := &entityState{Entity: entity.Entity{ID: uuid.New(), Name: "Old"}}
	after := &entityState{Entity: before.Entity}
	after.Entity.Name = "New"

	raw, err := newCommitDiff(before, after)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"op":"replace"`)
	require.Contains(t, string(raw), `"path":"/entity/name"`)

	raw, err = newCommitDiff(nil, after)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"before":null`)
}
