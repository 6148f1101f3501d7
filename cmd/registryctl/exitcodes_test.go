package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/services"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitOK},
		{name: "explicit", err: withCode(exitUsage, errors.New("bad flag")), want: exitUsage},
		{name: "validation", err: fmt.Errorf("submit: %w", services.ErrInvalidStructure), want: exitValidation},
		{name: "forbidden", err: services.ErrNotAuthorized, want: exitForbidden},
		{name: "not found", err: services.ErrNotFound, want: exitNotFound},
		{name: "conflict", err: services.ErrAlreadyDecided, want: exitConflict},
		{name: "pg", err: &pgconn.PgError{Code: "57014"}, want: exitDB},
		{name: "other", err: errors.New("boom"), want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}

func TestWithCode_Nil(t *testing.T) {
	t.Parallel()
	require.NoError(t, withCode(exitDB, nil))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := parseKind(" equity_transfer ")
	require.NoError(t, err)
	require.EqualValues(t, "EQUITY_TRANSFER", k)

	_, err = parseKind("merger")
	require.Error(t, err)
	require.Equal(t, exitUsage, exitCode(err))
}

func TestReadPayload(t *testing.T) {
	t.Parallel()

	raw, err := readPayload(`{"name":"Acme"}`, "")
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Acme"}`, string(raw))

	_, err = readPayload(`{}`, "p.json")
	require.Error(t, err)
	require.Equal(t, exitUsage, exitCode(err))

	raw, err = readPayload("", "")
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	_, err := decodePayload("RENAME", nil)
	require.Equal(t, exitUsage, exitCode(err))

	_, err = decodePayload("RENAME", []byte(`{"name":`))
	require.Equal(t, exitValidation, exitCode(err))
}
