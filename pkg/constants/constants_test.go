package constants

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `validate:"required"`
	Weight int    `validate:"gte=0,lte=100"`
}

func TestValidationMessage(t *testing.T) {
	t.Parallel()

	err := Validate.Struct(sample{Weight: 101})
	require.Error(t, err)
	msg := ValidationMessage(err)
	require.Contains(t, msg, "Name is a required field")
	require.Contains(t, msg, "Weight must be 100 or less")
	require.Equal(t, "Name is a required field; Weight must be 100 or less", msg)

	require.Equal(t, "plain", ValidationMessage(errors.New("plain")))
}
