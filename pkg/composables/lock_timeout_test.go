package composables

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUseLockTimeout(t *testing.T) {
	_, ok := UseLockTimeout(context.Background())
	require.False(t, ok)

	_, ok = UseLockTimeout(WithLockTimeout(context.Background(), 0))
	require.False(t, ok)

	d, ok := UseLockTimeout(WithLockTimeout(context.Background(), 3*time.Second))
	require.True(t, ok)
	require.Equal(t, 3*time.Second, d)
}

func TestUseTx_WithoutPoolOrTx(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)
}
