package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

func TestServiceRegistry(t *testing.T) {
	app := New(&ApplicationOptions{})
	require.NotNil(t, app.EventPublisher())
	require.NotNil(t, app.Logger())

	app.RegisterServices(&greeter{name: "registry"})
	svc := app.Service(greeter{}).(*greeter)
	require.Equal(t, "registry", svc.name)
	require.Len(t, app.Services(), 1)

	require.Panics(t, func() { app.Service(struct{}{}) })
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	app := New(&ApplicationOptions{})
	var order []int
	boom := errors.New("boom")
	app.RegisterShutdown(
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return boom },
		func(context.Context) error { order = append(order, 3); return nil },
	)

	err := app.Shutdown(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{3, 2, 1}, order)

	require.NoError(t, app.Shutdown(context.Background()))
}
