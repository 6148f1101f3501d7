package workflow_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/memory"
	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/workflow"
	"github.com/iota-uz/entity-registry/pkg/authz"
)

func newEngine(t *testing.T, mode authz.Mode) (*workflow.Engine, *memory.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := memory.New()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	engine, err := workflow.NewEngine(store.Workflow(), mode,
		[]workflow.Definition{workflow.DefaultDefinition()},
		workflow.WithLogger(logger),
		workflow.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return engine, store
}

func TestEngine_HappyPath(t *testing.T) {
	t.Parallel()
	engine, _ := newEngine(t, authz.ModeEnforce)
	ctx := context.Background()
	reviewer := actor.New(uuid.New(), actor.RoleReviewer)

	inst, err := engine.CreateInstance(ctx, "ENTITY_CHANGE", wf.TargetChangeRequest, uuid.New(), map[string]any{"kind": "RENAME"})
	require.NoError(t, err)
	require.Equal(t, wf.StateSubmitted, inst.State)
	require.Equal(t, "entity_change", inst.DefinitionCode)

	res, err := engine.PerformAction(ctx, inst.ID, wf.ActionRouteToReview, reviewer, "looks fine", nil)
	require.NoError(t, err)
	require.Equal(t, wf.StateSubmitted, res.FromState)
	require.Equal(t, wf.StateUnderReview, res.NextState)
	require.False(t, res.Finished)

	res, err = engine.PerformAction(ctx, inst.ID, wf.ActionApprove, reviewer, "", nil)
	require.NoError(t, err)
	require.True(t, res.Finished)

	got, err := engine.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, wf.StateApproved, got.State)
	require.True(t, got.Finished)

	history, err := engine.History(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "looks fine", history[0].Comment)
	require.Equal(t, reviewer.ID, history[1].ActorID)
	require.Equal(t, wf.StateApproved, history[1].ToState)

	_, err = engine.PerformAction(ctx, inst.ID, wf.ActionCancel, actor.New(uuid.New(), actor.RoleAdmin), "", nil)
	require.ErrorIs(t, err, wf.ErrInstanceFinished)
}

func TestEngine_RefusesActions(t *testing.T) {
	t.Parallel()
	engine, _ := newEngine(t, authz.ModeEnforce)
	ctx := context.Background()
	inst, err := engine.CreateInstance(ctx, "entity_change", wf.TargetChangeRequest, uuid.New(), nil)
	require.NoError(t, err)

	_, err = engine.PerformAction(ctx, inst.ID, wf.ActionApprove, actor.New(uuid.New(), actor.RoleReviewer), "", nil)
	require.ErrorIs(t, err, wf.ErrActionNotAllowed)

	_, err = engine.PerformAction(ctx, inst.ID, "teleport", actor.New(uuid.New(), actor.RoleAdmin), "", nil)
	require.ErrorIs(t, err, wf.ErrActionNotAllowed)

	_, err = engine.PerformAction(ctx, inst.ID, wf.ActionRouteToReview, actor.New(uuid.New(), actor.RoleInitiator), "", nil)
	require.ErrorIs(t, err, wf.ErrRoleNotAllowed)

	_, err = engine.PerformAction(ctx, inst.ID, wf.ActionRouteToReview, actor.New(uuid.New()), "", nil)
	require.ErrorIs(t, err, wf.ErrRoleNotAllowed)

	got, err := engine.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, wf.StateSubmitted, got.State)

	_, err = engine.PerformAction(ctx, uuid.New(), wf.ActionCancel, actor.New(uuid.New(), actor.RoleAdmin), "", nil)
	require.ErrorIs(t, err, wf.ErrInstanceNotFound)

	_, err = engine.CreateInstance(ctx, "unknown", wf.TargetChangeRequest, uuid.New(), nil)
	require.ErrorIs(t, err, wf.ErrDefinitionNotFound)
}

func TestEngine_ShadowModeOnlyLogs(t *testing.T) {
	t.Parallel()
	engine, _ := newEngine(t, authz.ModeShadow)
	ctx := context.Background()
	inst, err := engine.CreateInstance(ctx, "entity_change", wf.TargetChangeRequest, uuid.New(), nil)
	require.NoError(t, err)

	res, err := engine.PerformAction(ctx, inst.ID, wf.ActionRouteToReview, actor.New(uuid.New(), actor.RoleInitiator), "", nil)
	require.NoError(t, err)
	require.Equal(t, wf.StateUnderReview, res.NextState)
}

func TestEngine_StoreFailureLeavesStateToCaller(t *testing.T) {
	t.Parallel()
	engine, store := newEngine(t, authz.ModeEnforce)
	ctx := context.Background()
	inst, err := engine.CreateInstance(ctx, "entity_change", wf.TargetChangeRequest, uuid.New(), nil)
	require.NoError(t, err)

	store.FailOn("workflow.AppendTransition", context.DeadlineExceeded)
	err = store.InTx(ctx, func(txCtx context.Context) error {
		_, err := engine.PerformAction(txCtx, inst.ID, wf.ActionCancel, actor.New(uuid.New(), actor.RoleInitiator), "", nil)
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := engine.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, wf.StateSubmitted, got.State)
	require.False(t, got.Finished)
}

func TestNewEngine_Validates(t *testing.T) {
	t.Parallel()
	store := memory.New()
	def := workflow.DefaultDefinition()

	_, err := workflow.NewEngine(nil, authz.ModeEnforce, []workflow.Definition{def})
	require.Error(t, err)
	_, err = workflow.NewEngine(store.Workflow(), authz.ModeEnforce, nil)
	require.Error(t, err)
	_, err = workflow.NewEngine(store.Workflow(), authz.ModeEnforce, []workflow.Definition{def, def})
	require.Error(t, err)
	_, err = workflow.NewEngine(store.Workflow(), authz.ModeEnforce, []workflow.Definition{{Code: "broken"}})
	require.Error(t, err)
}
