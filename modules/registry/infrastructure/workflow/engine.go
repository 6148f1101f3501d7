package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
	"github.com/iota-uz/entity-registry/pkg/authz"
)

// Engine runs workflow instances against YAML definitions. Action roles are
// enforced through casbin policies derived from the definitions.
type Engine struct {
	defs     map[string]Definition
	store    InstanceStore
	authz    *authz.Service
	logger   *logrus.Logger
	now      func() time.Time
	flagPath string
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *logrus.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithAuthzFlagFile reads the enforcement mode from a YAML flag file on each
// action. The mode passed to NewEngine applies until the file is readable.
func WithAuthzFlagFile(path string) EngineOption {
	return func(e *Engine) { e.flagPath = path }
}

// NewEngine builds an engine over defs. mode selects casbin enforcement
// (disabled, shadow or enforce).
func NewEngine(store InstanceStore, mode authz.Mode, defs []Definition, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("workflow: instance store is required")
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("workflow: at least one definition is required")
	}
	e := &Engine{
		defs:  make(map[string]Definition, len(defs)),
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}

	var policies [][]string
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.defs[d.Code]; dup {
			return nil, fmt.Errorf("workflow: duplicate definition %q", d.Code)
		}
		e.defs[d.Code] = d
		policies = append(policies, d.Policies()...)
	}

	svc, err := authz.NewService(authz.Config{
		ModelText: authz.RoleModel,
		Policies:  policies,
		FlagMode:  mode,
		FlagPath:  e.flagPath,
		Logger:    e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.authz = svc
	return e, nil
}

func (e *Engine) Definition(code string) (Definition, bool) {
	d, ok := e.defs[normalizeKey(code)]
	return d, ok
}

func (e *Engine) CreateInstance(ctx context.Context, definitionCode, targetType string, targetID uuid.UUID, vars map[string]any) (wf.Instance, error) {
	def, ok := e.Definition(definitionCode)
	if !ok {
		return wf.Instance{}, errors.Wrapf(wf.ErrDefinitionNotFound, "code %q", definitionCode)
	}
	now := e.now()
	inst := wf.Instance{
		ID:             uuid.New(),
		DefinitionCode: def.Code,
		TargetType:     targetType,
		TargetID:       targetID,
		State:          def.InitialState,
		Vars:           vars,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateInstance(ctx, inst); err != nil {
		return wf.Instance{}, errors.Wrap(err, "workflow: create instance")
	}
	return inst, nil
}

func (e *Engine) PerformAction(ctx context.Context, instanceID uuid.UUID, actionKey string, act actor.Actor, comment string, payload json.RawMessage) (wf.TransitionResult, error) {
	inst, err := e.store.GetInstanceForUpdate(ctx, instanceID)
	if err != nil {
		return wf.TransitionResult{}, err
	}
	def, ok := e.Definition(inst.DefinitionCode)
	if !ok {
		return wf.TransitionResult{}, errors.Wrapf(wf.ErrDefinitionNotFound, "code %q", inst.DefinitionCode)
	}
	if inst.Finished {
		return wf.TransitionResult{}, errors.Wrapf(wf.ErrInstanceFinished, "instance %s is %s", inst.ID, inst.State)
	}
	action, ok := def.Action(actionKey)
	if !ok || !action.AllowedFrom(inst.State) {
		return wf.TransitionResult{}, errors.Wrapf(wf.ErrActionNotAllowed, "%s from %s", actionKey, inst.State)
	}
	if err := e.authz.AuthorizeRoles(ctx, act.Roles, def.Code, inst.TargetType, action.Key); err != nil {
		if authz.IsForbidden(err) {
			return wf.TransitionResult{}, errors.Wrapf(wf.ErrRoleNotAllowed, "%s by %s", action.Key, authz.SubjectForRoles(act.Roles))
		}
		return wf.TransitionResult{}, err
	}

	now := e.now()
	finished := def.IsFinal(action.To)
	if err := e.store.UpdateInstanceState(ctx, inst.ID, action.To, finished, now); err != nil {
		return wf.TransitionResult{}, errors.Wrap(err, "workflow: update instance state")
	}
	if err := e.store.AppendTransition(ctx, wf.Transition{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		Action:     action.Key,
		FromState:  inst.State,
		ToState:    action.To,
		ActorID:    act.ID,
		Comment:    comment,
		Payload:    payload,
		CreatedAt:  now,
	}); err != nil {
		return wf.TransitionResult{}, errors.Wrap(err, "workflow: append transition")
	}

	e.logger.WithContext(ctx).WithFields(logrus.Fields{
		"instance_id": inst.ID,
		"action":      action.Key,
		"from":        inst.State,
		"to":          action.To,
		"actor_id":    act.ID,
	}).Debug("workflow transition")

	return wf.TransitionResult{
		InstanceID: inst.ID,
		Action:     action.Key,
		FromState:  inst.State,
		NextState:  action.To,
		Finished:   finished,
	}, nil
}

func (e *Engine) GetInstance(ctx context.Context, instanceID uuid.UUID) (wf.Instance, error) {
	return e.store.GetInstance(ctx, instanceID)
}

func (e *Engine) History(ctx context.Context, instanceID uuid.UUID) ([]wf.Transition, error) {
	return e.store.ListTransitions(ctx, instanceID)
}

var _ wf.Engine = (*Engine)(nil)
